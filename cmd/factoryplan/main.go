// Command factoryplan solves one order-to-facility assignment problem and prints the plan.
//
// The problem comes from -file (YAML or JSON), a generated instance (-random, optionally
// -seed), or the built-in reference scenario.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"factoryplan/internal/model"
	"factoryplan/internal/opt"
	"factoryplan/internal/sample"
)

type options struct {
	file        string
	random      bool
	seed        int64
	setupCharge string
	timeout     time.Duration
	maxNodes    int
	jsonOut     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("factoryplan failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("factoryplan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	fs.StringVar(&o.file, "file", "", "problem file (YAML or JSON)")
	fs.BoolVar(&o.random, "random", false, "solve a generated instance instead of the reference scenario")
	fs.Int64Var(&o.seed, "seed", 0, "generator seed for -random (0 picks one from the clock)")
	fs.StringVar(&o.setupCharge, "setup-charge", opt.SetupPerOrder.String(), "setup cost accounting: per_order or per_facility")
	fs.DurationVar(&o.timeout, "timeout", 0, "search time budget (0 = unlimited)")
	fs.IntVar(&o.maxNodes, "max-nodes", 0, "search node budget (0 = unlimited)")
	fs.BoolVar(&o.jsonOut, "json", false, "print the plan as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if o.file != "" && o.random {
		return errors.New("-file and -random are mutually exclusive")
	}

	charge, err := opt.ParseSetupCharge(o.setupCharge)
	if err != nil {
		return err
	}
	p, err := loadProblem(o)
	if err != nil {
		return err
	}

	res, m, err := opt.Solve(ctx, p, opt.Options{SetupCharge: charge, TimeBudget: o.timeout, MaxNodes: o.maxNodes})
	if err != nil {
		return err
	}
	if o.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(model.NewPlan("", "", p, res, m))
	}
	return writeReport(stdout, p, res, m)
}

func loadProblem(o options) (opt.Problem, error) {
	switch {
	case o.file != "":
		return sample.LoadFile(o.file)
	case o.random:
		seed := o.seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		slog.Debug("generating problem", "seed", seed)
		return sample.Generate(rand.New(rand.NewSource(seed))), nil
	default:
		return sample.Reference(), nil
	}
}
