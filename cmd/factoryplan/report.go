package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"factoryplan/internal/opt"
)

// writeReport prints the inputs followed by the per-facility plan, or the infeasibility
// notice.
func writeReport(w io.Writer, p opt.Problem, res opt.Result, m opt.Metrics) error {
	printf(w, "--- Input ---\n")
	printf(w, "Deadline: %d days\n", p.Deadline)
	printf(w, "Orders (units): %s\n", joinInts(p.Orders))
	printf(w, "Setup charge: %s\n\n", m.SetupCharge)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FACILITY\tUNITS/DAY\tCOST/UNIT\tSETUP COST\tSETUP DAYS")
	for _, f := range p.Facilities {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", f.ID, f.UnitsPerDay, f.CostPerUnit, f.SetupCost, f.SetupDays)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	printf(w, "\n--- Result ---\n")
	if !res.Feasible() {
		printf(w, "Infeasible: the orders cannot all be completed within %d days.\n", p.Deadline)
		printf(w, "Searched %d nodes in %s.\n", m.Nodes, m.Elapsed)
		return nil
	}
	printf(w, "Minimum total cost: %d\n\n", res.TotalCost)

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FACILITY\tORDERS\tDAYS\tCOST")
	for _, a := range res.Assignments {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", a.Facility.ID, joinInts(a.Orders), a.TotalDays, a.TotalCost)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printf(w, "\nSearched %d nodes (%d bound prunes, %d deadline skips, %d improvements) in %s.\n",
		m.Nodes, m.BoundPrunes, m.DeadlineSkips, m.Improvements, m.Elapsed)
	return nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
