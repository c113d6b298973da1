package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"factoryplan/internal/model"
	"factoryplan/internal/opt"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, &out, &errOut)
	return out.String(), err
}

func TestReferenceReport(t *testing.T) {
	out, err := runCLI(t)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"Deadline: 8 days", "Minimum total cost: 44", "[5, 1]", "per_order"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestPerFacilityJSON(t *testing.T) {
	out, err := runCLI(t, "-setup-charge", "per_facility", "-json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var plan model.Plan
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if plan.TotalCost != 33 || plan.SetupCharge != "per_facility" {
		t.Fatalf("plan: %+v", plan)
	}
}

func TestInfeasibleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")
	doc := "deadline: 1\norders: [100]\nfacilities:\n  - unitsPerDay: 10\n    costPerUnit: 1\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "-file", path)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Infeasible") {
		t.Fatalf("expected infeasible notice:\n%s", out)
	}
}

func TestRandomIsDeterministicPerSeed(t *testing.T) {
	a, err := runCLI(t, "-random", "-seed", "7", "-json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, _ := runCLI(t, "-random", "-seed", "7", "-json")
	var pa, pb model.Plan
	_ = json.Unmarshal([]byte(a), &pa)
	_ = json.Unmarshal([]byte(b), &pb)
	if pa.TotalCost != pb.TotalCost || len(pa.Orders) != len(pb.Orders) {
		t.Fatalf("seeded runs differ: %d vs %d", pa.TotalCost, pb.TotalCost)
	}
}

func TestFlagErrors(t *testing.T) {
	if _, err := runCLI(t, "-setup-charge", "hourly"); !errors.Is(err, opt.ErrInvalidProblem) {
		t.Errorf("bad setup charge: %v", err)
	}
	if _, err := runCLI(t, "-file", "x.yaml", "-random"); err == nil {
		t.Error("expected -file/-random conflict")
	}
	if _, err := runCLI(t, "-max-nodes", "1"); !errors.Is(err, opt.ErrSearchBudget) {
		t.Errorf("node budget: %v", err)
	}
}
