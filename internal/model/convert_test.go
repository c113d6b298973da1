package model

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"factoryplan/internal/opt"
)

func TestNewPlanFeasible(t *testing.T) {
	req := OptimizeRequest{
		TenantID: "t1",
		Deadline: 1,
		Orders:   []int{10},
		Facilities: []FacilityIn{
			{ID: "only", UnitsPerDay: 10, CostPerUnit: 1},
		},
	}
	p := req.Problem()
	res, m, err := opt.Solve(context.Background(), p, opt.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := NewPlan(req.TenantID, "2024-01-01", p, res, m)
	if got.Status != PlanFeasible || got.TotalCost != 10 {
		t.Fatalf("unexpected plan header: %+v", got)
	}
	want := []FacilityPlan{{FacilityID: "only", Orders: []int{10}, TotalDays: 1, TotalCost: 10}}
	if diff := cmp.Diff(want, got.Assignments); diff != "" {
		t.Fatalf("assignments mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(req.Facilities, got.Facilities); diff != "" {
		t.Fatalf("facilities mismatch (-want +got):\n%s", diff)
	}
	if got.SetupCharge != "per_order" {
		t.Fatalf("setup charge = %q", got.SetupCharge)
	}
}

func TestNewPlanInfeasible(t *testing.T) {
	p := opt.Problem{Deadline: 0, Orders: []int{1}, Facilities: []opt.Facility{{ID: "a", UnitsPerDay: 1}}}
	res, m, err := opt.Solve(context.Background(), p, opt.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := NewPlan("t1", "", p, res, m)
	if got.Status != PlanInfeasible || got.TotalCost != opt.Infeasible {
		t.Fatalf("unexpected plan: %+v", got)
	}
	if got.Assignments == nil || len(got.Assignments) != 0 {
		t.Fatalf("infeasible plan should carry an empty assignment list, got %#v", got.Assignments)
	}
}

func TestProblemNumbersUnnamedFacilities(t *testing.T) {
	req := OptimizeRequest{
		Deadline: 5,
		Orders:   []int{1},
		Facilities: []FacilityIn{
			{UnitsPerDay: 1},
			{ID: "east", UnitsPerDay: 2},
			{UnitsPerDay: 3},
		},
	}
	var ids []string
	for _, f := range req.Problem().Facilities {
		ids = append(ids, f.ID)
	}
	if diff := cmp.Diff([]string{"1", "east", "3"}, ids); diff != "" {
		t.Errorf("facility ids mismatch (-want +got):\n%s", diff)
	}
}
