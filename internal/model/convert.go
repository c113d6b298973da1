package model

import (
	"strconv"

	"factoryplan/internal/opt"
)

// Problem converts the request inputs into a search problem. It does not validate. Facilities
// without an id are numbered from 1 by position.
func (r OptimizeRequest) Problem() opt.Problem {
	p := opt.Problem{Deadline: r.Deadline, Orders: append([]int(nil), r.Orders...)}
	for i, f := range r.Facilities {
		id := f.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		p.Facilities = append(p.Facilities, opt.Facility{
			ID:          id,
			UnitsPerDay: f.UnitsPerDay,
			CostPerUnit: f.CostPerUnit,
			SetupCost:   f.SetupCost,
			SetupDays:   f.SetupDays,
		})
	}
	return p
}

// FacilitiesIn converts search facilities to their wire form.
func FacilitiesIn(fs []opt.Facility) []FacilityIn {
	out := make([]FacilityIn, 0, len(fs))
	for _, f := range fs {
		out = append(out, FacilityIn{
			ID:          f.ID,
			UnitsPerDay: f.UnitsPerDay,
			CostPerUnit: f.CostPerUnit,
			SetupCost:   f.SetupCost,
			SetupDays:   f.SetupDays,
		})
	}
	return out
}

// NewPlan builds the wire plan for a finished search. ID and CreatedAt are left to the store.
func NewPlan(tenantID, planDate string, p opt.Problem, res opt.Result, m opt.Metrics) Plan {
	plan := Plan{
		TenantID:    tenantID,
		PlanDate:    planDate,
		Status:      PlanInfeasible,
		Deadline:    p.Deadline,
		SetupCharge: m.SetupCharge.String(),
		Orders:      append([]int(nil), p.Orders...),
		Facilities:  FacilitiesIn(p.Facilities),
		TotalCost:   res.TotalCost,
		Assignments: []FacilityPlan{},
		Stats: SolveStats{
			Nodes:         m.Nodes,
			BoundPrunes:   m.BoundPrunes,
			DeadlineSkips: m.DeadlineSkips,
			Improvements:  m.Improvements,
			ElapsedMs:     m.Elapsed.Milliseconds(),
		},
	}
	if !res.Feasible() {
		return plan
	}
	plan.Status = PlanFeasible
	for _, a := range res.Assignments {
		plan.Assignments = append(plan.Assignments, FacilityPlan{
			FacilityID: a.Facility.ID,
			Orders:     append([]int(nil), a.Orders...),
			TotalDays:  a.TotalDays,
			TotalCost:  a.TotalCost,
		})
	}
	return plan
}
