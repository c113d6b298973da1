package opt

import (
	"errors"
	"fmt"
	"time"
)

// Infeasible is the TotalCost reported when no assignment meets the deadline.
const Infeasible int64 = -1

var (
	// ErrInvalidProblem wraps every input validation failure.
	ErrInvalidProblem = errors.New("invalid problem")
	// ErrSearchBudget is returned when Options.TimeBudget or Options.MaxNodes is exhausted.
	ErrSearchBudget = errors.New("search budget exhausted")
)

// Problem is the fixed input of one search: every order goes to exactly one facility and no
// facility may accumulate more than Deadline days.
type Problem struct {
	Deadline   int
	Orders     []int
	Facilities []Facility
}

// Validate rejects inputs the search cannot run on.
func (p Problem) Validate() error {
	if p.Deadline < 0 {
		return fmt.Errorf("%w: deadline must be >= 0, got %d", ErrInvalidProblem, p.Deadline)
	}
	if len(p.Orders) == 0 {
		return fmt.Errorf("%w: at least one order is required", ErrInvalidProblem)
	}
	if len(p.Facilities) == 0 {
		return fmt.Errorf("%w: at least one facility is required", ErrInvalidProblem)
	}
	for i, q := range p.Orders {
		if q <= 0 {
			return fmt.Errorf("%w: order %d quantity must be > 0, got %d", ErrInvalidProblem, i, q)
		}
	}
	for _, f := range p.Facilities {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SetupCharge selects how facility setup cost enters the objective.
type SetupCharge int

const (
	// SetupPerOrder charges the setup cost on every order a facility receives.
	SetupPerOrder SetupCharge = iota
	// SetupPerFacility charges the setup cost once per facility that receives any order.
	SetupPerFacility
)

func (c SetupCharge) String() string {
	switch c {
	case SetupPerOrder:
		return "per_order"
	case SetupPerFacility:
		return "per_facility"
	default:
		return fmt.Sprintf("SetupCharge(%d)", int(c))
	}
}

// ParseSetupCharge maps "per_order" (or "") and "per_facility" to a SetupCharge.
func ParseSetupCharge(s string) (SetupCharge, error) {
	switch s {
	case "", "per_order":
		return SetupPerOrder, nil
	case "per_facility":
		return SetupPerFacility, nil
	default:
		return SetupPerOrder, fmt.Errorf("%w: unknown setup charge %q (allowed: per_order, per_facility)", ErrInvalidProblem, s)
	}
}

// Options tune a single search. The zero value runs the reference search with no budget.
type Options struct {
	SetupCharge    SetupCharge
	TimeBudget     time.Duration // 0 = unlimited
	MaxNodes       int           // 0 = unlimited
	DisablePruning bool          // testing only: skip the cost bound
}

// Metrics describes the work done by one search.
type Metrics struct {
	Nodes          int
	BoundPrunes    int
	DeadlineSkips  int
	Improvements   int
	BestCost       int64
	Elapsed        time.Duration
	SetupCharge    SetupCharge
	PruningEnabled bool
}

// FacilityAssignment is the part of a solution placed on one facility.
type FacilityAssignment struct {
	Facility  Facility
	Orders    []int
	TotalDays int
	TotalCost int64
}

// Result is the outcome of a search. Facilities without orders are omitted from Assignments.
type Result struct {
	TotalCost   int64
	Assignments []FacilityAssignment
}

// Feasible reports whether a complete assignment was found.
func (r Result) Feasible() bool { return r.TotalCost != Infeasible }
