package opt

import (
	"fmt"
	"math"
)

// Facility is an immutable production resource. Durations are whole days.
type Facility struct {
	ID          string
	UnitsPerDay int
	CostPerUnit int64
	SetupCost   int64
	SetupDays   int
}

// NewFacility returns a validated Facility.
func NewFacility(id string, unitsPerDay int, costPerUnit, setupCost int64, setupDays int) (Facility, error) {
	f := Facility{
		ID:          id,
		UnitsPerDay: unitsPerDay,
		CostPerUnit: costPerUnit,
		SetupCost:   setupCost,
		SetupDays:   setupDays,
	}
	if err := f.Validate(); err != nil {
		return Facility{}, err
	}
	return f, nil
}

// Validate reports configuration errors. A zero throughput would divide by zero in DurationFor.
func (f Facility) Validate() error {
	if f.UnitsPerDay < 1 {
		return fmt.Errorf("%w: facility %q unitsPerDay must be >= 1, got %d", ErrInvalidProblem, f.ID, f.UnitsPerDay)
	}
	if f.CostPerUnit < 0 {
		return fmt.Errorf("%w: facility %q costPerUnit must be >= 0, got %d", ErrInvalidProblem, f.ID, f.CostPerUnit)
	}
	if f.SetupCost < 0 {
		return fmt.Errorf("%w: facility %q setupCost must be >= 0, got %d", ErrInvalidProblem, f.ID, f.SetupCost)
	}
	if f.SetupDays < 0 {
		return fmt.Errorf("%w: facility %q setupDays must be >= 0, got %d", ErrInvalidProblem, f.ID, f.SetupDays)
	}
	return nil
}

// DurationFor returns ceil(quantity/UnitsPerDay) + SetupDays, saturating at math.MaxInt.
func (f Facility) DurationFor(quantity int) int {
	days := quantity / f.UnitsPerDay
	if quantity%f.UnitsPerDay != 0 {
		days++
	}
	return addDays(days, f.SetupDays)
}

// CostFor returns quantity*CostPerUnit + SetupCost, saturating at math.MaxInt64. Every call
// includes the full setup cost, so a facility producing k orders is charged k setups.
func (f Facility) CostFor(quantity int) int64 {
	return addCost(f.productionCost(quantity), f.SetupCost)
}

func (f Facility) productionCost(quantity int) int64 {
	q := int64(quantity)
	if q != 0 && f.CostPerUnit > math.MaxInt64/q {
		return math.MaxInt64
	}
	return q * f.CostPerUnit
}

// addDays and addCost sum non-negative values, saturating instead of wrapping. A saturated
// sum never fits a deadline and never beats an incumbent.
func addDays(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func addCost(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
