package opt

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"
)

// checkInterval is how many nodes pass between clock and context checks.
const checkInterval = 1024

// Solver assigns orders to facilities.
type Solver interface {
	Solve(ctx context.Context, p Problem, o Options) (Result, Metrics, error)
}

// BranchAndBound is the exact depth-first Solver.
type BranchAndBound struct{}

var _ Solver = BranchAndBound{}

// Solve implements Solver.
func (BranchAndBound) Solve(ctx context.Context, p Problem, o Options) (Result, Metrics, error) {
	return Solve(ctx, p, o)
}

// Solve finds a minimum-cost assignment of every order to one facility such that no facility
// exceeds the deadline. An infeasible problem is not an error: the Result carries
// TotalCost == Infeasible. Errors are input validation (ErrInvalidProblem), an exhausted
// budget (ErrSearchBudget) or ctx cancellation; none of them return a partial result.
//
// Orders are explored largest first so deadline and cost cuts happen near the root. Among
// equal-cost optima the first one found is returned.
func Solve(ctx context.Context, p Problem, o Options) (Result, Metrics, error) {
	if err := p.Validate(); err != nil {
		return Result{TotalCost: Infeasible}, Metrics{}, fmt.Errorf("solve: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{TotalCost: Infeasible}, Metrics{}, fmt.Errorf("solve: %w", err)
	}

	start := time.Now()
	s := newSearch(ctx, p, o, start)
	s.descend(0, 0)
	s.m.Elapsed = time.Since(start)

	if s.err != nil {
		return Result{TotalCost: Infeasible}, s.m, fmt.Errorf("solve: %w", s.err)
	}
	if s.best == nil {
		s.m.BestCost = Infeasible
		return Result{TotalCost: Infeasible}, s.m, nil
	}
	s.m.BestCost = s.bestCost
	return s.assemble(), s.m, nil
}

// search holds the state of one Solve call. Nothing in it outlives the call.
type search struct {
	ctx        context.Context
	deadline   int
	orders     []int
	facilities []Facility
	charge     SetupCharge
	prune      bool
	maxNodes   int
	budget     time.Duration
	stopAt     time.Time

	// durations[i][f] is the days order i takes on facility f.
	durations [][]int

	// Path state, pushed on descent and popped on backtrack.
	days     []int
	assigned [][]int

	// Incumbent.
	bestCost int64
	best     [][]int

	m   Metrics
	err error
}

func newSearch(ctx context.Context, p Problem, o Options, start time.Time) *search {
	orders := slices.Clone(p.Orders)
	slices.SortFunc(orders, func(a, b int) int { return cmp.Compare(b, a) })

	durations := make([][]int, len(orders))
	for i, q := range orders {
		durations[i] = make([]int, len(p.Facilities))
		for f, fac := range p.Facilities {
			durations[i][f] = fac.DurationFor(q)
		}
	}

	s := &search{
		ctx:        ctx,
		deadline:   p.Deadline,
		orders:     orders,
		facilities: p.Facilities,
		charge:     o.SetupCharge,
		prune:      !o.DisablePruning,
		maxNodes:   o.MaxNodes,
		budget:     o.TimeBudget,
		durations:  durations,
		days:       make([]int, len(p.Facilities)),
		assigned:   make([][]int, len(p.Facilities)),
		bestCost:   math.MaxInt64,
		m: Metrics{
			SetupCharge:    o.SetupCharge,
			PruningEnabled: !o.DisablePruning,
		},
	}
	if o.TimeBudget > 0 {
		s.stopAt = start.Add(o.TimeBudget)
	}
	return s
}

func (s *search) descend(idx int, cost int64) {
	s.m.Nodes++
	if s.interrupted() {
		return
	}

	// Costs never decrease along a path, so no descendant can beat the incumbent.
	if s.prune && cost >= s.bestCost {
		s.m.BoundPrunes++
		return
	}

	if idx == len(s.orders) {
		if cost < s.bestCost {
			s.bestCost = cost
			s.best = make([][]int, len(s.assigned))
			for f, qs := range s.assigned {
				s.best[f] = slices.Clone(qs)
			}
			s.m.Improvements++
		}
		return
	}

	q := s.orders[idx]
	for f := range s.facilities {
		d := s.durations[idx][f]
		if next := addDays(s.days[f], d); next == math.MaxInt || next > s.deadline {
			s.m.DeadlineSkips++
			continue
		}
		step := s.stepCost(f, q)

		s.days[f] += d
		s.assigned[f] = append(s.assigned[f], q)

		s.descend(idx+1, addCost(cost, step))

		s.assigned[f] = s.assigned[f][:len(s.assigned[f])-1]
		s.days[f] -= d

		if s.err != nil {
			return
		}
	}
}

// stepCost is the cost added by placing q on facility f given the current path.
func (s *search) stepCost(f int, q int) int64 {
	fac := s.facilities[f]
	if s.charge == SetupPerFacility {
		c := fac.productionCost(q)
		if len(s.assigned[f]) == 0 {
			c = addCost(c, fac.SetupCost)
		}
		return c
	}
	return fac.CostFor(q)
}

func (s *search) interrupted() bool {
	if s.err != nil {
		return true
	}
	if s.maxNodes > 0 && s.m.Nodes > s.maxNodes {
		s.err = fmt.Errorf("%w: node limit %d reached", ErrSearchBudget, s.maxNodes)
		return true
	}
	if s.m.Nodes%checkInterval != 0 {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return true
	}
	if !s.stopAt.IsZero() && time.Now().After(s.stopAt) {
		s.err = fmt.Errorf("%w: time budget %s elapsed", ErrSearchBudget, s.budget)
		return true
	}
	return false
}

// assemble replays the incumbent through the facility formulas.
func (s *search) assemble() Result {
	res := Result{TotalCost: s.bestCost}
	for f, qs := range s.best {
		if len(qs) == 0 {
			continue
		}
		fac := s.facilities[f]
		days, cost := Totals(fac, qs, s.charge)
		res.Assignments = append(res.Assignments, FacilityAssignment{
			Facility:  fac,
			Orders:    qs,
			TotalDays: days,
			TotalCost: cost,
		})
	}
	return res
}

// Totals returns the committed days and the cost of producing orders on f.
func Totals(f Facility, orders []int, charge SetupCharge) (days int, cost int64) {
	for _, q := range orders {
		days = addDays(days, f.DurationFor(q))
		if charge == SetupPerFacility {
			cost = addCost(cost, f.productionCost(q))
		} else {
			cost = addCost(cost, f.CostFor(q))
		}
	}
	if charge == SetupPerFacility && len(orders) > 0 {
		cost = addCost(cost, f.SetupCost)
	}
	return days, cost
}
