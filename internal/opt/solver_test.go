package opt

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func referenceProblem() Problem {
	return Problem{
		Deadline: 8,
		Orders:   []int{5, 5, 1, 1, 1},
		Facilities: []Facility{
			{ID: "1", UnitsPerDay: 1, CostPerUnit: 1, SetupCost: 7, SetupDays: 3},
			{ID: "2", UnitsPerDay: 1, CostPerUnit: 4, SetupCost: 1, SetupDays: 3},
			{ID: "3", UnitsPerDay: 6, CostPerUnit: 2, SetupCost: 5, SetupDays: 1},
		},
	}
}

// bruteForce enumerates every facility choice for every order and returns the cheapest
// cost whose per-facility days fit the deadline.
func bruteForce(p Problem, charge SetupCharge) int64 {
	n, k := len(p.Orders), len(p.Facilities)
	choice := make([]int, n)
	best := int64(math.MaxInt64)
	for {
		lists := make([][]int, k)
		for i, f := range choice {
			lists[f] = append(lists[f], p.Orders[i])
		}
		var total int64
		ok := true
		for f, qs := range lists {
			days, cost := Totals(p.Facilities[f], qs, charge)
			if days > p.Deadline {
				ok = false
				break
			}
			total += cost
		}
		if ok && total < best {
			best = total
		}

		i := 0
		for ; i < n; i++ {
			choice[i]++
			if choice[i] < k {
				break
			}
			choice[i] = 0
		}
		if i == n {
			break
		}
	}
	if best == math.MaxInt64 {
		return Infeasible
	}
	return best
}

func randomProblem(rng *rand.Rand, maxOrders, maxFacilities int) Problem {
	p := Problem{Deadline: rng.Intn(15)}
	for i := 0; i < 1+rng.Intn(maxOrders); i++ {
		p.Orders = append(p.Orders, 1+rng.Intn(12))
	}
	for i := 0; i < 1+rng.Intn(maxFacilities); i++ {
		p.Facilities = append(p.Facilities, Facility{
			ID:          string(rune('A' + i)),
			UnitsPerDay: 1 + rng.Intn(6),
			CostPerUnit: int64(rng.Intn(5)),
			SetupCost:   int64(rng.Intn(10)),
			SetupDays:   rng.Intn(3),
		})
	}
	return p
}

func TestSolveReferenceSample(t *testing.T) {
	p := referenceProblem()
	res, m, err := Solve(context.Background(), p, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := bruteForce(p, SetupPerOrder); res.TotalCost != want {
		t.Fatalf("total cost = %d, brute force = %d", res.TotalCost, want)
	}

	want := Result{
		TotalCost: 44,
		Assignments: []FacilityAssignment{
			{Facility: p.Facilities[0], Orders: []int{5}, TotalDays: 8, TotalCost: 12},
			{Facility: p.Facilities[1], Orders: []int{1, 1}, TotalDays: 8, TotalCost: 10},
			{Facility: p.Facilities[2], Orders: []int{5, 1}, TotalDays: 4, TotalCost: 22},
		},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}

	if m.BestCost != 44 {
		t.Errorf("metrics best cost = %d, want 44", m.BestCost)
	}
	if m.Improvements == 0 || m.Nodes == 0 {
		t.Errorf("metrics not recorded: %+v", m)
	}
	if !m.PruningEnabled {
		t.Errorf("pruning should be enabled by default")
	}
}

func TestSolvePerFacilitySetup(t *testing.T) {
	p := referenceProblem()
	res, _, err := Solve(context.Background(), p, Options{SetupCharge: SetupPerFacility})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := bruteForce(p, SetupPerFacility); res.TotalCost != want {
		t.Fatalf("total cost = %d, brute force = %d", res.TotalCost, want)
	}
	if res.TotalCost != 33 {
		t.Fatalf("total cost = %d, want 33", res.TotalCost)
	}

	var sum int64
	for _, a := range res.Assignments {
		sum += a.TotalCost
	}
	if sum != res.TotalCost {
		t.Fatalf("facility costs sum to %d, total is %d", sum, res.TotalCost)
	}
}

func TestSolveSingleOrderSingleFacility(t *testing.T) {
	p := Problem{
		Deadline:   1,
		Orders:     []int{10},
		Facilities: []Facility{{ID: "only", UnitsPerDay: 10, CostPerUnit: 1}},
	}
	res, _, err := Solve(context.Background(), p, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalCost != 10 {
		t.Fatalf("total cost = %d, want 10", res.TotalCost)
	}
	if len(res.Assignments) != 1 || res.Assignments[0].TotalDays != 1 {
		t.Fatalf("unexpected assignments: %+v", res.Assignments)
	}
}

func TestSolveInfeasible(t *testing.T) {
	tests := []struct {
		name string
		p    Problem
	}{
		{
			name: "setup days exceed deadline",
			p: Problem{
				Deadline: 1,
				Orders:   []int{3},
				Facilities: []Facility{
					{ID: "a", UnitsPerDay: 1, SetupDays: 1},
					{ID: "b", UnitsPerDay: 2, SetupDays: 1},
				},
			},
		},
		{
			name: "zero deadline",
			p: Problem{
				Deadline:   0,
				Orders:     []int{1},
				Facilities: []Facility{{ID: "a", UnitsPerDay: 100}},
			},
		},
		{
			name: "capacity runs out for the last order",
			p: Problem{
				Deadline:   2,
				Orders:     []int{1, 1, 1},
				Facilities: []Facility{{ID: "a", UnitsPerDay: 1}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, m, err := Solve(context.Background(), tt.p, Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Feasible() || res.TotalCost != Infeasible {
				t.Fatalf("expected infeasible, got %+v", res)
			}
			if res.Assignments != nil {
				t.Fatalf("infeasible result must carry no assignments, got %+v", res.Assignments)
			}
			if m.BestCost != Infeasible {
				t.Fatalf("metrics best cost = %d, want %d", m.BestCost, Infeasible)
			}
		})
	}
}

func TestSolvePruningEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		p := randomProblem(rng, 4, 2)
		if i%3 == 0 {
			p = randomProblem(rng, 6, 3)
		}
		for _, charge := range []SetupCharge{SetupPerOrder, SetupPerFacility} {
			pruned, pm, err := Solve(context.Background(), p, Options{SetupCharge: charge})
			if err != nil {
				t.Fatalf("case %d: %v", i, err)
			}
			full, fm, err := Solve(context.Background(), p, Options{SetupCharge: charge, DisablePruning: true})
			if err != nil {
				t.Fatalf("case %d: %v", i, err)
			}
			want := bruteForce(p, charge)
			if pruned.TotalCost != want || full.TotalCost != want {
				t.Fatalf("case %d (%s): pruned=%d unpruned=%d brute=%d problem=%+v",
					i, charge, pruned.TotalCost, full.TotalCost, want, p)
			}
			if fm.BoundPrunes != 0 {
				t.Fatalf("case %d: unpruned search recorded %d bound prunes", i, fm.BoundPrunes)
			}
			if pm.Nodes > fm.Nodes {
				t.Fatalf("case %d: pruned search visited more nodes (%d > %d)", i, pm.Nodes, fm.Nodes)
			}
		}
	}
}

func TestSolveReconstructionAndCompleteness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		p := randomProblem(rng, 6, 3)
		for _, charge := range []SetupCharge{SetupPerOrder, SetupPerFacility} {
			res, _, err := Solve(context.Background(), p, Options{SetupCharge: charge})
			if err != nil {
				t.Fatalf("case %d: %v", i, err)
			}
			if !res.Feasible() {
				continue
			}

			var placed []int
			var total int64
			for _, a := range res.Assignments {
				if len(a.Orders) == 0 {
					t.Fatalf("case %d: facility %q reported with no orders", i, a.Facility.ID)
				}
				days, cost := Totals(a.Facility, a.Orders, charge)
				if days != a.TotalDays || cost != a.TotalCost {
					t.Fatalf("case %d: facility %q reported (%d days, %d cost), recomputed (%d, %d)",
						i, a.Facility.ID, a.TotalDays, a.TotalCost, days, cost)
				}
				if days > p.Deadline {
					t.Fatalf("case %d: facility %q uses %d days, deadline %d", i, a.Facility.ID, days, p.Deadline)
				}
				placed = append(placed, a.Orders...)
				total += cost
			}
			if total != res.TotalCost {
				t.Fatalf("case %d: facility totals sum to %d, result says %d", i, total, res.TotalCost)
			}

			want := slices.Clone(p.Orders)
			slices.Sort(want)
			slices.Sort(placed)
			if diff := cmp.Diff(want, placed); diff != "" {
				t.Fatalf("case %d: placed orders differ from input (-want +got):\n%s", i, diff)
			}
		}
	}
}

func TestSolveFeasibilityMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 40; i++ {
		p := randomProblem(rng, 5, 3)
		prev := Infeasible
		for d := 0; d <= 30; d++ {
			p.Deadline = d
			res, _, err := Solve(context.Background(), p, Options{})
			if err != nil {
				t.Fatalf("case %d deadline %d: %v", i, d, err)
			}
			if prev != Infeasible {
				if !res.Feasible() {
					t.Fatalf("case %d: feasible at deadline %d but not at %d", i, d-1, d)
				}
				if res.TotalCost > prev {
					t.Fatalf("case %d: cost rose from %d to %d when deadline grew to %d", i, prev, res.TotalCost, d)
				}
			}
			prev = res.TotalCost
		}
	}
}

func TestSolveDoesNotReorderInput(t *testing.T) {
	p := referenceProblem()
	p.Orders = []int{1, 5, 1, 5, 1}
	before := slices.Clone(p.Orders)
	if _, _, err := Solve(context.Background(), p, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(before, p.Orders) {
		t.Fatalf("orders mutated: %v -> %v", before, p.Orders)
	}
}

func TestSolveRejectsInvalidProblem(t *testing.T) {
	p := referenceProblem()
	p.Facilities[1].UnitsPerDay = 0
	_, _, err := Solve(context.Background(), p, Options{})
	if !errors.Is(err, ErrInvalidProblem) {
		t.Fatalf("err = %v, want ErrInvalidProblem", err)
	}
}

func wideProblem() Problem {
	p := Problem{Deadline: 100}
	for i := 0; i < 10; i++ {
		p.Orders = append(p.Orders, 1)
	}
	for _, id := range []string{"a", "b", "c"} {
		p.Facilities = append(p.Facilities, Facility{ID: id, UnitsPerDay: 1, CostPerUnit: 1})
	}
	return p
}

func TestSolveBudgets(t *testing.T) {
	t.Run("node limit", func(t *testing.T) {
		_, m, err := Solve(context.Background(), referenceProblem(), Options{MaxNodes: 5})
		if !errors.Is(err, ErrSearchBudget) {
			t.Fatalf("err = %v, want ErrSearchBudget", err)
		}
		if m.Nodes != 6 {
			t.Fatalf("nodes = %d, want 6", m.Nodes)
		}
	})

	t.Run("time budget", func(t *testing.T) {
		_, _, err := Solve(context.Background(), wideProblem(), Options{TimeBudget: time.Nanosecond, DisablePruning: true})
		if !errors.Is(err, ErrSearchBudget) {
			t.Fatalf("err = %v, want ErrSearchBudget", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, _, err := Solve(ctx, wideProblem(), Options{})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
		if res.Feasible() {
			t.Fatalf("canceled search must not return a result")
		}
	})

	t.Run("generous budget", func(t *testing.T) {
		res, _, err := Solve(context.Background(), referenceProblem(), Options{MaxNodes: 1_000_000, TimeBudget: time.Minute})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.TotalCost != 44 {
			t.Fatalf("total cost = %d, want 44", res.TotalCost)
		}
	})
}

func TestBranchAndBoundImplementsSolver(t *testing.T) {
	var s Solver = BranchAndBound{}
	res, _, err := s.Solve(context.Background(), referenceProblem(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalCost != 44 {
		t.Fatalf("total cost = %d, want 44", res.TotalCost)
	}
}

func TestSolveHugeMagnitudesDoNotWrap(t *testing.T) {
	tests := []struct {
		name     string
		p        Problem
		wantCost int64
	}{
		{
			name: "setup days overflow the deadline",
			p: Problem{Deadline: 0, Orders: []int{1}, Facilities: []Facility{
				{ID: "slow", UnitsPerDay: 1, SetupDays: math.MaxInt},
			}},
			wantCost: Infeasible,
		},
		{
			name: "quantity near max int",
			p: Problem{Deadline: 5, Orders: []int{math.MaxInt}, Facilities: []Facility{
				{ID: "a", UnitsPerDay: 2},
			}},
			wantCost: Infeasible,
		},
		{
			name: "accumulated days overflow",
			p: Problem{Deadline: math.MaxInt, Orders: []int{math.MaxInt, math.MaxInt}, Facilities: []Facility{
				{ID: "a", UnitsPerDay: 1},
			}},
			wantCost: Infeasible,
		},
		{
			name: "expensive facility is skipped",
			p: Problem{Deadline: 10, Orders: []int{2, 2}, Facilities: []Facility{
				{ID: "pricey", UnitsPerDay: 10, CostPerUnit: math.MaxInt64 / 2},
				{ID: "cheap", UnitsPerDay: 10, CostPerUnit: 1},
			}},
			wantCost: 4,
		},
		{
			name: "cost beyond int64 has no representable optimum",
			p: Problem{Deadline: 10, Orders: []int{2}, Facilities: []Facility{
				{ID: "pricey", UnitsPerDay: 10, CostPerUnit: math.MaxInt64, SetupCost: 1},
			}},
			wantCost: Infeasible,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, o := range []Options{{}, {DisablePruning: true}, {SetupCharge: SetupPerFacility}} {
				res, _, err := Solve(context.Background(), tt.p, o)
				if err != nil {
					t.Fatalf("%+v: unexpected error: %v", o, err)
				}
				if res.TotalCost != tt.wantCost {
					t.Fatalf("%+v: total cost = %d, want %d (%+v)", o, res.TotalCost, tt.wantCost, res)
				}
				for _, a := range res.Assignments {
					if a.TotalDays < 0 || a.TotalDays > tt.p.Deadline || a.TotalCost < 0 {
						t.Fatalf("%+v: bad assignment %+v", o, a)
					}
				}
			}
		})
	}
}
