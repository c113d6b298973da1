package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSolve(t *testing.T) {
	RegisterDefault()
	before := testutil.ToFloat64(SolverRuns.WithLabelValues("feasible"))
	ObserveSolve("feasible", 3*time.Millisecond, 120)
	if got := testutil.ToFloat64(SolverRuns.WithLabelValues("feasible")); got != before+1 {
		t.Fatalf("solver_runs_total{feasible} = %v, want %v", got, before+1)
	}
}

func TestHandlerExposesSolverMetrics(t *testing.T) {
	ObserveSolve("infeasible", time.Millisecond, 4)
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"solver_runs_total", "solver_duration_seconds", "solver_nodes"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
