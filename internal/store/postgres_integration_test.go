//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"factoryplan/internal/model"
)

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	ctx := t.Context()
	require.NoError(t, p.Ping(ctx))
	require.NoError(t, p.Migrate(ctx))
	require.NoError(t, p.Migrate(ctx), "migrations must be re-runnable")

	saved, err := p.SavePlan(ctx, model.Plan{
		TenantID: "t_it", PlanDate: "2026-01-02", Status: model.PlanFeasible, Deadline: 10,
		SetupCharge: "per_order", Orders: []int{5, 1}, TotalCost: 12,
		Assignments: []model.FacilityPlan{{FacilityID: "1", Orders: []int{5, 1}, TotalDays: 4, TotalCost: 12}},
	})
	require.NoError(t, err)
	got, err := p.GetPlan(ctx, "t_it", saved.ID)
	require.NoError(t, err)
	require.Equal(t, saved.Assignments, got.Assignments)

	_, err = p.GetPlan(ctx, "other", saved.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, p.SavePlanMetrics(ctx, "t_it", "2026-01-02", saved.ID, map[string]any{"nodes": 7}))
	mx, err := p.ListPlanMetrics(ctx, "t_it", "2026-01-02")
	require.NoError(t, err)
	require.NotEmpty(t, mx)
}
