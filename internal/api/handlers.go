package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"factoryplan/internal/metrics"
	"factoryplan/internal/model"
	"factoryplan/internal/obs"
	"factoryplan/internal/opt"
	"factoryplan/internal/store"
)

// statusClientClosed is the non-standard status logged when the caller goes away mid-search.
const statusClientClosed = 499

// OptimizeHandler handles POST /v1/optimize
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if req.TenantID == "" {
		req.TenantID = p.Tenant
	}
	if s.Auth != nil && req.TenantID != p.Tenant {
		writeProblem(w, http.StatusForbidden, "Forbidden", "tenantId does not match the authenticated tenant", r.URL.Path)
		return
	}
	if !s.Limiter.Allow(req.TenantID) {
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "optimize rate limit exceeded for tenant "+req.TenantID, r.URL.Path)
		return
	}
	if err := validateOptimizeRequest(&req, s.Cfg.Solver); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}

	ctx := r.Context()
	opts, err := s.solveOptions(ctx, req)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}
	problem := req.Problem()
	res, m, err := s.solve(ctx, problem, opts)
	if err != nil {
		status, title := solveErrorStatus(err)
		writeProblem(w, status, title, err.Error(), r.URL.Path)
		return
	}

	// A finished search is persisted and announced even if the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	plan, err := s.Store.SavePlan(ctx, model.NewPlan(req.TenantID, req.PlanDate, problem, res, m))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save plan failed", err.Error(), r.URL.Path)
		return
	}
	if err := s.Store.SavePlanMetrics(ctx, plan.TenantID, plan.PlanDate, plan.ID, planMetrics(plan, m)); err != nil {
		s.Log.WarnContext(ctx, "save plan metrics", "plan_id", plan.ID, "err", err)
	}
	s.announce(ctx, plan)
	writeJSON(w, http.StatusOK, plan)
}

// solve runs the search and records its outcome.
func (s *Server) solve(ctx context.Context, p opt.Problem, o opt.Options) (res opt.Result, m opt.Metrics, err error) {
	done := obs.Time(ctx, "solve")
	defer func() { done(&err) }()

	res, m, err = s.Solver.Solve(ctx, p, o)
	metrics.ObserveSolve(solveOutcome(res, err), m.Elapsed, m.Nodes)
	return res, m, err
}

func solveOutcome(res opt.Result, err error) string {
	switch {
	case err == nil && res.Feasible():
		return "feasible"
	case err == nil:
		return "infeasible"
	case errors.Is(err, opt.ErrInvalidProblem):
		return "invalid"
	case errors.Is(err, opt.ErrSearchBudget):
		return "budget"
	default:
		return "canceled"
	}
}

func solveErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, opt.ErrInvalidProblem):
		return http.StatusBadRequest, "Invalid problem"
	case errors.Is(err, opt.ErrSearchBudget):
		return http.StatusUnprocessableEntity, "Search budget exhausted"
	case errors.Is(err, context.Canceled):
		return statusClientClosed, "Request canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Request timed out"
	default:
		return http.StatusInternalServerError, "Solve failed"
	}
}

// solveOptions resolves request values over tenant overrides over service defaults. Request
// budgets are capped by the service limits.
func (s *Server) solveOptions(ctx context.Context, req model.OptimizeRequest) (opt.Options, error) {
	lim := s.Cfg.Solver
	budgetMs, maxNodes, charge := lim.TimeBudgetMs, lim.MaxNodes, ""

	cfg, err := s.Store.GetOptimizerConfig(ctx, req.TenantID)
	if err != nil {
		s.Log.WarnContext(ctx, "load tenant optimizer config", "tenant", req.TenantID, "err", err)
	}
	if v, ok := intFrom(cfg["timeBudgetMs"]); ok && v > 0 {
		budgetMs = v
	}
	if v, ok := intFrom(cfg["maxNodes"]); ok && v > 0 {
		maxNodes = v
	}
	if v, ok := cfg["setupCharge"].(string); ok {
		charge = v
	}

	if req.TimeBudgetMs > 0 {
		budgetMs = req.TimeBudgetMs
	}
	if req.MaxNodes > 0 {
		maxNodes = req.MaxNodes
	}
	if req.SetupCharge != "" {
		charge = req.SetupCharge
	}
	budgetMs = capLimit(budgetMs, lim.TimeBudgetMs)
	maxNodes = capLimit(maxNodes, lim.MaxNodes)

	sc, err := opt.ParseSetupCharge(charge)
	if err != nil {
		return opt.Options{}, err
	}
	return opt.Options{
		SetupCharge: sc,
		TimeBudget:  time.Duration(budgetMs) * time.Millisecond,
		MaxNodes:    maxNodes,
	}, nil
}

// capLimit keeps v within a non-zero ceiling. A zero ceiling means unlimited.
func capLimit(v, ceiling int) int {
	if ceiling > 0 && (v <= 0 || v > ceiling) {
		return ceiling
	}
	return v
}

func planMetrics(plan model.Plan, m opt.Metrics) map[string]any {
	return map[string]any{
		"status":        plan.Status,
		"setupCharge":   plan.SetupCharge,
		"nodes":         m.Nodes,
		"boundPrunes":   m.BoundPrunes,
		"deadlineSkips": m.DeadlineSkips,
		"improvements":  m.Improvements,
		"bestCost":      m.BestCost,
		"elapsedMs":     m.Elapsed.Milliseconds(),
	}
}

// announce publishes the plan event on the broker and enqueues webhooks for it.
func (s *Server) announce(ctx context.Context, plan model.Plan) {
	typ := model.EventPlanSolved
	if plan.Status == model.PlanInfeasible {
		typ = model.EventPlanInfeasible
	}
	evt := model.Event{
		ID:       uuid.New().String(),
		Type:     typ,
		TenantID: plan.TenantID,
		TS:       time.Now().UTC().Format(time.RFC3339),
		Data: map[string]any{
			"planId":    plan.ID,
			"planDate":  plan.PlanDate,
			"status":    plan.Status,
			"totalCost": plan.TotalCost,
		},
	}
	s.Broker.Publish(plan.TenantID, evt)
	s.Pub.Emit(ctx, evt)
}

// OptimizerConfigHandler returns the effective optimizer defaults for the caller's tenant.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	defaults := map[string]any{
		"setupCharge":   opt.SetupPerOrder.String(),
		"timeBudgetMs":  s.Cfg.Solver.TimeBudgetMs,
		"maxNodes":      s.Cfg.Solver.MaxNodes,
		"maxOrders":     s.Cfg.Solver.MaxOrders,
		"maxFacilities": s.Cfg.Solver.MaxFacilities,
	}
	cfg, err := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load config failed", err.Error(), r.URL.Path)
		return
	}
	for k, v := range cfg {
		defaults[k] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"defaults": defaults})
}

// AdminOptimizerConfigHandler gets or replaces the tenant override document.
func (s *Server) AdminOptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Load config failed", err.Error(), r.URL.Path)
			return
		}
		if cfg == nil {
			cfg = map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"config": cfg})
	case http.MethodPut:
		var body struct {
			Config map[string]any `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if body.Config == nil {
			writeProblem(w, http.StatusBadRequest, "Missing config", "", r.URL.Path)
			return
		}
		if err := validateOptimizerConfig(body.Config); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid config", err.Error(), r.URL.Path)
			return
		}
		if err := s.Store.SaveOptimizerConfig(r.Context(), p.Tenant, body.Config); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// PlansHandler handles GET /v1/plans?planDate=&cursor=&limit=
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	q := r.URL.Query()
	items, next, err := s.Store.ListPlans(r.Context(), p.Tenant, q.Get("planDate"), q.Get("cursor"), queryLimit(r))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// PlanByIDHandler handles GET /v1/plans/{id}
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	plan, err := s.Store.GetPlan(r.Context(), p.Tenant, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "plan not found", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get plan failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// PlanMetricsHandler lists search metrics of the tenant's plans for one plan date.
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	planDate := r.URL.Query().Get("planDate")
	if planDate == "" {
		writeProblem(w, http.StatusBadRequest, "Missing planDate", "", r.URL.Path)
		return
	}
	items, err := s.Store.ListPlanMetrics(r.Context(), p.Tenant, planDate)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Metrics failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		req.TenantID = p.Tenant
		if err := validateSubscription(req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), queryLimit(r))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	err := s.Store.DeleteSubscription(r.Context(), p.Tenant, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "subscription not found", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebhookDeliveriesHandler lists the tenant's webhook deliveries, optionally by status.
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, q.Get("status"), q.Get("cursor"), queryLimit(r))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
