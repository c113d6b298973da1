package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"factoryplan/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu      sync.Mutex
	plans   map[string]model.Plan // id -> plan
	planTen map[string][]string   // tenant -> plan ids, insertion order
	subs    map[string][]model.Subscription
	// Webhooks queue state
	deliveries         map[string]*memDelivery // id -> delivery state
	deliveriesByTenant map[string][]string     // tenant -> delivery ids
	deliveryOrder      []string
	planMx             map[string]map[string][]map[string]any // tenant -> planDate -> items
	optCfg             map[string]map[string]any              // tenant -> config
	now                func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		plans:              map[string]model.Plan{},
		planTen:            map[string][]string{},
		subs:               map[string][]model.Subscription{},
		deliveries:         map[string]*memDelivery{},
		deliveriesByTenant: map[string][]string{},
		planMx:             map[string]map[string][]map[string]any{},
		optCfg:             map[string]map[string]any{},
		now:                time.Now,
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt == "" {
		plan.CreatedAt = m.now().UTC().Format(time.RFC3339)
	}
	if _, exists := m.plans[plan.ID]; !exists {
		m.planTen[plan.TenantID] = append(m.planTen[plan.TenantID], plan.ID)
	}
	m.plans[plan.ID] = plan
	return plan, nil
}

func (m *Memory) GetPlan(ctx context.Context, tenantID, planID string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok || p.TenantID != tenantID {
		return model.Plan{}, ErrNotFound
	}
	return p, nil
}

// ListPlans pages through a tenant's plans oldest first. The cursor is the id of the
// last plan on the previous page.
func (m *Memory) ListPlans(ctx context.Context, tenantID, planDate, cursor string, limit int) ([]model.Plan, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	ids := m.planTen[tenantID]
	start := 0
	if cursor != "" {
		if i := slices.Index(ids, cursor); i >= 0 {
			start = i + 1
		}
	}
	out := []model.Plan{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		p := m.plans[ids[i]]
		if planDate == "" || p.PlanDate == planDate {
			out = append(out, p)
		}
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

// SavePlanMetrics upserts one metrics row per plan id.
func (m *Memory) SavePlanMetrics(ctx context.Context, tenantID, planDate, planID string, metrics map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.planMx[tenantID] == nil {
		m.planMx[tenantID] = map[string][]map[string]any{}
	}
	row := make(map[string]any, len(metrics)+1)
	for k, v := range metrics {
		row[k] = v
	}
	row["planId"] = planID
	items := m.planMx[tenantID][planDate]
	found := false
	for i := range items {
		if items[i]["planId"] == planID {
			items[i] = row
			found = true
			break
		}
	}
	if !found {
		items = append(items, row)
	}
	m.planMx[tenantID][planDate] = items
	return nil
}

func (m *Memory) ListPlanMetrics(ctx context.Context, tenantID, planDate string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.planMx[tenantID][planDate]
	out := make([]map[string]any, 0, len(items))
	return append(out, items...), nil
}

// GetOptimizerConfig returns nil, nil when the tenant has no stored config.
func (m *Memory) GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.optCfg[tenantID]; ok {
		return cfg, nil
	}
	return nil, nil
}

func (m *Memory) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optCfg[tenantID] = cfg
	return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: slices.Clone(req.Events), Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		if slices.Contains(s.Events, eventType) || slices.Contains(s.Events, "*") {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	subs := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i, s := range subs {
			if s.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []model.Subscription{}
	for i := start; i < len(subs) && len(out) < limit; i++ {
		s := subs[i]
		s.Secret = ""
		out = append(out, s)
	}
	var next string
	if len(out) == limit && start+limit < len(subs) {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[tenantID]
	i := slices.IndexFunc(subs, func(s model.Subscription) bool { return s.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	m.subs[tenantID] = slices.Delete(subs, i, i+1)
	return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: DeliveryPending},
		NextAttemptAt:   m.now(),
	}
	m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
	m.deliveryOrder = append(m.deliveryOrder, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := []WebhookDelivery{}
	for _, id := range m.deliveryOrder {
		d := m.deliveries[id]
		if d.Status == DeliveryPending && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = DeliveryDelivered
		now := m.now()
		d.DeliveredAt = &now
		d.LastError = ""
		return nil
	}
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = m.now().Add(time.Minute)
	}
	return nil
}

// FailWebhookDelivery dead-letters a delivery; it is never fetched again.
func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = DeliveryDead
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	ids := m.deliveriesByTenant[tenantID]
	start := 0
	if cursor != "" {
		if i := slices.Index(ids, cursor); i >= 0 {
			start = i + 1
		}
	}
	out := []map[string]any{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		d := m.deliveries[ids[i]]
		next = ids[i]
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, deliveryItem(d.WebhookDelivery, d.NextAttemptAt, d.LastError, d.ResponseCode))
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func deliveryItem(d WebhookDelivery, nextAttemptAt time.Time, lastError string, responseCode int) map[string]any {
	item := map[string]any{"id": d.ID, "subscriptionId": d.SubscriptionID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
	if d.Status == DeliveryPending && !nextAttemptAt.IsZero() {
		item["nextAttemptAt"] = nextAttemptAt.UTC().Format(time.RFC3339)
	}
	if lastError != "" {
		item["lastError"] = lastError
	}
	if responseCode != 0 {
		item["responseCode"] = responseCode
	}
	return item
}
