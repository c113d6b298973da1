package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"factoryplan/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate applies the embedded migrations in lexical order. Every statement is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := migrationsFS.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

// Plans

func (p *Postgres) SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error) {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	created := time.Now().UTC()
	if plan.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, plan.CreatedAt); err == nil {
			created = t
		}
	}
	plan.CreatedAt = created.Format(time.RFC3339)
	orders, _ := json.Marshal(plan.Orders)
	facilities, _ := json.Marshal(plan.Facilities)
	assignments, _ := json.Marshal(plan.Assignments)
	stats, _ := json.Marshal(plan.Stats)
	_, err := p.db.ExecContext(ctx, `INSERT INTO plans (id, tenant_id, plan_date, status, deadline, setup_charge, orders, facilities, total_cost, assignments, stats, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (id) DO UPDATE SET status=$4, total_cost=$9, assignments=$10, stats=$11`,
		plan.ID, plan.TenantID, plan.PlanDate, plan.Status, plan.Deadline, plan.SetupCharge, orders, facilities, plan.TotalCost, assignments, stats, created)
	if err != nil {
		return model.Plan{}, err
	}
	return plan, nil
}

const planColumns = `id::text, tenant_id, plan_date, status, deadline, setup_charge, orders, facilities, total_cost, assignments, stats, created_at`

func scanPlan(sc interface{ Scan(...any) error }) (model.Plan, error) {
	var pl model.Plan
	var orders, facilities, assignments, stats []byte
	var created time.Time
	if err := sc.Scan(&pl.ID, &pl.TenantID, &pl.PlanDate, &pl.Status, &pl.Deadline, &pl.SetupCharge, &orders, &facilities, &pl.TotalCost, &assignments, &stats, &created); err != nil {
		return model.Plan{}, err
	}
	for _, f := range []struct {
		raw []byte
		dst any
	}{{orders, &pl.Orders}, {facilities, &pl.Facilities}, {assignments, &pl.Assignments}, {stats, &pl.Stats}} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return model.Plan{}, fmt.Errorf("decode plan %s: %w", pl.ID, err)
		}
	}
	if pl.Assignments == nil {
		pl.Assignments = []model.FacilityPlan{}
	}
	pl.CreatedAt = created.UTC().Format(time.RFC3339)
	return pl, nil
}

func (p *Postgres) GetPlan(ctx context.Context, tenantID, planID string) (model.Plan, error) {
	if _, err := uuid.Parse(planID); err != nil {
		return model.Plan{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE tenant_id=$1 AND id=$2`, tenantID, planID)
	pl, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	return pl, err
}

// ListPlans pages by (created_at, id). The cursor is the id of the last plan returned.
func (p *Postgres) ListPlans(ctx context.Context, tenantID, planDate, cursor string, limit int) ([]model.Plan, string, error) {
	limit = clampLimit(limit)
	q := `SELECT ` + planColumns + ` FROM plans WHERE tenant_id=$1`
	args := []any{tenantID}
	if planDate != "" {
		args = append(args, planDate)
		q += fmt.Sprintf(` AND plan_date=$%d`, len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(` AND (created_at, id::text) > (SELECT created_at, id::text FROM plans WHERE id::text=$%d)`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY created_at, id LIMIT $%d`, len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Plan{}
	for rows.Next() {
		pl, err := scanPlan(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

// Plan metrics

func (p *Postgres) SavePlanMetrics(ctx context.Context, tenantID, planDate, planID string, metrics map[string]any) error {
	js, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO plan_metrics (tenant_id, plan_date, plan_id, metrics, created_at) VALUES ($1,$2,$3,$4,now())
        ON CONFLICT (tenant_id, plan_id) DO UPDATE SET metrics=$4, created_at=now()`, tenantID, planDate, planID, js)
	return err
}

func (p *Postgres) ListPlanMetrics(ctx context.Context, tenantID, planDate string) ([]map[string]any, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT plan_id::text, metrics FROM plan_metrics WHERE tenant_id=$1 AND plan_date=$2 ORDER BY created_at`, tenantID, planDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var planID string
		var js []byte
		if err := rows.Scan(&planID, &js); err != nil {
			return nil, err
		}
		item := map[string]any{}
		if err := json.Unmarshal(js, &item); err != nil {
			return nil, err
		}
		item["planId"] = planID
		out = append(out, item)
	}
	return out, rows.Err()
}

// Optimizer config

func (p *Postgres) GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	row := p.db.QueryRowContext(ctx, `SELECT config FROM optimizer_config WHERE tenant_id=$1`, tenantID)
	var js []byte
	if err := row.Scan(&js); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var cfg map[string]any
	if err := json.Unmarshal(js, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Postgres) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	js, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO optimizer_config (tenant_id, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, js)
	return err
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, req.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	match, _ := json.Marshal([]string{eventType})
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions
        WHERE tenant_id=$1 AND (events @> $2::jsonb OR events @> '["*"]'::jsonb) ORDER BY created_at`, tenantID, string(match))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	limit = clampLimit(limit)
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Subscription{}
	var last string
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &ev); err != nil {
			return nil, "", err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(payload)
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status='pending' AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', last_error=NULL, delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
		return err
	}
	next := time.Now().Add(time.Minute)
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`, id, nullIfEmpty(lastError), next, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='dead', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	limit = clampLimit(limit)
	q := `SELECT id::text, COALESCE(subscription_id::text,''), event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0), url FROM webhook_deliveries WHERE tenant_id=$1`
	args := []any{tenantID}
	if status != "" {
		args = append(args, status)
		q += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += fmt.Sprintf(` AND id::text > $%d`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var d WebhookDelivery
		var nextAt sql.NullTime
		var lastErr string
		var code int
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.Status, &d.Attempts, &nextAt, &lastErr, &code, &d.URL); err != nil {
			return nil, "", err
		}
		out = append(out, deliveryItem(d, nextAt.Time, lastErr, code))
		last = d.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

// computeDedupKey uses the event id when the payload carries one, else a short content hash.
func computeDedupKey(payload []byte) string {
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
