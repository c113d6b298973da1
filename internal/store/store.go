package store

import (
	"context"
	"errors"
	"time"

	"factoryplan/internal/model"
)

// Store is the persistence interface used by the API server and the webhook worker.
type Store interface {
	Ping(ctx context.Context) error

	// Plans
	SavePlan(ctx context.Context, plan model.Plan) (model.Plan, error)
	GetPlan(ctx context.Context, tenantID, planID string) (model.Plan, error)
	ListPlans(ctx context.Context, tenantID, planDate, cursor string, limit int) ([]model.Plan, string, error)

	// Plan metrics
	SavePlanMetrics(ctx context.Context, tenantID, planDate, planID string, metrics map[string]any) error
	ListPlanMetrics(ctx context.Context, tenantID, planDate string) ([]map[string]any, error)

	// Optimizer config per tenant
	GetOptimizerConfig(ctx context.Context, tenantID string) (map[string]any, error)
	SaveOptimizerConfig(ctx context.Context, tenantID string, cfg map[string]any) error

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
}

var ErrNotFound = errors.New("not found")

// WebhookDelivery is a due delivery handed to the worker. Secret signs Payload; Attempts counts
// the attempts made before this one.
type WebhookDelivery struct {
	ID, TenantID, SubscriptionID string
	EventType, URL, Secret       string
	Payload                      []byte
	Status                       string
	Attempts                     int
}

// Delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryDead      = "dead"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return defaultLimit
	}
	return limit
}
