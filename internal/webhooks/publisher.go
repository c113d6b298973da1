// Package webhooks queues plan events for subscribers and delivers them with signed POSTs.
package webhooks

import (
	"context"
	"encoding/json"
	"log/slog"

	"factoryplan/internal/model"
	"factoryplan/internal/store"
)

type Publisher struct {
	Store store.Store
	Log   *slog.Logger
}

func NewPublisher(s store.Store, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{Store: s, Log: log}
}

// Emit enqueues one delivery of evt per subscription of the event's tenant that wants its
// type. It returns the number of deliveries enqueued; failures are logged, not returned, so a
// broken queue never fails the request that produced the event.
func (p *Publisher) Emit(ctx context.Context, evt model.Event) int {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, evt.TenantID, evt.Type)
	if err != nil {
		p.Log.WarnContext(ctx, "webhook subscriptions lookup", "tenant", evt.TenantID, "event", evt.Type, "err", err)
		return 0
	}
	if len(subs) == 0 {
		return 0
	}
	body, err := json.Marshal(evt)
	if err != nil {
		p.Log.WarnContext(ctx, "webhook payload encode", "event", evt.Type, "err", err)
		return 0
	}
	n := 0
	for _, s := range subs {
		if _, err := p.Store.EnqueueWebhook(ctx, evt.TenantID, s.ID, evt.Type, s.URL, s.Secret, body); err != nil {
			p.Log.WarnContext(ctx, "webhook enqueue", "subscription", s.ID, "err", err)
			continue
		}
		n++
	}
	return n
}
