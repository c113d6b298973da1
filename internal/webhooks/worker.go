package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"factoryplan/internal/metrics"
	"factoryplan/internal/store"
)

// Worker polls due deliveries and POSTs them to subscribers.
type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Stop        chan struct{}
	MaxAttempts int
	Interval    time.Duration
	BatchSize   int
	Log         *slog.Logger
}

func NewWorker(s store.Store, maxAttempts int, log *slog.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		Store:       s,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Stop:        make(chan struct{}),
		MaxAttempts: maxAttempts,
		Interval:    time.Second,
		BatchSize:   50,
		Log:         log,
	}
}

// Start polls for due deliveries until Stop is closed.
func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				w.processOnce(ctx)
				cancel()
			}
		}
	}()
}

func (w *Worker) processOnce(ctx context.Context) {
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, w.BatchSize)
	if err != nil {
		w.Log.WarnContext(ctx, "fetch due webhook deliveries", "err", err)
		return
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	code, latency, err := w.post(ctx, it)
	success := err == nil
	outcome := "delivered"
	lastErr := ""
	if !success {
		lastErr = err.Error()
		outcome = "retry"
		if it.Attempts+1 >= w.MaxAttempts {
			outcome = "dead"
		}
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, outcome).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, outcome).Observe(float64(latency))

	var storeErr error
	switch outcome {
	case "dead":
		w.Log.WarnContext(ctx, "webhook dead-lettered", "delivery", it.ID, "attempts", it.Attempts+1, "err", lastErr)
		storeErr = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
	case "retry":
		next := time.Now().Add(nextBackoff(it.Attempts))
		storeErr = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
	default:
		storeErr = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
	}
	if storeErr != nil {
		w.Log.WarnContext(ctx, "record webhook outcome", "delivery", it.ID, "err", storeErr)
	}
}

// post sends one delivery. Any non-2xx response is an error.
func (w *Worker) post(ctx context.Context, it store.WebhookDelivery) (code, latencyMs int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", it.EventType)
	req.Header.Set("X-Delivery-Id", it.ID)
	req.Header.Set("X-Delivery-Attempt", strconv.Itoa(it.Attempts+1))
	if it.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(it.Secret, it.Payload))
	}
	start := time.Now()
	resp, err := w.HTTP.Do(req)
	latencyMs = int(time.Since(start).Milliseconds())
	if err != nil {
		return 0, latencyMs, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, latencyMs, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, latencyMs, nil
}

// nextBackoff doubles from one second per attempt, capped at one hour.
func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 12 {
		attempts = 12
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
