package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"factoryplan/internal/model"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so every API replica sees every
// tenant's plan events.
type RedisBroker struct {
	rdb *redis.Client
	log *slog.Logger

	mu   sync.Mutex
	subs map[chan model.Event]*redis.PubSub
}

var _ EventBroker = (*RedisBroker)(nil)

func NewRedisBroker(url string, log *slog.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisBroker{rdb: redis.NewClient(opt), log: log, subs: map[chan model.Event]*redis.PubSub{}}, nil
}

// Ping checks the Redis connection.
func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Close() error { return b.rdb.Close() }

// Subscribe returns once Redis has confirmed the subscription. The channel is closed after
// Unsubscribe or when the connection is lost.
func (b *RedisBroker) Subscribe(topic string) chan model.Event {
	ch := make(chan model.Event, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ps := b.rdb.Subscribe(ctx, b.chanName(topic))
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Warn("redis subscribe", "topic", topic, "err", err)
	}

	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()

	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.Warn("redis event decode", "topic", topic, "err", err)
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the Redis subscription backing ch; the reader goroutine then closes ch.
func (b *RedisBroker) Unsubscribe(topic string, ch chan model.Event) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(topic string, evt model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		b.log.Warn("redis event encode", "topic", topic, "err", err)
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(topic), data).Err(); err != nil {
		b.log.Warn("redis publish", "topic", topic, "err", err)
	}
}

func (b *RedisBroker) chanName(topic string) string { return "plans:" + topic }
