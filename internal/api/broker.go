package api

import (
	"sync"

	"factoryplan/internal/model"
)

// EventBroker fans plan events out to live subscribers. Topics are tenant ids.
type EventBroker interface {
	Subscribe(topic string) chan model.Event
	Unsubscribe(topic string, ch chan model.Event)
	Publish(topic string, evt model.Event)
}

// Broker is the in-process EventBroker. Slow subscribers miss events rather than block
// publishers.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.Event]struct{} // topic -> set of channels
}

var _ EventBroker = (*Broker)(nil)

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan model.Event]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan model.Event {
	ch := make(chan model.Event, 8)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan model.Event]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch. Calling it twice for the same channel is a no-op.
func (b *Broker) Unsubscribe(topic string, ch chan model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

func (b *Broker) Publish(topic string, evt model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
}
