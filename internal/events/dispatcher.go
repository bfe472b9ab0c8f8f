package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/castfund/backend/internal/metrics"
)

// Dispatcher is the in-process fan-out. Publish never blocks on a consumer:
// a connection that cannot keep up is dropped with ErrSlowConsumer.
type Dispatcher struct {
	queueSize int
	logger    *slog.Logger

	mu   sync.RWMutex
	subs map[string]*Subscription
}

var _ Publisher = (*Dispatcher)(nil)

func NewDispatcher(queueSize int, logger *slog.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		queueSize: queueSize,
		logger:    logger,
		subs:      make(map[string]*Subscription),
	}
}

// Subscribe opens a connection for accountID. Events keyed to the account
// are delivered without an explicit Watch.
func (d *Dispatcher) Subscribe(accountID string) *Subscription {
	s := newSubscription(d, uuid.NewString(), accountID, d.queueSize)

	d.mu.Lock()
	d.subs[s.ID] = s
	n := len(d.subs)
	d.mu.Unlock()

	metrics.StreamSubscribers.Set(float64(n))
	d.logger.Debug("[STREAM] subscribed", "connection_id", s.ID, "account_id", accountID)
	return s
}

// Get finds a live subscription by connection id.
func (d *Dispatcher) Get(connectionID string) (*Subscription, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.subs[connectionID]
	return s, ok
}

func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

func (d *Dispatcher) Publish(ctx context.Context, e Event) error {
	interest := e.interest()
	metrics.EventsPublished.WithLabelValues(string(e.Type)).Inc()

	var slow []*Subscription
	d.mu.RLock()
	for _, s := range d.subs {
		if !s.matches(interest) {
			continue
		}
		if !s.offer(e) {
			slow = append(slow, s)
		}
	}
	d.mu.RUnlock()

	for _, s := range slow {
		d.logger.Warn("[STREAM] dropping slow consumer", "connection_id", s.ID, "account_id", s.AccountID, "event", e.Type)
		metrics.SlowConsumersDropped.Inc()
		d.remove(s, ErrSlowConsumer)
	}
	return nil
}

func (d *Dispatcher) remove(s *Subscription, reason error) {
	d.mu.Lock()
	_, ok := d.subs[s.ID]
	delete(d.subs, s.ID)
	n := len(d.subs)
	d.mu.Unlock()

	s.finish(reason)
	if ok {
		metrics.StreamSubscribers.Set(float64(n))
	}
}

// Close ends every live subscription.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	subs := d.subs
	d.subs = make(map[string]*Subscription)
	d.mu.Unlock()

	for _, s := range subs {
		s.finish(ErrClosed)
	}
	metrics.StreamSubscribers.Set(0)
}
