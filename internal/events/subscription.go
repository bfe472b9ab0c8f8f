package events

import (
	"errors"
	"sync"
	"time"
)

// ErrSlowConsumer closes a subscription whose queue overflowed.
var ErrSlowConsumer = errors.New("events: slow consumer")

// ErrClosed is reported for a subscription closed by its owner or on shutdown.
var ErrClosed = errors.New("events: subscription closed")

type Subscription struct {
	ID        string
	AccountID string
	OpenedAt  time.Time

	d     *Dispatcher
	queue chan Event
	done  chan struct{}
	once  sync.Once
	err   error
	mu    sync.RWMutex
	keys  map[string]struct{}
}

func newSubscription(d *Dispatcher, id, accountID string, size int) *Subscription {
	s := &Subscription{
		ID:        id,
		AccountID: accountID,
		OpenedAt:  time.Now().UTC(),
		d:         d,
		queue:     make(chan Event, size),
		done:      make(chan struct{}),
		keys:      make(map[string]struct{}),
	}
	if accountID != "" {
		s.keys[AccountKey(accountID)] = struct{}{}
	}
	return s
}

// Events is never closed; select on Done as well.
func (s *Subscription) Events() <-chan Event { return s.queue }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the subscription ended, or nil while it is live.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Watch adds interest keys such as EpisodeKey(id).
func (s *Subscription) Watch(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if k != "" {
			s.keys[k] = struct{}{}
		}
	}
}

func (s *Subscription) Unwatch(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.keys, k)
	}
}

func (s *Subscription) Close() {
	s.d.remove(s, ErrClosed)
}

func (s *Subscription) matches(interest []string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range interest {
		if _, ok := s.keys[k]; ok {
			return true
		}
	}
	return false
}

// offer never blocks.
func (s *Subscription) offer(e Event) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.queue <- e:
		return true
	default:
		return false
	}
}

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}
