package memory

import (
	"context"
	"sync"
	"time"

	"github.com/castfund/backend/internal/store"
)

// keyLocks hands out one binary semaphore per row key.
type keyLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newKeyLocks() *keyLocks {
	return &keyLocks{slots: make(map[string]chan struct{})}
}

func (k *keyLocks) slot(key string) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		k.slots[key] = s
	}
	return s
}

func (k *keyLocks) acquire(ctx context.Context, key string, timeout time.Duration) error {
	s := k.slot(key)

	select {
	case s <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return store.ErrConflict
	}
}

func (k *keyLocks) release(key string) {
	<-k.slot(key)
}
