// Package syncclient keeps a client-side cache coherent with the server's
// event stream. Events never carry the new state: they mark cache entries
// STALE and the next read refetches.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var ErrUnknownKey = errors.New("syncclient: key not registered")

type State string

const (
	Fresh State = "FRESH"
	Stale State = "STALE"
)

// Fetcher loads the current value of one cache entry.
type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	fetch    Fetcher
	value    any
	hasValue bool
	state    State
	// gen moves on every invalidation; a fetch only marks the entry FRESH
	// if no invalidation arrived while it ran.
	gen uint64
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group

	// ResyncLimit bounds concurrent fetches during Resync.
	ResyncLimit int
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry), ResyncLimit: 4}
}

// Register tracks key. A new entry starts STALE; registering an existing
// key replaces its fetcher and marks it STALE.
func (c *Cache) Register(key string, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.fetch = fetch
		e.state = Stale
		e.gen++
		return
	}
	c.entries[key] = &entry{fetch: fetch, state: Stale}
}

// Get returns a FRESH value, refetching a STALE one. Concurrent callers of
// one key share a single fetch, but only within one generation: a caller
// arriving after an invalidation starts its own fetch instead of joining
// one that began before the event. The shared fetch is detached from the
// callers' cancellation; a cancelled caller stops waiting and the others
// still get the value.
func (c *Cache) Get(ctx context.Context, key string) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if e.state == Fresh && e.hasValue {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	gen, fetch := e.gen, e.fetch
	c.mu.Unlock()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		// Cleared or re-registered meanwhile: hand the value to the
		// callers but do not store it.
		if c.entries[key] != e {
			return v, nil
		}
		switch {
		case e.gen == gen:
			e.value, e.hasValue, e.state = v, true, Fresh
		case !e.hasValue:
			e.value, e.hasValue = v, true
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// Invalidate marks key STALE. Unknown keys are ignored and repeating the
// call changes nothing further.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if e, ok := c.entries[k]; ok {
			e.state = Stale
			e.gen++
		}
	}
}

// MarkAllStale is what a lost or fresh connection means: any event may
// have been missed.
func (c *Cache) MarkAllStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.state = Stale
		e.gen++
	}
}

// Clear forgets every entry and its fetcher.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *Cache) State(key string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	return e.state, true
}

func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	return out
}

// Resync refetches every STALE entry and returns the first error.
func (c *Cache) Resync(ctx context.Context) error {
	var stale []string
	c.mu.Lock()
	for k, e := range c.entries {
		if e.state == Stale {
			stale = append(stale, k)
		}
	}
	c.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	if c.ResyncLimit > 0 {
		g.SetLimit(c.ResyncLimit)
	}
	for _, k := range stale {
		g.Go(func() error {
			_, err := c.Get(ctx, k)
			if errors.Is(err, ErrUnknownKey) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
