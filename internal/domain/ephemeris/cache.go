package ephemeris

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheSize    = 4096
	defaultFetchTimeout = 30 * time.Second
)

// CacheOption configures a Cached provider.
type CacheOption func(*Cached)

// WithCacheSize bounds the number of cached lookups.
func WithCacheSize(size int) CacheOption {
	return func(c *Cached) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithFetchTimeout bounds a shared lookup. The lookup does not follow any
// single caller's context, so this is what stops a hung source.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cached) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// Cached memoizes a Provider. Concurrent identical lookups share one call to
// the wrapped provider; entries are evicted in insertion order.
type Cached struct {
	next         Provider
	size         int
	fetchTimeout time.Duration

	mu      sync.Mutex
	entries map[string]Positions
	order   []string

	group singleflight.Group
}

// NewCached wraps next with a bounded cache.
func NewCached(next Provider, opts ...CacheOption) *Cached {
	c := &Cached{
		next:         next,
		size:         defaultCacheSize,
		fetchTimeout: defaultFetchTimeout,
		entries:      make(map[string]Positions),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Provider.
func (c *Cached) Name() string { return c.next.Name() }

// Positions implements Provider. A caller that gives up leaves through its
// own ctx; the shared lookup keeps running for the other waiters.
func (c *Cached) Positions(ctx context.Context, jd float64, loc *model.Location) (Positions, error) {
	key := cacheKey(jd, loc)
	if p, ok := c.get(key); ok {
		metrics.RecordEphemerisCacheHit()
		return p, nil
	}
	metrics.RecordEphemerisCacheMiss()

	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		p, err := c.next.Positions(fetchCtx, jd, loc)
		if err != nil {
			return nil, err
		}
		c.put(key, p)
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("cached positions: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Positions).Clone(), nil
	}
}

// Len returns the number of cached entries.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cached) get(key string) (Positions, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

func (c *Cached) put(key string, p Positions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	for len(c.order) >= c.size {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	c.entries[key] = p.Clone()
	c.order = append(c.order, key)
}

func cacheKey(jd float64, loc *model.Location) string {
	if loc == nil {
		return fmt.Sprintf("%.8f", jd)
	}
	return fmt.Sprintf("%.8f|%.6f|%.6f", jd, loc.Latitude, loc.Longitude)
}
