package datasource

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/vesseltrail/internal/domain/model"
	"github.com/okian/vesseltrail/pkg/metrics"
)

// Observer is notified of cache lookups.
type Observer interface {
	CacheHit()
	CacheMiss()
}

type metricsObserver struct{}

func (metricsObserver) CacheHit()  { metrics.RecordCacheHit() }
func (metricsObserver) CacheMiss() { metrics.RecordCacheMiss() }

// MetricsObserver reports cache lookups to Prometheus.
func MetricsObserver() Observer { return metricsObserver{} }

// defaultSharedLoadTimeout bounds a shared load once no caller owns it.
const defaultSharedLoadTimeout = 30 * time.Second

// Cached keeps the last successful load for ttl. Concurrent misses share one
// upstream load that runs detached from any single caller, so a cancelled
// caller only abandons its own wait. Errors are never cached.
type Cached struct {
	src         Source
	ttl         time.Duration
	loadTimeout time.Duration
	obs         Observer
	now         func() time.Time
	group       singleflight.Group

	mu     sync.RWMutex
	points []model.DataPoint
	exp    time.Time
}

// CachedOption configures NewCached.
type CachedOption func(*Cached)

// WithLoadTimeout bounds the shared upstream load. Non-positive keeps the default.
func WithLoadTimeout(d time.Duration) CachedOption {
	return func(c *Cached) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// NewCached wraps src. obs may be nil.
func NewCached(src Source, ttl time.Duration, obs Observer, opts ...CachedOption) *Cached {
	c := &Cached{src: src, ttl: ttl, loadTimeout: defaultSharedLoadTimeout, obs: obs, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Source.
func (c *Cached) Name() string { return c.src.Name() }

// Load implements Source.
func (c *Cached) Load(ctx context.Context) ([]model.DataPoint, error) {
	if points, ok := c.fresh(); ok {
		if c.obs != nil {
			c.obs.CacheHit()
		}
		return points, nil
	}
	if c.obs != nil {
		c.obs.CacheMiss()
	}

	ch := c.group.DoChan("load", func() (interface{}, error) {
		if points, ok := c.fresh(); ok {
			return points, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		loaded, err := c.src.Load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.points, c.exp = loaded, c.now().Add(c.ttl)
		c.mu.Unlock()
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("cache wait: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.DataPoint), nil
	}
}

func (c *Cached) fresh() ([]model.DataPoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.points, c.points != nil && c.now().Before(c.exp)
}

// Invalidate drops the cached series.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.points, c.exp = nil, time.Time{}
	c.mu.Unlock()
}

// Delayed adds a random latency in [min, max) before each load, modelling a
// slow upstream API.
type Delayed struct {
	src      Source
	min, max time.Duration
	mu       sync.Mutex
	rng      *rand.Rand
}

// NewDelayed wraps src. A non-positive or inverted range disables the delay.
func NewDelayed(src Source, min, max time.Duration) *Delayed {
	return &Delayed{
		src: src,
		min: min,
		max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // latency jitter only
	}
}

// Name implements Source.
func (d *Delayed) Name() string { return d.src.Name() }

// Load implements Source.
func (d *Delayed) Load(ctx context.Context) ([]model.DataPoint, error) {
	if wait := d.latency(); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-t.C:
		}
	}
	return d.src.Load(ctx)
}

func (d *Delayed) latency() time.Duration {
	if d.max <= 0 || d.max < d.min {
		return 0
	}
	if d.max == d.min {
		return d.min
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.min + time.Duration(d.rng.Int63n(int64(d.max-d.min)))
}

// Instrumented records latency, errors and point counts of every load.
type Instrumented struct {
	src Source
}

// NewInstrumented wraps src.
func NewInstrumented(src Source) *Instrumented { return &Instrumented{src: src} }

// Name implements Source.
func (i *Instrumented) Name() string { return i.src.Name() }

// Load implements Source.
func (i *Instrumented) Load(ctx context.Context) ([]model.DataPoint, error) {
	start := time.Now()
	points, err := i.src.Load(ctx)
	metrics.RecordFetch(i.src.Name(), float64(time.Since(start).Microseconds())/1000.0, len(points), err)
	return points, err
}
