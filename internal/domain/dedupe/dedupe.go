// Package dedupe tracks recently seen keys so redelivered telemetry is
// buffered once.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 50_000

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord reports whether key was already seen and records it if not.
	SeenAndRecord(ctx context.Context, key string) bool

	// Forget removes key so a later delivery is accepted again.
	Forget(ctx context.Context, key string)

	Size() int
}

type entry struct {
	key string
	seq uint64
}

// inMemoryDeduper keeps keys in arrival order. Once maxSize keys are held
// the oldest is evicted. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64 // key -> arrival sequence
	order   []entry           // arrival log, oldest at head
	head    int
	seq     uint64
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 {
		d.compact()
		if len(d.seen) >= d.maxSize {
			d.evictOldest()
		}
	}
	d.seq++
	d.seen[key] = d.seq
	d.order = append(d.order, entry{key: key, seq: d.seq})
	return false
}

func (d *inMemoryDeduper) Forget(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// The log entry is left behind and skipped on eviction.
	delete(d.seen, key)
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// evictOldest drops the oldest live key. Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	for d.head < len(d.order) {
		e := d.order[d.head]
		d.order[d.head] = entry{}
		d.head++
		if seq, live := d.seen[e.key]; live && seq == e.seq {
			delete(d.seen, e.key)
			return
		}
	}
}

// compact reclaims the consumed prefix of the log once it dominates.
func (d *inMemoryDeduper) compact() {
	if d.head > 0 && d.head >= len(d.order)/2 {
		d.order = append(d.order[:0], d.order[d.head:]...)
		d.head = 0
	}
}
