package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vesseltrail/pkg/logger"
	"github.com/okian/vesseltrail/pkg/metrics"
)

const (
	defaultSessionTTL    = 30 * time.Minute
	defaultSweepInterval = time.Minute
)

type entry struct {
	session  Session
	lastSeen time.Time
}

// MemoryStore is a map-backed Store with idle expiry.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	closed   bool

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	logger   logger.Logger
}

// NewMemoryStore creates the store and starts the expiry sweeper, which runs
// until ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions:      make(map[string]*entry),
		ttl:           defaultSessionTTL,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	metrics.UpdateSessionsActive(0)
	if s.ttl > 0 {
		go s.startSweeper(ctx)
	}
	return s
}

func (s *MemoryStore) startSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				s.logger.Debug(ctx, "expired idle sessions", logger.Int("count", n))
			}
		}
	}
}

// Sweep drops sessions idle for longer than the TTL and reports how many
// were removed.
func (s *MemoryStore) Sweep(_ context.Context) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	removed := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		metrics.RecordSessionsExpired(removed)
		metrics.UpdateSessionsActive(count)
	}
	return removed
}

// Close stops the sweeper. Later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	return nil
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, sess Session) (Session, error) { //nolint:gocritic // hugeParam: copied into the map by value
	sess.ID = uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Session{}, ErrClosed
	}
	s.sessions[sess.ID] = &entry{session: sess, lastSeen: s.now()}
	metrics.UpdateSessionsActive(len(s.sessions))
	return sess, nil
}

// Get implements Store. Reading a session counts as activity.
func (s *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.lastSeen = s.now()
	return e.session, nil
}

// Update implements Store. fn works on a copy, which replaces the stored
// session only when fn succeeds.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := e.session
	if err := fn(&next); err != nil {
		return e.session, err
	}
	next.ID = id
	e.session = next
	e.lastSeen = s.now()
	return next, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	metrics.UpdateSessionsActive(len(s.sessions))
	return nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
