// Package repository holds dashboard sessions in memory.
package repository

import (
	"context"

	"github.com/okian/vesseltrail/internal/domain/colors"
	"github.com/okian/vesseltrail/internal/domain/model"
	"github.com/okian/vesseltrail/internal/domain/trail"
)

// Session is the state one dashboard owns: its filters, the coloring metric,
// the theme and the last applied render. Result and Trail are replaced whole,
// never mutated in place.
type Session struct {
	ID         string
	Criteria   model.FilterCriteria
	Metric     colors.Metric
	Theme      model.Theme
	Status     model.Status
	Generation uint64
	Result     model.FilterResult
	Trail      trail.Render
	// Revision counts replacements of Result or Trail.
	Revision uint64

	// Notification is delivered once and then cleared.
	Notification *model.Notification
}

// Store provides read/write access to sessions.
type Store interface {
	// Create stores s under a fresh id and returns the stored copy.
	Create(ctx context.Context, s Session) (Session, error)
	// Get returns a copy of the session. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (Session, error)
	// Update runs fn on the session under the store lock. If fn returns an
	// error nothing is written.
	Update(ctx context.Context, id string, fn func(*Session) error) (Session, error)
	// Delete drops the session. Returns ErrNotFound if unknown.
	Delete(ctx context.Context, id string) error
	// Count returns the number of live sessions.
	Count(ctx context.Context) int
}
