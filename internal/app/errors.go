package service

import (
	"errors"

	"github.com/okian/vesseltrail/internal/adapters/repository"
)

// Sentinel kinds surfaced to the API layer.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrBusy            = errors.New("fetch queue is full")
	ErrFetchFailed     = errors.New("failed to load data")
	ErrInvalidTheme    = errors.New("invalid theme")
	ErrSessionNotFound = repository.ErrNotFound

	errStale       = errors.New("stale generation")
	errRenderRaced = errors.New("session changed during render")
)

// maxRenderAttempts bounds unlocked re-renders before one is done under the store lock.
const maxRenderAttempts = 3
