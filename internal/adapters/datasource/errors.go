package datasource

import "errors"

// Sentinel error kinds for this package.
var (
	ErrDecode      = errors.New("decode upstream payload")
	ErrUpstream    = errors.New("upstream request failed")
	ErrNotReady    = errors.New("data source not ready")
	ErrInvalidArgs = errors.New("invalid data source arguments")
)
