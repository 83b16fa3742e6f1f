package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps file, env and unmarshal failures in Load.
	ErrLoadConfig = errors.New("load config failed")
	// ErrUnknownSource is joined with ErrInvalidConfig when Source names no known backend.
	ErrUnknownSource = errors.New("unknown data source")
)
