package filter

import "errors"

// ErrInvalidCriteria marks criteria rejected by Validate.
var ErrInvalidCriteria = errors.New("invalid filter criteria")
