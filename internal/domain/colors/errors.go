package colors

import "errors"

// ErrUnknownMetric is returned by ParseMetric for unrecognised names.
var ErrUnknownMetric = errors.New("unknown coloring metric")
