// Package datasource loads vessel telemetry from the configured upstream.
//
// Every implementation returns the full series in upstream order; filtering is
// done by the caller. Decorators add caching, simulated latency and metrics.
package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/okian/vesseltrail/internal/domain/model"
)

// Source is one upstream read.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Load returns the whole series, honoring ctx for cancellation.
	Load(ctx context.Context) ([]model.DataPoint, error)
}

// Document is the upstream envelope: {"Data": [...]}.
type Document struct {
	Data []model.DataPoint `json:"Data"`
}

// Decode reads a Document. A bare JSON array is accepted too; a document
// without a Data member yields an empty series.
func Decode(r io.Reader) ([]model.DataPoint, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var points []model.DataPoint
		if err := json.Unmarshal(raw, &points); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return points, nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if doc.Data == nil {
		doc.Data = []model.DataPoint{}
	}
	return doc.Data, nil
}
