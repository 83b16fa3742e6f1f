package datasource

import (
	"context"
	"fmt"
	"os"

	"github.com/okian/vesseltrail/internal/domain/model"
)

// FileSource reads a JSON document from disk on every Load.
type FileSource struct {
	path string
}

// NewFileSource returns a source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements Source.
func (s *FileSource) Name() string { return "file" }

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) ([]model.DataPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer f.Close()
	return Decode(f)
}
