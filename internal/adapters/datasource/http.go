package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/vesseltrail/internal/domain/model"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	errorBodyLimit     = 1024
	userAgent          = "vesseltrail/1.0"
)

// HTTPSource GETs a JSON document from an upstream endpoint.
type HTTPSource struct {
	client   *http.Client
	endpoint string
}

// NewHTTPSource returns a source for endpoint. A nil client gets a default
// with a bounded timeout.
func NewHTTPSource(endpoint string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPSource{client: client, endpoint: endpoint}
}

// Name implements Source.
func (s *HTTPSource) Name() string { return "http" }

// Load implements Source.
func (s *HTTPSource) Load(ctx context.Context) ([]model.DataPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, fmt.Errorf("%w: status %s: %s", ErrUpstream, resp.Status, strings.TrimSpace(string(body)))
	}
	return Decode(resp.Body)
}
