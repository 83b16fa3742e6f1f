package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/vesseltrail/internal/domain/model"
)

const (
	maxBodyBytes = 1 << 20
	dateLayout   = "2006-01-02"
)

// criteriaRequest is the filter form as posted by the dashboard. Dates are
// either YYYY-MM-DD or RFC 3339.
type criteriaRequest struct {
	DateFrom   string   `json:"dateFrom"`
	DateTo     string   `json:"dateTo"`
	CompanyIDs []string `json:"companyIds"`
	VesselID   string   `json:"vesselId"`
	HullJobIDs []string `json:"hullJobIds"`
}

// queryRequest is the body of POST /api/trail.
type queryRequest struct {
	criteriaRequest
	Metric string `json:"metric"`
}

type metricRequest struct {
	Metric string `json:"metric"`
}

type themeRequest struct {
	Theme string `json:"theme"`
}

// criteria converts the form. A date-only upper bound covers the whole day.
func (c criteriaRequest) criteria() (model.FilterCriteria, error) {
	out := model.FilterCriteria{
		CompanyIDs: trimAll(c.CompanyIDs),
		VesselID:   strings.TrimSpace(c.VesselID),
		HullJobIDs: trimAll(c.HullJobIDs),
	}
	if s := strings.TrimSpace(c.DateFrom); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return out, fmt.Errorf("dateFrom: %w", err)
		}
		out.DateFrom = &t
	}
	if s := strings.TrimSpace(c.DateTo); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return out, fmt.Errorf("dateTo: %w", err)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		out.DateTo = &t
	}
	return out, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, errors.New("must be YYYY-MM-DD or RFC 3339")
	}
	return t.UTC(), false, nil
}

func trimAll(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
