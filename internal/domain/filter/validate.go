package filter

import (
	"fmt"

	"github.com/okian/vesseltrail/internal/domain/catalog"
	"github.com/okian/vesseltrail/internal/domain/model"
)

// FieldError reports an invalid criteria field. It matches ErrInvalidCriteria.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Message) }

// Unwrap allows errors.Is(err, ErrInvalidCriteria).
func (e *FieldError) Unwrap() error { return ErrInvalidCriteria }

// Validate checks criteria at the submission boundary. The engine itself
// tolerates anything.
func Validate(c model.FilterCriteria, cat *catalog.Catalog) error {
	if c.DateFrom != nil && c.DateTo != nil && c.DateFrom.After(*c.DateTo) {
		return &FieldError{Field: "dateFrom", Message: "Date From cannot be after Date To"}
	}
	for _, id := range c.CompanyIDs {
		if _, ok := cat.Company(id); !ok {
			return &FieldError{Field: "companyIds", Message: fmt.Sprintf("unknown company %q", id)}
		}
	}
	if c.VesselID != "" {
		v, ok := cat.Vessel(c.VesselID)
		if !ok {
			return &FieldError{Field: "vesselId", Message: fmt.Sprintf("unknown vessel %q", c.VesselID)}
		}
		if len(c.CompanyIDs) > 0 && !contains(c.CompanyIDs, v.CompanyID) {
			return &FieldError{Field: "vesselId", Message: fmt.Sprintf("vessel %q does not belong to the selected companies", c.VesselID)}
		}
	}
	for _, id := range c.HullJobIDs {
		if _, ok := cat.HullJob(id); !ok {
			return &FieldError{Field: "hullJobIds", Message: fmt.Sprintf("unknown hull job %q", id)}
		}
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
