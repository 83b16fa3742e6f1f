// Package filter narrows a telemetry series by the user's criteria and derives
// the info card summary.
package filter

import (
	"context"
	"strconv"
	"time"

	"github.com/okian/vesseltrail/internal/domain/catalog"
	"github.com/okian/vesseltrail/internal/domain/model"
	"github.com/okian/vesseltrail/pkg/logger"
)

// Info card constants.
const (
	Paint                 = "Seaquantum Classic III"
	HullRoughness         = "6.2%"
	LastUnderwaterService = "2024-10-28"
	NotAvailable          = "N/A"

	defaultLookback = 5
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithCatalog lets the engine resolve a point's company from its vessel.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		if c != nil {
			e.catalog = c
		}
	}
}

// Engine applies FilterCriteria. It keeps no state between calls.
type Engine struct {
	log     logger.Logger
	catalog *catalog.Catalog
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{log: logger.Nop(), catalog: catalog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply returns the points matching c, in input order, with the derived info
// card and SFOC availability. Dates are inclusive on both ends. Company, vessel
// and hull-job criteria only exclude points that carry the attribute; points
// without it pass.
func (e *Engine) Apply(ctx context.Context, points []model.DataPoint, c model.FilterCriteria) model.FilterResult {
	companies := toSet(c.CompanyIDs)
	hullJobs := toSet(c.HullJobIDs)

	out := make([]model.DataPoint, 0, len(points))
	var tagged struct{ company, vessel, hull int }
	for i := range points {
		dp := &points[i]
		if !inRange(dp.Timestamp.Time, c.DateFrom, c.DateTo) {
			continue
		}
		if len(companies) > 0 {
			if id := e.companyOf(dp); id != "" {
				tagged.company++
				if _, ok := companies[id]; !ok {
					continue
				}
			}
		}
		if c.VesselID != "" && dp.VesselID != "" {
			tagged.vessel++
			if dp.VesselID != c.VesselID {
				continue
			}
		}
		if len(hullJobs) > 0 && len(dp.HullJobs) > 0 {
			tagged.hull++
			if !anyIn(dp.HullJobs, hullJobs) {
				continue
			}
		}
		out = append(out, *dp)
	}

	if len(companies) > 0 && tagged.company == 0 {
		e.log.Debug(ctx, "company filter not applicable, points carry no company", logger.Any("company_ids", c.CompanyIDs))
	}
	if c.VesselID != "" && tagged.vessel == 0 {
		e.log.Debug(ctx, "vessel filter not applicable, points carry no vessel", logger.String("vessel_id", c.VesselID))
	}
	if len(hullJobs) > 0 && tagged.hull == 0 {
		e.log.Debug(ctx, "hull job filter not applicable, points carry no hull jobs", logger.Any("hull_job_ids", c.HullJobIDs))
	}

	res := model.FilterResult{Points: out, InfoCard: InfoCardFor(out)}
	for i := range out {
		if out[i].SFOCVisible {
			res.SFOCVisible = true
			break
		}
	}
	return res
}

func (e *Engine) companyOf(dp *model.DataPoint) string {
	if dp.CompanyID != "" {
		return dp.CompanyID
	}
	if dp.VesselID != "" {
		if v, ok := e.catalog.Vessel(dp.VesselID); ok {
			return v.CompanyID
		}
	}
	return ""
}

// InfoCardFor derives the summary of a filtered series.
func InfoCardFor(points []model.DataPoint) model.InfoCard {
	if len(points) == 0 {
		return UnavailableInfoCard()
	}
	return model.InfoCard{
		Paint:                 Paint,
		HullRoughness:         HullRoughness,
		LogFactor:             strconv.FormatFloat(points[0].LogFactorValue, 'f', -1, 64),
		LastUnderwaterService: LastUnderwaterService,
	}
}

// UnavailableInfoCard is shown when there is no data.
func UnavailableInfoCard() model.InfoCard {
	return model.InfoCard{
		Paint:                 NotAvailable,
		HullRoughness:         NotAvailable,
		LogFactor:             NotAvailable,
		LastUnderwaterService: NotAvailable,
	}
}

// EmptyResult is the result shown after a failed fetch.
func EmptyResult() model.FilterResult {
	return model.FilterResult{Points: []model.DataPoint{}, InfoCard: UnavailableInfoCard()}
}

// DefaultCriteria is the form's initial selection: the last five years and the
// first company.
func DefaultCriteria(now time.Time, c *catalog.Catalog) model.FilterCriteria {
	from := now.AddDate(-defaultLookback, 0, 0)
	to := now
	crit := model.FilterCriteria{DateFrom: &from, DateTo: &to, CompanyIDs: []string{}, HullJobIDs: []string{}}
	if id := c.FirstCompanyID(); id != "" {
		crit.CompanyIDs = append(crit.CompanyIDs, id)
	}
	return crit
}

// inRange treats a zero timestamp as failing any set bound.
func inRange(ts time.Time, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if ts.IsZero() {
		return false
	}
	if from != nil && ts.Before(*from) {
		return false
	}
	if to != nil && ts.After(*to) {
		return false
	}
	return true
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func anyIn(ids []string, set map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
