// Package trail turns a filtered telemetry series into colored map geometry.
package trail

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/okian/vesseltrail/internal/domain/colors"
	"github.com/okian/vesseltrail/internal/domain/model"
	"github.com/okian/vesseltrail/internal/domain/tooltip"
	"github.com/okian/vesseltrail/pkg/logger"
)

// Rendering constants.
const (
	SegmentWidth     = 4
	MarkerRadius     = 5
	MarkerColor      = "transparent"
	ViewportPadding  = 50
	FitDurationMilli = 1000
)

// Segment joins two consecutive points. Its color comes from the end point.
type Segment struct {
	StartIndex int         `json:"startIndex"`
	EndIndex   int         `json:"endIndex"`
	Start      orb.Point   `json:"start"`
	End        orb.Point   `json:"end"`
	Value      float64     `json:"value"`
	Band       colors.Band `json:"band"`
	Color      string      `json:"color"`
	Width      int         `json:"width"`
}

// Marker is an invisible hover target at a point.
type Marker struct {
	Index    int            `json:"index"`
	Position orb.Point      `json:"position"`
	Radius   int            `json:"radius"`
	Color    string         `json:"color"`
	Tooltip  tooltip.Record `json:"tooltip"`
}

// Viewport is the camera fit for the trail.
type Viewport struct {
	SouthWest  orb.Point `json:"southWest"`
	NorthEast  orb.Point `json:"northEast"`
	Padding    [4]int    `json:"padding"` // top, right, bottom, left
	DurationMS int       `json:"durationMs"`
}

// Bound returns the viewport as an orb bound.
func (v *Viewport) Bound() orb.Bound {
	return orb.Bound{Min: v.SouthWest, Max: v.NorthEast}
}

// Render is the full map description of one series.
type Render struct {
	Metric   colors.Metric `json:"metric"`
	Segments []Segment     `json:"segments"`
	Markers  []Marker      `json:"markers"`
	Viewport *Viewport     `json:"viewport"`
	Skipped  int           `json:"skippedSegments"`
}

// Option applies a configuration option to the Renderer.
type Option func(*Renderer)

// WithLogger sets the renderer logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClassifier sets the color classifier.
func WithClassifier(c *colors.Classifier) Option {
	return func(r *Renderer) {
		if c != nil {
			r.classifier = c
		}
	}
}

// WithFormatter sets the tooltip formatter.
func WithFormatter(f *tooltip.Formatter) Option {
	return func(r *Renderer) {
		if f != nil {
			r.formatter = f
		}
	}
}

// Renderer builds Renders. It holds only immutable collaborators.
type Renderer struct {
	log        logger.Logger
	classifier *colors.Classifier
	formatter  *tooltip.Formatter
}

// NewRenderer creates a renderer with default thresholds and a UTC formatter.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		log:        logger.Nop(),
		classifier: colors.NewClassifier(),
		formatter:  tooltip.NewFormatter(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build renders points colored by metric. For n points, emitted plus skipped
// segments always equals n-1 (0 when n < 2).
func (r *Renderer) Build(ctx context.Context, points []model.DataPoint, metric colors.Metric) Render {
	out := Render{Metric: metric, Segments: []Segment{}, Markers: []Marker{}}
	if len(points) > 1 {
		out.Segments = make([]Segment, 0, len(points)-1)
	}

	for i := 1; i < len(points); i++ {
		prev, cur := &points[i-1], &points[i]
		if !prev.Position.Valid() || !cur.Position.Valid() {
			out.Skipped++
			r.log.Debug(ctx, "skipping trail segment with invalid position",
				logger.Int("start_index", i-1), logger.Int("end_index", i))
			continue
		}
		cls, v := r.classifier.ClassifyPoint(cur, metric)
		out.Segments = append(out.Segments, Segment{
			StartIndex: i - 1,
			EndIndex:   i,
			Start:      toPoint(prev.Position),
			End:        toPoint(cur.Position),
			Value:      v,
			Band:       cls.Band,
			Color:      cls.Color,
			Width:      SegmentWidth,
		})
	}

	var (
		bound orb.Bound
		seen  bool
	)
	for i := range points {
		dp := &points[i]
		if !dp.Position.Valid() {
			continue
		}
		p := toPoint(dp.Position)
		out.Markers = append(out.Markers, Marker{
			Index:    i,
			Position: p,
			Radius:   MarkerRadius,
			Color:    MarkerColor,
			Tooltip:  r.formatter.FormatPoint(dp),
		})
		if !seen {
			bound, seen = p.Bound(), true
		} else {
			bound = bound.Extend(p)
		}
	}
	if seen {
		out.Viewport = &Viewport{
			SouthWest:  bound.Min,
			NorthEast:  bound.Max,
			Padding:    [4]int{ViewportPadding, ViewportPadding, ViewportPadding, ViewportPadding},
			DurationMS: FitDurationMilli,
		}
	}

	if out.Skipped > 0 {
		r.log.Debug(ctx, "trail rendered with skipped segments",
			logger.Int("segments", len(out.Segments)), logger.Int("skipped", out.Skipped))
	}
	return out
}

func toPoint(p model.Position) orb.Point {
	return orb.Point{p.Lon(), p.Lat()}
}
