// Package colors maps a performance metric value to a display band and color.
package colors

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/vesseltrail/internal/domain/model"
)

// Metric selects which data point attribute colors the trail.
type Metric string

const (
	MetricDefault           Metric = "Default"
	MetricExcessConsumption Metric = "Excess Consumption"
	MetricPower             Metric = "Power"
	MetricSFOC              Metric = "SFOC"
)

// Band is the classification bucket of a value.
type Band string

const (
	BandDefault Band = "default"
	BandLow     Band = "low"
	BandMid     Band = "mid"
	BandHigh    Band = "high"
	BandUnknown Band = "unknown"
)

// Display colors.
const (
	ColorDefault = "#0000FF"
	ColorLow     = "#00FF00"
	ColorMid     = "#FFAC1C"
	ColorHigh    = "#FF0000"
	ColorUnknown = "#808080"
)

var bandColors = map[Band]string{
	BandDefault: ColorDefault,
	BandLow:     ColorLow,
	BandMid:     ColorMid,
	BandHigh:    ColorHigh,
	BandUnknown: ColorUnknown,
}

// Thresholds splits values into low (< Low), mid (< High) and high.
type Thresholds struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// DefaultThresholds returns the built-in band limits.
func DefaultThresholds() map[Metric]Thresholds {
	return map[Metric]Thresholds{
		MetricPower:             {Low: 106, High: 114},
		MetricSFOC:              {Low: 103, High: 110},
		MetricExcessConsumption: {Low: 5, High: 15},
	}
}

// Classification is the outcome for one value.
type Classification struct {
	Band  Band   `json:"band"`
	Color string `json:"color"`
}

// ParseMetric accepts the display names case-insensitively, plus snake/kebab aliases.
func ParseMetric(s string) (Metric, error) {
	key := strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch key {
	case "", "default":
		return MetricDefault, nil
	case "excess consumption", "consumption":
		return MetricExcessConsumption, nil
	case "power":
		return MetricPower, nil
	case "sfoc":
		return MetricSFOC, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// AvailableMetrics lists the selectable metrics. SFOC is offered only when the
// current result carries SFOC data.
func AvailableMetrics(sfocVisible bool) []Metric {
	out := []Metric{MetricDefault, MetricExcessConsumption, MetricPower}
	if sfocVisible {
		out = append(out, MetricSFOC)
	}
	return out
}

// Value extracts the attribute a metric colors by. Default yields 0.
func Value(dp *model.DataPoint, m Metric) float64 {
	switch m {
	case MetricPower:
		return dp.Power
	case MetricSFOC:
		return dp.SFOC
	case MetricExcessConsumption:
		return dp.Consumption
	default:
		return 0
	}
}

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithThresholds overrides the limits of one metric. Non-finite or
// non-ascending pairs are ignored.
func WithThresholds(m Metric, low, high float64) Option {
	return func(c *Classifier) {
		if m == MetricDefault || !finite(low) || !finite(high) || low >= high {
			return
		}
		c.thresholds[m] = Thresholds{Low: low, High: high}
	}
}

// Classifier is a pure metric/value to color mapping. Safe for concurrent use
// once constructed.
type Classifier struct {
	thresholds map[Metric]Thresholds
}

// NewClassifier builds a classifier with the default thresholds.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{thresholds: DefaultThresholds()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Thresholds returns a copy of the configured limits.
func (c *Classifier) Thresholds() map[Metric]Thresholds {
	out := make(map[Metric]Thresholds, len(c.thresholds))
	for k, v := range c.thresholds {
		out[k] = v
	}
	return out
}

// Classify maps a value to its band. Default ignores the value; unknown
// metrics behave like Default. Comparisons are strict, so a value equal to a
// limit falls in the upper band. NaN and infinities are BandUnknown.
func (c *Classifier) Classify(m Metric, v float64) Classification {
	th, ok := c.thresholds[m]
	if !ok {
		return classification(BandDefault)
	}
	switch {
	case !finite(v):
		return classification(BandUnknown)
	case v < th.Low:
		return classification(BandLow)
	case v < th.High:
		return classification(BandMid)
	default:
		return classification(BandHigh)
	}
}

// ClassifyPoint classifies the metric attribute of dp.
func (c *Classifier) ClassifyPoint(dp *model.DataPoint, m Metric) (Classification, float64) {
	v := Value(dp, m)
	return c.Classify(m, v), v
}

func classification(b Band) Classification {
	return Classification{Band: b, Color: bandColors[b]}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
