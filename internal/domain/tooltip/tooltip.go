// Package tooltip builds the per-point "Performance Info" record shown on hover.
package tooltip

import (
	"strconv"
	"time"

	"github.com/okian/vesseltrail/internal/domain/model"
)

// Title heads every tooltip.
const Title = "Performance Info"

const (
	dateLayout = "02 Jan 2006"
	timeLayout = "15:04"
	missing    = "N/A"
)

// Row labels.
const (
	LabelCorrectedPower    = "Corrected Power"
	LabelExcessConsumption = "Excess Consumption"
	LabelLogSpeed          = "Log Speed"
	LabelWaveHeight        = "Wave Height"
	LabelWindSpeed         = "Wind Speed"
)

// Input carries the values a tooltip shows.
type Input struct {
	Timestamp         time.Time
	CorrectedPower    float64
	ExcessConsumption float64
	LogSpeed          float64
	WaveHeight        float64
	WindSpeed         float64
}

// FromPoint selects the tooltip values of a data point.
func FromPoint(dp *model.DataPoint) Input {
	return Input{
		Timestamp:         dp.Timestamp.Time,
		CorrectedPower:    dp.Power,
		ExcessConsumption: dp.Consumption,
		LogSpeed:          dp.LogSpeed,
		WaveHeight:        dp.WaveHeight,
		WindSpeed:         dp.WindSpeed,
	}
}

// Row is one labelled value. Text is the value rounded to two decimals with its unit.
type Row struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Text  string  `json:"text"`
}

// Record is the display-ready tooltip.
type Record struct {
	Title string `json:"title"`
	Date  string `json:"date"`
	Time  string `json:"time"`
	Rows  []Row  `json:"rows"`
}

// Heading joins date and time the way the card header shows them.
func (r Record) Heading() string {
	return r.Date + ", " + r.Time
}

// Formatter renders records in a fixed display location.
type Formatter struct {
	loc *time.Location
}

// NewFormatter returns a formatter for loc; nil means UTC.
func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc}
}

// Format builds the record. Values are not range checked.
func (f *Formatter) Format(in Input) Record {
	r := Record{Title: Title, Date: missing, Time: missing}
	if !in.Timestamp.IsZero() {
		local := in.Timestamp.In(f.loc)
		r.Date = local.Format(dateLayout)
		r.Time = local.Format(timeLayout)
	}
	r.Rows = []Row{
		row(LabelCorrectedPower, in.CorrectedPower, "%", ""),
		row(LabelExcessConsumption, in.ExcessConsumption, "%", ""),
		row(LabelLogSpeed, in.LogSpeed, "knots", " "),
		row(LabelWaveHeight, in.WaveHeight, "m", " "),
		row(LabelWindSpeed, in.WindSpeed, "knots", " "),
	}
	return r
}

// FormatPoint is Format(FromPoint(dp)).
func (f *Formatter) FormatPoint(dp *model.DataPoint) Record {
	return f.Format(FromPoint(dp))
}

func row(label string, v float64, unit, sep string) Row {
	return Row{
		Label: label,
		Value: v,
		Unit:  unit,
		Text:  strconv.FormatFloat(v, 'f', 2, 64) + sep + unit,
	}
}
