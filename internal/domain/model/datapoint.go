// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// DataPoint is one telemetry sample of a vessel. It is immutable once decoded.
// JSON names follow the upstream performance payload.
type DataPoint struct {
	Timestamp Timestamp `json:"timestamp"`
	DataType  string    `json:"dataType"`

	ShaftPowerLabel string  `json:"shaftPower_"`
	ShaftPower      float64 `json:"shaftPower"`
	ShaftSpeedLabel string  `json:"shaftSpeed_"`
	ShaftSpeed      float64 `json:"shaftSpeed"`
	DraftLabel      string  `json:"draft_"`
	Draft           float64 `json:"draft"`
	LogSpeedLabel   string  `json:"logSpeed_"`
	LogSpeed        float64 `json:"logSpeed"`
	LogFactor       float64 `json:"logFactor"`
	GPSSpeedLabel   string  `json:"gpsSpeed_"`
	GPSSpeed        float64 `json:"gpsSpeed"`

	GPSSpeedCorDaily         float64 `json:"gpsSpeedCorDaily"`
	GPSSpeedCorHourly        float64 `json:"gpsSpeedCorHourly"`
	CurrentVelocity          float64 `json:"currentVelocity"`
	CurrentDirection         float64 `json:"currentDirection"`
	CurrentRelativeDirection float64 `json:"currentRelativeDirection"`
	VesselDirection          float64 `json:"vesselDirection"`

	WaveHeightLabel            string  `json:"waveHeight_"`
	WaveHeight                 float64 `json:"waveHeight"`
	WaveDirection              float64 `json:"waveDirection"`
	WaveRelativeDirectionLabel string  `json:"waveRelativeDirection_"`
	WaveRelativeDirection      float64 `json:"waveRelativeDirection"`
	WindSpeedLabel             string  `json:"windSpeed_"`
	WindSpeed                  float64 `json:"windSpeed"`
	WindDirection              float64 `json:"windDirection"`
	WindRelativeDirection      float64 `json:"windRelativeDirection"`

	PowerModel       float64 `json:"powerModel"`
	PowerModelFactor float64 `json:"powerModelFactor"`
	WavePower        float64 `json:"wavePower"`
	WindPower        float64 `json:"windPower"`
	MEISOEqMDOLabel  string  `json:"meISOEqMDO_"`
	MEISOEqMDO       float64 `json:"meISOEqMDO"`
	DFOCExpected     float64 `json:"dfocExpected"`
	DFOCExpectedWO   float64 `json:"dfocExpected_WO"`
	Depth            float64 `json:"depth"`
	Beaufort         float64 `json:"beaufort"`
	SPFuelRate       float64 `json:"spFuelRate"`
	SFOCISO          float64 `json:"sfocISO"`
	SFOCFactor       float64 `json:"sfocFactor"`

	Position Position `json:"position"`

	Power          float64 `json:"power"`
	PowerVisible   bool    `json:"powerVisible"`
	SFOC           float64 `json:"sfoc"`
	SFOCVisible    bool    `json:"sfocVisible"`
	SFR1Visible    bool    `json:"sfr1Visible"`
	SFR2Visible    bool    `json:"sfr2Visible"`
	SFR3Visible    bool    `json:"sfr3Visible"`
	SFR4Visible    bool    `json:"sfr4Visible"`
	Consumption    float64 `json:"consumption"`
	ConsVisible    bool    `json:"consVisible"`
	ConsumptionTon float64 `json:"consumption_ton"`
	CTonVisible    bool    `json:"cTonVisible"`

	LogFactorValue   float64 `json:"logFactorValue"`
	LogFactorVisible bool    `json:"logFactorVisible"`

	HullJobs           HullJobRefs `json:"hullJobs"`
	InvisibilityReason string      `json:"invisibilityReason"`

	// Optional ownership attributes. Absent in the legacy payload.
	VesselID  string `json:"vesselId,omitempty"`
	CompanyID string `json:"companyId,omitempty"`
}

// Position is [longitude, latitude].
type Position []float64

// Valid reports whether the position has exactly two finite coordinates.
func (p Position) Valid() bool {
	if len(p) != 2 {
		return false
	}
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Lon returns the longitude. Callers must check Valid first.
func (p Position) Lon() float64 { return p[0] }

// Lat returns the latitude. Callers must check Valid first.
func (p Position) Lat() float64 { return p[1] }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is an instant decoded leniently. Anything unparseable becomes the
// zero time, which fails every date bound in the filter engine.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

// ParseTimestamp parses the upstream textual forms. Zone-less values are UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// UnmarshalJSON accepts a string, epoch milliseconds, or a MongoDB extended
// JSON date ({"$date": ...}).
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	t.Time = time.Time{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		t.Time, _ = ParseTimestamp(s)
	case '{':
		var ext struct {
			Date json.RawMessage `json:"$date"`
		}
		if err := json.Unmarshal(b, &ext); err != nil || ext.Date == nil {
			return nil
		}
		var nested struct {
			NumberLong string `json:"$numberLong"`
		}
		if json.Unmarshal(ext.Date, &nested) == nil && nested.NumberLong != "" {
			if ms, err := strconv.ParseInt(nested.NumberLong, 10, 64); err == nil {
				t.Time = time.UnixMilli(ms).UTC()
			}
			return nil
		}
		return t.UnmarshalJSON(ext.Date)
	default:
		if ms, err := strconv.ParseFloat(string(b), 64); err == nil {
			t.Time = time.UnixMilli(int64(ms)).UTC()
		}
	}
	return nil
}

// MarshalJSON writes RFC 3339 with milliseconds, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

// HullJobRefs lists the hull-job ids a point is associated with. Upstream
// sends either plain ids or objects carrying an id.
type HullJobRefs []string

// UnmarshalJSON implements json.Unmarshaler.
func (h *HullJobRefs) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		*h = nil
		return nil
	}
	out := make(HullJobRefs, 0, len(raw))
	for _, r := range raw {
		var id string
		if json.Unmarshal(r, &id) == nil {
			if id != "" {
				out = append(out, id)
			}
			continue
		}
		var obj struct {
			ID        string `json:"id"`
			HullJobID string `json:"hullJobId"`
		}
		if json.Unmarshal(r, &obj) == nil {
			switch {
			case obj.ID != "":
				out = append(out, obj.ID)
			case obj.HullJobID != "":
				out = append(out, obj.HullJobID)
			}
		}
	}
	*h = out
	return nil
}

// Contains reports whether id is referenced.
func (h HullJobRefs) Contains(id string) bool {
	for _, v := range h {
		if v == id {
			return true
		}
	}
	return false
}
