package telemetrygen

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/okian/vesseltrail/internal/domain/catalog"
	"github.com/okian/vesseltrail/internal/domain/model"
)

// Ranges for the simulated readings.
const (
	powerBase       = 110.0
	powerSpread     = 12.0
	sfocBase        = 106.0
	sfocSpread      = 8.0
	consumptionMax  = 20.0
	logFactorBase   = 1.0
	logFactorSpread = 0.05
	speedBase       = 12.0
	speedSpread     = 3.0
	draftBase       = 10.0
	headingDrift    = 0.3  // radians per step
	stepDegrees     = 0.35 // distance per step
	sfocVisibleProb = 0.7
	hullJobProb     = 0.3
	maxLatitude     = 70.0
)

// Voyage start positions, [lon, lat].
var origins = [][2]float64{
	{4.4, 51.9},   // Rotterdam
	{103.8, 1.3},  // Singapore
	{-74.0, 40.6}, // New York
	{121.5, 31.2}, // Shanghai
	{55.3, 25.3},  // Jebel Ali
}

// Generator produces synthetic voyages for the vessels of a fleet catalog.
type Generator struct {
	cfg     Config
	catalog *catalog.Catalog
	rnd     *rand.Rand
}

// NewGenerator creates a generator. Vessels beyond the catalog size are
// clamped to the catalog.
func NewGenerator(cfg Config, cat *catalog.Catalog) *Generator {
	if cat == nil {
		cat = catalog.Default()
	}
	if cfg.Vessels > len(cat.Vessels) {
		cfg.Vessels = len(cat.Vessels)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Generator{
		cfg:     cfg,
		catalog: cat,
		rnd:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Generate returns the voyages back to back in catalog order, each one in
// timestamp order, so a single-vessel filter yields one continuous trail.
func (g *Generator) Generate() []model.DataPoint {
	out := make([]model.DataPoint, 0, g.cfg.Vessels*g.cfg.Points)
	for i := 0; i < g.cfg.Vessels; i++ {
		out = append(out, g.voyage(i)...)
	}
	return out
}

func (g *Generator) voyage(idx int) []model.DataPoint {
	vessel := g.catalog.Vessels[idx]
	origin := origins[idx%len(origins)]
	lon, lat := origin[0], origin[1]
	heading := g.rnd.Float64() * 2 * math.Pi

	var hullJobs model.HullJobRefs
	points := make([]model.DataPoint, g.cfg.Points)
	for i := range points {
		ts := g.cfg.Start.Add(time.Duration(i) * g.cfg.Interval)
		if len(g.catalog.HullJobs) > 0 && i%max(g.cfg.Points/4, 1) == 0 && g.rnd.Float64() < hullJobProb {
			hullJobs = append(model.HullJobRefs{}, g.catalog.HullJobs[g.rnd.IntN(len(g.catalog.HullJobs))].ID)
		}

		dp := g.reading(ts)
		dp.VesselID = vessel.ID
		dp.CompanyID = vessel.CompanyID
		dp.HullJobs = append(model.HullJobRefs{}, hullJobs...)
		if g.cfg.GapEvery <= 0 || (i+1)%g.cfg.GapEvery != 0 {
			dp.Position = model.Position{round(lon, 4), round(lat, 4)}
		}
		points[i] = dp

		heading += (g.rnd.Float64()*2 - 1) * headingDrift
		lon = wrapLongitude(lon + stepDegrees*math.Cos(heading))
		lat += stepDegrees * math.Sin(heading)
		if math.Abs(lat) > maxLatitude {
			heading = -heading
			lat = math.Copysign(maxLatitude, lat)
		}
	}
	return points
}

func (g *Generator) reading(ts time.Time) model.DataPoint {
	speed := speedBase + g.spread(speedSpread)
	logFactor := logFactorBase + g.spread(logFactorSpread)
	power := powerBase + g.spread(powerSpread)
	sfoc := sfocBase + g.spread(sfocSpread)
	consumption := g.rnd.Float64() * consumptionMax
	dp := model.DataPoint{
		Timestamp:        model.NewTimestamp(ts),
		DataType:         "daily",
		ShaftPower:       round(power*95, 1),
		ShaftSpeed:       round(70+g.spread(5), 1),
		Draft:            round(draftBase+g.spread(1.5), 2),
		LogSpeed:         round(speed*logFactor, 2),
		LogFactor:        round(logFactor, 3),
		GPSSpeed:         round(speed, 2),
		CurrentVelocity:  round(g.rnd.Float64()*1.5, 2),
		CurrentDirection: round(g.rnd.Float64()*360, 0),
		VesselDirection:  round(g.rnd.Float64()*360, 0),
		WaveHeight:       round(g.rnd.Float64()*4, 2),
		WaveDirection:    round(g.rnd.Float64()*360, 0),
		WindSpeed:        round(g.rnd.Float64()*25, 1),
		WindDirection:    round(g.rnd.Float64()*360, 0),
		Beaufort:         round(g.rnd.Float64()*7, 0),
		Power:            round(power, 2),
		PowerVisible:     true,
		SFOC:             round(sfoc, 2),
		SFOCVisible:      g.rnd.Float64() < sfocVisibleProb,
		Consumption:      round(consumption, 2),
		ConsVisible:      true,
		ConsumptionTon:   round(consumption*1.8, 2),
		LogFactorValue:   round(logFactor, 3),
		LogFactorVisible: true,
	}
	dp.ShaftPowerLabel = "Shaft Power"
	dp.ShaftSpeedLabel = "Shaft Speed"
	dp.DraftLabel = "Draft"
	dp.LogSpeedLabel = "Log Speed"
	dp.GPSSpeedLabel = "GPS Speed"
	dp.WaveHeightLabel = "Wave Height"
	dp.WindSpeedLabel = "Wind Speed"
	return dp
}

// spread returns a value uniformly distributed in [-s, s).
func (g *Generator) spread(s float64) float64 {
	return (g.rnd.Float64()*2 - 1) * s
}

func wrapLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
