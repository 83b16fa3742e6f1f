package trail

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSON feature kinds.
const (
	FeatureSegment = "trailSegment"
	FeaturePoint   = "trailPoint"
)

// FeatureCollection encodes a render as GeoJSON: one LineString per segment
// followed by one Point per marker. The bbox is the viewport, if any.
func FeatureCollection(r Render) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range r.Segments {
		f := geojson.NewFeature(orb.LineString{s.Start, s.End})
		f.Properties["type"] = FeatureSegment
		f.Properties["startIndex"] = s.StartIndex
		f.Properties["endIndex"] = s.EndIndex
		f.Properties["value"] = s.Value
		f.Properties["band"] = string(s.Band)
		f.Properties["color"] = s.Color
		f.Properties["strokeWidth"] = s.Width
		fc.Append(f)
	}
	for _, m := range r.Markers {
		f := geojson.NewFeature(m.Position)
		f.Properties["type"] = FeaturePoint
		f.Properties["index"] = m.Index
		f.Properties["radius"] = m.Radius
		f.Properties["color"] = m.Color
		f.Properties["tooltip"] = m.Tooltip
		fc.Append(f)
	}
	if r.Viewport != nil {
		fc.BBox = geojson.NewBBox(r.Viewport.Bound())
	}
	fc.ExtraMembers = geojson.Properties{
		"metric":          string(r.Metric),
		"skippedSegments": r.Skipped,
	}
	return fc
}
