package maps

import (
	"strconv"

	"github.com/richxcame/route-planner/pkg/polyline"
)

// Coordinate represents a geographic point
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String formats the coordinate as "lat,lng" without losing precision.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// IsValid reports whether the coordinate lies within WGS84 bounds.
func (c Coordinate) IsValid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Candidate is one autocomplete prediction.
type Candidate struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Place is a resolved destination.
type Place struct {
	Name     string     `json:"name"`
	Location Coordinate `json:"location"`
}

// RouteStep is a single manoeuvre of a route leg.
type RouteStep struct {
	Instruction  string `json:"instruction"`
	DistanceText string `json:"distance_text"`
	Maneuver     string `json:"maneuver,omitempty"`
}

// RouteSummary is the display-ready result of a directions request.
type RouteSummary struct {
	DistanceText string       `json:"distance_text"`
	DurationText string       `json:"duration_text"`
	Steps        []RouteStep  `json:"steps"`
	Geometry     []Coordinate `json:"geometry"`
}

// Clone returns a deep copy.
func (r RouteSummary) Clone() RouteSummary {
	out := r
	if r.Steps != nil {
		out.Steps = append([]RouteStep(nil), r.Steps...)
	}
	if r.Geometry != nil {
		out.Geometry = append([]Coordinate(nil), r.Geometry...)
	}
	return out
}

// CoordinatesFromPoints converts decoded polyline points.
func CoordinatesFromPoints(points []polyline.Point) []Coordinate {
	coords := make([]Coordinate, len(points))
	for i, p := range points {
		coords[i] = Coordinate{Latitude: p.Lat, Longitude: p.Lng}
	}
	return coords
}

// PointsFromCoordinates converts a geometry back into polyline points.
func PointsFromCoordinates(coords []Coordinate) []polyline.Point {
	points := make([]polyline.Point, len(coords))
	for i, c := range coords {
		points[i] = polyline.Point{Lat: c.Latitude, Lng: c.Longitude}
	}
	return points
}
