package eventbus

import "time"

// LatLng is a WGS84 position carried in event payloads.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RouteStep is one manoeuvre of a dispatched route.
type RouteStep struct {
	Instruction string `json:"instruction"`
	Distance    string `json:"distance"`
	Maneuver    string `json:"maneuver,omitempty"`
}

// RouteDispatchedData is emitted when a rider sends the active route to their vehicle.
type RouteDispatchedData struct {
	DispatchID      string      `json:"dispatch_id"`
	SessionID       string      `json:"session_id"`
	DestinationName string      `json:"destination_name"`
	Destination     LatLng      `json:"destination"`
	DestinationCell string      `json:"destination_h3_cell,omitempty"`
	DistanceText    string      `json:"distance_text"`
	DurationText    string      `json:"duration_text"`
	Steps           []RouteStep `json:"steps"`
	EncodedPolyline string      `json:"encoded_polyline"`
	DispatchedAt    time.Time   `json:"dispatched_at"`
}
