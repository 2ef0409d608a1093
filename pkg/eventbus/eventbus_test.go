package eventbus

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// NewEvent
// ---------------------------------------------------------------------------

func TestNewEvent_Success(t *testing.T) {
	data := map[string]string{"session_id": "abc"}

	event, err := NewEvent(SubjectRouteDispatched, "planner", data)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, SubjectRouteDispatched, event.Type)
	assert.Equal(t, "planner", event.Source)
	assert.False(t, event.Timestamp.IsZero())

	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, "abc", decoded["session_id"])
}

func TestNewEvent_NilData(t *testing.T) {
	event, err := NewEvent("test.event", "test-source", nil)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), event.Data)
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	first, err := NewEvent("test.event", "src", nil)
	require.NoError(t, err)
	second, err := NewEvent("test.event", "src", nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("test.event", "src", math.Inf(1))

	assert.Error(t, err)
}

func TestNewEvent_RouteDispatchedPayload(t *testing.T) {
	dispatchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data := RouteDispatchedData{
		DispatchID:      uuid.NewString(),
		SessionID:       "session-1",
		DestinationName: "Ferry Building",
		Destination:     LatLng{Latitude: 37.7955, Longitude: -122.3937},
		DistanceText:    "2.1 km",
		DurationText:    "9 mins",
		Steps: []RouteStep{
			{Instruction: "Head north on Main St", Distance: "0.2 km", Maneuver: ""},
			{Instruction: "Turn right onto Market St", Distance: "1.9 km", Maneuver: "turn-right"},
		},
		EncodedPolyline: "_p~iF~ps|U",
		DispatchedAt:    dispatchedAt,
	}

	event, err := NewEvent(SubjectRouteDispatched, "planner", data)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Data, &raw))
	assert.Equal(t, "Ferry Building", raw["destination_name"])
	assert.Equal(t, "_p~iF~ps|U", raw["encoded_polyline"])
	assert.NotContains(t, raw, "destination_h3_cell")

	steps := raw["steps"].([]interface{})
	require.Len(t, steps, 2)
	assert.NotContains(t, steps[0].(map[string]interface{}), "maneuver")
	assert.Equal(t, "turn-right", steps[1].(map[string]interface{})["maneuver"])
}

func TestBus_ConnectedNil(t *testing.T) {
	var bus *Bus
	assert.False(t, bus.Connected())
}
