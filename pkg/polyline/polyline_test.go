package polyline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const referencePolyline = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

var referencePoints = []Point{
	{Lat: 38.5, Lng: -120.2},
	{Lat: 40.7, Lng: -120.95},
	{Lat: 43.252, Lng: -126.453},
}

func TestDecode_ReferencePolyline(t *testing.T) {
	points, err := Decode(referencePolyline)

	require.NoError(t, err)
	assert.Equal(t, referencePoints, points)
}

func TestDecode_Empty(t *testing.T) {
	points, err := Decode("")

	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

func TestDecode_Origin(t *testing.T) {
	points, err := Decode("??")

	require.NoError(t, err)
	assert.Equal(t, []Point{{Lat: 0, Lng: 0}}, points)
}

func TestDecode_Deterministic(t *testing.T) {
	first, err := Decode(referencePolyline)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Decode(referencePolyline)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{name: "latitude without longitude", encoded: "_p~iF"},
		{name: "truncated latitude", encoded: "_p~i"},
		{name: "dangling continuation", encoded: "_"},
		{name: "character below range", encoded: "_p~iF~ps|U "},
		{name: "character above range", encoded: "\x7f?"},
		{name: "overlong value", encoded: "~~~~~~~~~~~~~~?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := Decode(tt.encoded)

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
			assert.Nil(t, points)
		})
	}
}

func TestEncode_ReferencePoints(t *testing.T) {
	assert.Equal(t, referencePolyline, Encode(referencePoints))
}

func TestEncode_Empty(t *testing.T) {
	assert.Equal(t, "", Encode(nil))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	points := []Point{
		{Lat: 37.42202, Lng: -122.08408},
		{Lat: 37.42199, Lng: -122.08395},
		{Lat: -33.86785, Lng: 151.20732},
		{Lat: 0, Lng: 0},
		{Lat: -89.99999, Lng: 179.99999},
	}

	decoded, err := Decode(Encode(points))

	require.NoError(t, err)
	require.Len(t, decoded, len(points))
	for i := range points {
		assert.InDelta(t, points[i].Lat, decoded[i].Lat, 1e-9)
		assert.InDelta(t, points[i].Lng, decoded[i].Lng, 1e-9)
	}
}

func TestDecodeWithPrecision_SixDigits(t *testing.T) {
	points := []Point{{Lat: 52.123456, Lng: 4.654321}}

	decoded, err := DecodeWithPrecision(EncodeWithPrecision(points, 1e6), 1e6)

	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.InDelta(t, 52.123456, decoded[0].Lat, 1e-9)
	assert.InDelta(t, 4.654321, decoded[0].Lng, 1e-9)
}
