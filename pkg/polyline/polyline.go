// Package polyline implements the Google encoded polyline algorithm format.
//
// Each coordinate is stored as a delta from the previous one, scaled by the
// precision factor, zig-zag folded and written as 5-bit groups offset by 63.
package polyline

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultPrecision is the scale factor used by the Google Directions API (5 decimal places).
const DefaultPrecision = 1e5

const (
	charOffset   = 63
	chunkMask    = 0x1f
	continuation = 0x20
	maxShift     = 64
)

// ErrMalformed is returned when an encoded string cannot be fully decoded.
var ErrMalformed = errors.New("malformed polyline")

// Point is a decoded latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Decode decodes a polyline encoded at DefaultPrecision.
func Decode(encoded string) ([]Point, error) {
	return DecodeWithPrecision(encoded, DefaultPrecision)
}

// DecodeWithPrecision decodes a polyline using the given scale factor.
// The empty string decodes to an empty, non-nil slice.
func DecodeWithPrecision(encoded string, factor float64) ([]Point, error) {
	points := make([]Point, 0, len(encoded)/4)

	var lat, lng int64
	index := 0
	for index < len(encoded) {
		dlat, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		dlng, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next

		lat += dlat
		lng += dlng
		points = append(points, Point{
			Lat: float64(lat) / factor,
			Lng: float64(lng) / factor,
		})
	}

	return points, nil
}

func decodeValue(encoded string, index int) (int64, int, error) {
	var result uint64
	var shift uint

	for {
		if index >= len(encoded) {
			return 0, index, fmt.Errorf("%w: truncated value at offset %d", ErrMalformed, index)
		}
		if shift >= maxShift {
			return 0, index, fmt.Errorf("%w: value overflows at offset %d", ErrMalformed, index)
		}

		c := encoded[index]
		if c < charOffset || c > charOffset+continuation+chunkMask {
			return 0, index, fmt.Errorf("%w: invalid character %q at offset %d", ErrMalformed, c, index)
		}
		index++

		b := uint64(c - charOffset)
		result |= (b & chunkMask) << shift
		shift += 5

		if b < continuation {
			break
		}
	}

	if result&1 != 0 {
		return ^int64(result >> 1), index, nil
	}
	return int64(result >> 1), index, nil
}

// Encode encodes points at DefaultPrecision.
func Encode(points []Point) string {
	return EncodeWithPrecision(points, DefaultPrecision)
}

// EncodeWithPrecision encodes points using the given scale factor.
func EncodeWithPrecision(points []Point, factor float64) string {
	var sb strings.Builder
	sb.Grow(len(points) * 8)

	var prevLat, prevLng int64
	for _, p := range points {
		lat := int64(math.Round(p.Lat * factor))
		lng := int64(math.Round(p.Lng * factor))

		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lng-prevLng)

		prevLat, prevLng = lat, lng
	}

	return sb.String()
}

func encodeValue(sb *strings.Builder, v int64) {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}

	for u >= continuation {
		sb.WriteByte(byte((continuation | (u & chunkMask)) + charOffset))
		u >>= 5
	}
	sb.WriteByte(byte(u + charOffset))
}
