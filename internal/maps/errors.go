package maps

import (
	"errors"
	"fmt"

	"github.com/richxcame/route-planner/pkg/polyline"
)

// ErrorKind classifies a failed planning step for display.
type ErrorKind string

const (
	KindSearchUnavailable ErrorKind = "search_unavailable"
	KindPlaceNotFound     ErrorKind = "place_not_found"
	KindRouteUnavailable  ErrorKind = "route_unavailable"
	KindNoOrigin          ErrorKind = "no_origin"
	KindMalformedPolyline ErrorKind = "malformed_polyline"
)

// Sentinels for errors.Is checks; they match any *Error of the same kind.
var (
	ErrSearchUnavailable = &Error{Kind: KindSearchUnavailable}
	ErrPlaceNotFound     = &Error{Kind: KindPlaceNotFound}
	ErrRouteUnavailable  = &Error{Kind: KindRouteUnavailable}
	ErrNoOrigin          = &Error{Kind: KindNoOrigin}
)

// Causes reported by the provider when the service answered OK but had nothing usable.
var (
	ErrNoCandidates = errors.New("no candidates returned")
	ErrNoRoute      = errors.New("no route returned")
	ErrNoLeg        = errors.New("route has no legs")
)

// Error is the typed failure of a maps call.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("maps %s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf extracts the ErrorKind carried by err, or "" when it has none.
func KindOf(err error) ErrorKind {
	var mapsErr *Error
	if errors.As(err, &mapsErr) {
		return mapsErr.Kind
	}
	if errors.Is(err, polyline.ErrMalformed) {
		return KindMalformedPolyline
	}
	return ""
}

// StatusError is a response whose status field was not "OK".
type StatusError struct {
	Endpoint string
	Status   string
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("google maps %s: status %s", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("google maps %s: status %s: %s", e.Endpoint, e.Status, e.Message)
}
