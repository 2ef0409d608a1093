package maps

import "context"

// Provider is a maps web service backend. Implementations return raw causes;
// Service classifies them into *Error.
type Provider interface {
	Autocomplete(ctx context.Context, input string) ([]Candidate, error)
	FindPlace(ctx context.Context, input string) (Place, error)
	Directions(ctx context.Context, origin, destination Coordinate) (RouteSummary, error)
}

var _ Provider = (*GoogleMapsProvider)(nil)
