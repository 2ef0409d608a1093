package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"

	"github.com/richxcame/route-planner/pkg/httpclient"
	"github.com/richxcame/route-planner/pkg/logger"
	"github.com/richxcame/route-planner/pkg/polyline"
	"github.com/richxcame/route-planner/pkg/resilience"
	"go.uber.org/zap"
)

const (
	googleMapsBaseURL          = "https://maps.googleapis.com/maps/api"
	googleAutocompleteEndpoint = "/place/autocomplete/json"
	googleFindPlaceEndpoint    = "/place/findplacefromtext/json"
	googleDirectionsEndpoint   = "/directions/json"

	googleStatusOK = "OK"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// GoogleMapsProvider implements Provider for the Google Maps web services
type GoogleMapsProvider struct {
	apiKey  string
	client  *httpclient.Client
	breaker *resilience.CircuitBreaker
}

// NewGoogleMapsProvider creates a new Google Maps provider
func NewGoogleMapsProvider(config ProviderConfig) *GoogleMapsProvider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = googleMapsBaseURL
	}

	return &GoogleMapsProvider{
		apiKey: config.APIKey,
		client: httpclient.NewClient(baseURL, config.Timeout),
	}
}

// SetCircuitBreaker guards every outbound request with cb.
func (g *GoogleMapsProvider) SetCircuitBreaker(cb *resilience.CircuitBreaker) {
	g.breaker = cb
}

// Autocomplete returns the predictions for a partial query, in service order.
func (g *GoogleMapsProvider) Autocomplete(ctx context.Context, input string) ([]Candidate, error) {
	params := url.Values{}
	params.Set("input", input)
	params.Set("key", g.apiKey)

	var resp googleAutocompleteResponse
	if err := g.get(ctx, googleAutocompleteEndpoint, params, &resp); err != nil {
		return nil, err
	}

	if resp.Status != googleStatusOK {
		return nil, &StatusError{Endpoint: "autocomplete", Status: resp.Status, Message: resp.ErrorMessage}
	}

	candidates := make([]Candidate, len(resp.Predictions))
	for i, p := range resp.Predictions {
		candidates[i] = Candidate{ID: p.PlaceID, Description: p.Description}
	}

	return candidates, nil
}

// FindPlace resolves free text to the service's top-ranked place.
func (g *GoogleMapsProvider) FindPlace(ctx context.Context, input string) (Place, error) {
	params := url.Values{}
	params.Set("input", input)
	params.Set("inputtype", "textquery")
	params.Set("fields", "name,geometry")
	params.Set("key", g.apiKey)

	var resp googleFindPlaceResponse
	if err := g.get(ctx, googleFindPlaceEndpoint, params, &resp); err != nil {
		return Place{}, err
	}

	if resp.Status != googleStatusOK {
		return Place{}, &StatusError{Endpoint: "findplacefromtext", Status: resp.Status, Message: resp.ErrorMessage}
	}

	if len(resp.Candidates) == 0 {
		return Place{}, ErrNoCandidates
	}

	first := resp.Candidates[0]
	return Place{
		Name: first.Name,
		Location: Coordinate{
			Latitude:  first.Geometry.Location.Lat,
			Longitude: first.Geometry.Location.Lng,
		},
	}, nil
}

// Directions fetches the first route's first leg between two points.
func (g *GoogleMapsProvider) Directions(ctx context.Context, origin, destination Coordinate) (RouteSummary, error) {
	params := url.Values{}
	params.Set("origin", origin.String())
	params.Set("destination", destination.String())
	params.Set("key", g.apiKey)

	var resp googleDirectionsResponse
	if err := g.get(ctx, googleDirectionsEndpoint, params, &resp); err != nil {
		return RouteSummary{}, err
	}

	if resp.Status != googleStatusOK {
		return RouteSummary{}, &StatusError{Endpoint: "directions", Status: resp.Status, Message: resp.ErrorMessage}
	}

	return convertDirectionsResponse(&resp)
}

func convertDirectionsResponse(resp *googleDirectionsResponse) (RouteSummary, error) {
	if len(resp.Routes) == 0 {
		return RouteSummary{}, ErrNoRoute
	}
	route := resp.Routes[0]

	if len(route.Legs) == 0 {
		return RouteSummary{}, ErrNoLeg
	}
	leg := route.Legs[0]

	points, err := polyline.Decode(route.OverviewPolyline.Points)
	if err != nil {
		return RouteSummary{}, fmt.Errorf("overview polyline: %w", err)
	}

	steps := make([]RouteStep, len(leg.Steps))
	for i, s := range leg.Steps {
		steps[i] = RouteStep{
			Instruction:  stripTags(s.HTMLInstructions),
			DistanceText: s.Distance.Text,
			Maneuver:     s.Maneuver,
		}
	}

	return RouteSummary{
		DistanceText: leg.Distance.Text,
		DurationText: leg.Duration.Text,
		Steps:        steps,
		Geometry:     CoordinatesFromPoints(points),
	}, nil
}

// stripTags removes every <...> run and leaves entities untouched.
func stripTags(html string) string {
	return htmlTagPattern.ReplaceAllString(html, "")
}

// get performs the request through the breaker and decodes the JSON body into out.
func (g *GoogleMapsProvider) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	result, err := g.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return g.client.Get(ctx, endpoint, params, nil)
	})
	if err != nil {
		return fmt.Errorf("google maps %s request failed: %w", endpoint, err)
	}

	body := result.([]byte)
	if err := json.Unmarshal(body, out); err != nil {
		logger.WarnContext(ctx, "Unparseable Google Maps response",
			zap.String("endpoint", endpoint),
			zap.Int("body_size", len(body)),
		)
		return fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}

	return nil
}

// Google Maps API response types

type googleAutocompleteResponse struct {
	Status       string             `json:"status"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Predictions  []googlePrediction `json:"predictions"`
}

type googlePrediction struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

type googleFindPlaceResponse struct {
	Status       string                 `json:"status"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Candidates   []googlePlaceCandidate `json:"candidates"`
}

type googlePlaceCandidate struct {
	Name     string         `json:"name"`
	Geometry googleGeometry `json:"geometry"`
}

type googleGeometry struct {
	Location googleLatLng `json:"location"`
}

type googleDirectionsResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Routes       []googleRoute `json:"routes"`
}

type googleRoute struct {
	Legs             []googleLeg    `json:"legs"`
	OverviewPolyline googlePolyline `json:"overview_polyline"`
}

type googleLeg struct {
	Distance googleValue  `json:"distance"`
	Duration googleValue  `json:"duration"`
	Steps    []googleStep `json:"steps"`
}

type googleStep struct {
	HTMLInstructions string      `json:"html_instructions"`
	Distance         googleValue `json:"distance"`
	Maneuver         string      `json:"maneuver,omitempty"`
}

type googlePolyline struct {
	Points string `json:"points"`
}

type googleLatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type googleValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}
