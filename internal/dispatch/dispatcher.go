// Package dispatch sends planned routes to the vehicle over the event bus.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/route-planner/internal/maps"
	"github.com/richxcame/route-planner/internal/planner"
	"github.com/richxcame/route-planner/pkg/eventbus"
	"github.com/richxcame/route-planner/pkg/logger"
	"github.com/richxcame/route-planner/pkg/polyline"
	"github.com/richxcame/route-planner/pkg/tracing"
	"github.com/uber/h3-go/v4"
	"go.uber.org/zap"
)

const tracerName = "route-planner/dispatch"

// DefaultH3Resolution is the cell size vehicle fleets index destinations by (~175m edge).
const DefaultH3Resolution = 9

// Publisher is the part of the event bus the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

// Config tunes a NATSDispatcher.
type Config struct {
	Source       string
	H3Resolution int
	Timeout      time.Duration
}

// NATSDispatcher publishes routes as routes.dispatched events.
type NATSDispatcher struct {
	publisher Publisher
	cfg       Config
	now       func() time.Time
}

var _ planner.Dispatcher = (*NATSDispatcher)(nil)

// NewNATSDispatcher creates a dispatcher publishing through publisher.
func NewNATSDispatcher(publisher Publisher, cfg Config) *NATSDispatcher {
	if cfg.Source == "" {
		cfg.Source = "route-planner"
	}
	return &NATSDispatcher{
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Dispatch publishes req and returns once the bus acknowledged it.
func (d *NATSDispatcher) Dispatch(ctx context.Context, req planner.DispatchRequest) error {
	data := d.buildPayload(ctx, req)

	event, err := eventbus.NewEvent(eventbus.SubjectRouteDispatched, d.cfg.Source, data)
	if err != nil {
		return err
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	err = tracing.TraceExternalAPI(ctx, tracerName, "nats", "publish", func(ctx context.Context) error {
		return d.publisher.Publish(ctx, eventbus.SubjectRouteDispatched, event)
	})
	if err != nil {
		return fmt.Errorf("publish dispatch %s: %w", data.DispatchID, err)
	}

	logger.InfoContext(ctx, "Route dispatch published",
		zap.String("dispatch_id", data.DispatchID),
		zap.String("event_id", event.ID),
		zap.String("destination_cell", data.DestinationCell),
	)
	return nil
}

func (d *NATSDispatcher) buildPayload(ctx context.Context, req planner.DispatchRequest) eventbus.RouteDispatchedData {
	steps := make([]eventbus.RouteStep, len(req.Route.Steps))
	for i, s := range req.Route.Steps {
		steps[i] = eventbus.RouteStep{
			Instruction: s.Instruction,
			Distance:    s.DistanceText,
			Maneuver:    s.Maneuver,
		}
	}

	return eventbus.RouteDispatchedData{
		DispatchID:      uuid.New().String(),
		SessionID:       req.SessionID,
		DestinationName: req.Destination.Name,
		Destination: eventbus.LatLng{
			Latitude:  req.Destination.Location.Latitude,
			Longitude: req.Destination.Location.Longitude,
		},
		DestinationCell: d.destinationCell(ctx, req.Destination.Location),
		DistanceText:    req.Route.DistanceText,
		DurationText:    req.Route.DurationText,
		Steps:           steps,
		EncodedPolyline: polyline.Encode(maps.PointsFromCoordinates(req.Route.Geometry)),
		DispatchedAt:    d.now().UTC(),
	}
}

// destinationCell returns the H3 index of c, or "" when it cannot be computed.
func (d *NATSDispatcher) destinationCell(ctx context.Context, c maps.Coordinate) string {
	cell, err := h3.LatLngToCell(h3.NewLatLng(c.Latitude, c.Longitude), d.cfg.H3Resolution)
	if err != nil {
		logger.WarnContext(ctx, "Failed to index destination",
			zap.Int("resolution", d.cfg.H3Resolution),
			zap.Error(err),
		)
		return ""
	}
	return cell.String()
}
