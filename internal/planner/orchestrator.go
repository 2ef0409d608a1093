package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/richxcame/route-planner/internal/maps"
	"github.com/richxcame/route-planner/pkg/logger"
	"github.com/richxcame/route-planner/pkg/tracing"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "route-planner/planner"

var (
	// ErrNothingToDispatch is returned when Dispatch is called without an active route.
	ErrNothingToDispatch = errors.New("no route to dispatch")
	// ErrDispatchUnavailable is returned when no dispatcher is configured.
	ErrDispatchUnavailable = errors.New("dispatch is not configured")
)

// PlaceSearcher returns ranked candidates for partial text.
type PlaceSearcher interface {
	Search(ctx context.Context, text string) ([]maps.Candidate, error)
}

// PlaceResolver turns a candidate description into a named location.
type PlaceResolver interface {
	Resolve(ctx context.Context, description string) (maps.Place, error)
}

// RouteFetcher computes a driving route between two points.
type RouteFetcher interface {
	Route(ctx context.Context, origin, destination maps.Coordinate) (maps.RouteSummary, error)
}

// MapsClient is the full set of remote calls the orchestrator sequences.
type MapsClient interface {
	PlaceSearcher
	PlaceResolver
	RouteFetcher
}

// DispatchRequest is the final route handed to the vehicle.
type DispatchRequest struct {
	SessionID   string
	Destination Destination
	Route       maps.RouteSummary
}

// Dispatcher sends a planned route onwards.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) error
}

// Options tunes an Orchestrator.
type Options struct {
	// MinQueryLength is the shortest query (in runes) that triggers a search.
	// Values below 1 are treated as 1.
	MinQueryLength int
	Dispatcher     Dispatcher
}

type requestKind string

const (
	kindSearch  requestKind = "search"
	kindResolve requestKind = "resolve"
	kindRoute   requestKind = "route"
)

// sequence hands out monotonically increasing tags for one request kind.
type sequence struct {
	issued uint64
}

func (s *sequence) next() uint64 {
	s.issued++
	return s.issued
}

func (s *sequence) isLatest(tag uint64) bool {
	return tag == s.issued
}

// Orchestrator sequences search, resolve and route calls for one planning
// session and owns its State.
//
// Operations may run concurrently. State is only touched under mu; remote
// calls happen outside it and their results are applied only if no newer
// request of the same kind has been issued in the meantime.
type Orchestrator struct {
	sessionID      string
	maps           MapsClient
	dispatcher     Dispatcher
	minQueryLength int

	mu          sync.Mutex
	state       State
	version     uint64
	search      sequence
	resolve     sequence
	route       sequence
	subscribers map[uint64]chan Snapshot
	nextSubID   uint64
	closed      bool
}

// NewOrchestrator creates an orchestrator for sessionID.
func NewOrchestrator(sessionID string, client MapsClient, opts Options) *Orchestrator {
	if opts.MinQueryLength < 1 {
		opts.MinQueryLength = 1
	}

	return &Orchestrator{
		sessionID:      sessionID,
		maps:           client,
		dispatcher:     opts.Dispatcher,
		minQueryLength: opts.MinQueryLength,
		subscribers:    make(map[uint64]chan Snapshot),
	}
}

// SessionID returns the session this orchestrator belongs to.
func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// SetQuery records the query text and refreshes candidates for it.
func (o *Orchestrator) SetQuery(ctx context.Context, text string) Snapshot {
	ctx, span := o.startSpan(ctx, "planner.SetQuery")
	defer span.End()

	o.mu.Lock()
	o.state.QueryText = text
	if utf8.RuneCountInString(text) < o.minQueryLength {
		o.state.Candidates = nil
		o.search.next()
		snap := o.commitLocked()
		o.mu.Unlock()
		return snap
	}
	tag := o.search.next()
	o.commitLocked()
	o.mu.Unlock()

	tracing.AddSpanAttributes(ctx, tracing.RequestTagKey.Int64(int64(tag)))
	candidates, err := o.maps.Search(ctx, text)

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.search.isLatest(tag) {
		o.discardLocked(ctx, kindSearch, tag, err)
		return o.snapshotLocked()
	}

	if err != nil {
		o.state.Candidates = nil
		o.failLocked(ctx, kindSearch, err, maps.KindSearchUnavailable)
	} else {
		o.state.Candidates = candidates
		o.state.LastError = ""
		plannerResponsesTotal.WithLabelValues(string(kindSearch), resultApplied).Inc()
		tracing.AddSpanAttributes(ctx, tracing.ResultCountKey.Int(len(candidates)))
	}

	return o.commitLocked()
}

// SelectCandidate clears the candidate list, resolves description and, when a
// current position is known, fetches the route to it.
func (o *Orchestrator) SelectCandidate(ctx context.Context, description string) Snapshot {
	ctx, span := o.startSpan(ctx, "planner.SelectCandidate")
	defer span.End()

	o.mu.Lock()
	o.state.Candidates = nil
	o.search.next()
	tag := o.resolve.next()
	o.commitLocked()
	o.mu.Unlock()

	place, err := o.maps.Resolve(ctx, description)

	o.mu.Lock()
	if !o.resolve.isLatest(tag) {
		o.discardLocked(ctx, kindResolve, tag, err)
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap
	}

	if err != nil {
		o.failLocked(ctx, kindResolve, err, maps.KindPlaceNotFound)
		snap := o.commitLocked()
		o.mu.Unlock()
		return snap
	}

	if o.state.CurrentPosition == nil {
		o.failLocked(ctx, kindResolve, maps.ErrNoOrigin, maps.KindNoOrigin)
		snap := o.commitLocked()
		o.mu.Unlock()
		return snap
	}

	plannerResponsesTotal.WithLabelValues(string(kindResolve), resultApplied).Inc()

	origin := *o.state.CurrentPosition
	o.state.Destination = &Destination{Name: place.Name, Location: place.Location}
	o.state.ActiveRoute = nil
	o.state.LastError = ""
	routeTag := o.route.next()
	o.commitLocked()
	o.mu.Unlock()

	return o.fetchRoute(ctx, routeTag, origin, place.Location)
}

func (o *Orchestrator) fetchRoute(ctx context.Context, tag uint64, origin, destination maps.Coordinate) Snapshot {
	tracing.AddSpanAttributes(ctx, tracing.RequestTagKey.Int64(int64(tag)))
	route, err := o.maps.Route(ctx, origin, destination)

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.route.isLatest(tag) {
		o.discardLocked(ctx, kindRoute, tag, err)
		return o.snapshotLocked()
	}

	if err != nil {
		o.failLocked(ctx, kindRoute, err, maps.KindRouteUnavailable)
	} else {
		summary := route.Clone()
		o.state.ActiveRoute = &summary
		o.state.LastError = ""
		plannerResponsesTotal.WithLabelValues(string(kindRoute), resultApplied).Inc()
	}

	return o.commitLocked()
}

// SetCurrentPosition overwrites the origin used for future route fetches.
func (o *Orchestrator) SetCurrentPosition(coord maps.Coordinate) Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state.CurrentPosition = &coord
	return o.commitLocked()
}

// Snapshot returns the current read model.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every applied
// mutation. A slow reader only ever sees the latest snapshot. The returned
// func cancels the subscription and closes the channel.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if o.closed {
		close(ch)
		return ch, func() {}
	}

	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if sub, ok := o.subscribers[id]; ok {
				delete(o.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close ends every subscription. Operations still work but publish nothing.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	for id, ch := range o.subscribers {
		delete(o.subscribers, id)
		close(ch)
	}
}

// Dispatch hands the current destination and route to the dispatcher.
func (o *Orchestrator) Dispatch(ctx context.Context) error {
	ctx, span := o.startSpan(ctx, "planner.Dispatch")
	defer span.End()

	o.mu.Lock()
	if o.state.Destination == nil || o.state.ActiveRoute == nil {
		o.mu.Unlock()
		plannerDispatchTotal.WithLabelValues("nothing").Inc()
		return ErrNothingToDispatch
	}
	req := DispatchRequest{
		SessionID:   o.sessionID,
		Destination: *o.state.Destination,
		Route:       o.state.ActiveRoute.Clone(),
	}
	o.mu.Unlock()

	if o.dispatcher == nil {
		plannerDispatchTotal.WithLabelValues("unavailable").Inc()
		return ErrDispatchUnavailable
	}

	if err := o.dispatcher.Dispatch(ctx, req); err != nil {
		plannerDispatchTotal.WithLabelValues("error").Inc()
		tracing.RecordError(ctx, err)
		return fmt.Errorf("dispatch route: %w", err)
	}

	plannerDispatchTotal.WithLabelValues("ok").Inc()
	logger.InfoContext(ctx, "Route dispatched",
		zap.String("destination", req.Destination.Name),
		zap.String("distance", req.Route.DistanceText),
	)
	return nil
}

func (o *Orchestrator) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	ctx = logger.ContextWithSessionID(ctx, o.sessionID)
	return tracing.StartSpan(ctx, tracerName, name,
		trace.WithAttributes(tracing.SessionIDKey.String(o.sessionID)),
	)
}

// failLocked records err as the latest error. err's own kind wins over fallback.
func (o *Orchestrator) failLocked(ctx context.Context, kind requestKind, err error, fallback maps.ErrorKind) {
	errKind := maps.KindOf(err)
	if errKind == "" {
		errKind = fallback
	}
	o.state.LastError = errKind

	plannerResponsesTotal.WithLabelValues(string(kind), resultFailed).Inc()
	plannerErrorsTotal.WithLabelValues(string(errKind)).Inc()
	tracing.RecordError(ctx, err, tracing.RequestKindKey.String(string(kind)))
	logger.WarnContext(ctx, "Planning step failed",
		zap.String("kind", string(kind)),
		zap.String("error_kind", string(errKind)),
		zap.Error(err),
	)
}

func (o *Orchestrator) discardLocked(ctx context.Context, kind requestKind, tag uint64, err error) {
	plannerResponsesTotal.WithLabelValues(string(kind), resultStale).Inc()
	logger.DebugContext(ctx, "Discarding stale response",
		zap.String("kind", string(kind)),
		zap.Uint64("tag", tag),
		zap.Bool("failed", err != nil),
	)
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		SessionID: o.sessionID,
		Version:   o.version,
		State:     o.state.clone(),
	}
}

// commitLocked bumps the version and publishes the new snapshot.
func (o *Orchestrator) commitLocked() Snapshot {
	o.version++
	snap := o.snapshotLocked()
	for _, ch := range o.subscribers {
		deliverLatest(ch, snap)
	}
	return snap
}

// deliverLatest replaces whatever is buffered in ch with snap.
// Callers hold the orchestrator lock, so they are the only sender.
func deliverLatest(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
