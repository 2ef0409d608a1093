package planner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/route-planner/pkg/async"
	"github.com/richxcame/route-planner/pkg/logger"
	"github.com/richxcame/route-planner/pkg/websocket"
	"go.uber.org/zap"
)

// SnapshotPublisher pushes snapshots to connected UI clients.
type SnapshotPublisher interface {
	BroadcastToSession(sessionID string, msg *websocket.Message)
	CloseSession(sessionID string)
}

type session struct {
	orchestrator *Orchestrator
	lastSeen     time.Time
}

// Registry owns one Orchestrator per planning session.
type Registry struct {
	maps      MapsClient
	opts      Options
	publisher SnapshotPublisher
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// NewRegistry creates a registry. A nil publisher disables snapshot push.
func NewRegistry(client MapsClient, opts Options, publisher SnapshotPublisher) *Registry {
	return &Registry{
		maps:      client,
		opts:      opts,
		publisher: publisher,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
}

// Create starts a new planning session.
func (r *Registry) Create() *Orchestrator {
	id := uuid.New().String()
	o := NewOrchestrator(id, r.maps, r.opts)

	if r.publisher != nil {
		updates, _ := o.Subscribe()
		r.wg.Add(1)
		ctx := logger.ContextWithSessionID(context.Background(), id)
		async.Go(ctx, "forward-snapshots", func(ctx context.Context) {
			r.forward(ctx, id, updates)
		})
	}

	r.mu.Lock()
	r.sessions[id] = &session{orchestrator: o, lastSeen: r.now()}
	r.mu.Unlock()

	plannerSessionsActive.Inc()
	logger.Info("Planning session created", zap.String("session_id", id))
	return o
}

// Get returns the session's orchestrator and marks the session as used.
func (r *Registry) Get(id string) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = r.now()
	return s.orchestrator, true
}

// Delete ends a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return false
	}

	r.closeSession(id, s)
	logger.Info("Planning session deleted", zap.String("session_id", id))
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle removes sessions not used for longer than maxIdle and returns how many were removed.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	expired := make(map[string]*session)
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			expired[id] = s
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for id, s := range expired {
		r.closeSession(id, s)
	}
	if len(expired) > 0 {
		logger.Info("Evicted idle planning sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// StartJanitor evicts idle sessions every interval until ctx is done.
func (r *Registry) StartJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.EvictIdle(maxIdle)
			}
		}
	}()
}

// Close ends every session and waits for snapshot forwarding to stop.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for id, s := range sessions {
		r.closeSession(id, s)
	}
	r.wg.Wait()
}

func (r *Registry) closeSession(id string, s *session) {
	s.orchestrator.Close()
	if r.publisher != nil {
		r.publisher.CloseSession(id)
	}
	plannerSessionsActive.Dec()
}

func (r *Registry) forward(ctx context.Context, id string, updates <-chan Snapshot) {
	defer r.wg.Done()

	for snap := range updates {
		msg, err := websocket.NewMessage(websocket.TypeSnapshot, id, snap)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to encode snapshot", zap.Error(err))
			continue
		}
		r.publisher.BroadcastToSession(id, msg)
	}
}
