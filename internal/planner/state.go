package planner

import "github.com/richxcame/route-planner/internal/maps"

// Destination is the place chosen by the user.
type Destination struct {
	Name     string          `json:"name"`
	Location maps.Coordinate `json:"location"`
}

// State is everything the rendering layer needs to draw a planning session.
// Only the Orchestrator mutates it.
type State struct {
	CurrentPosition *maps.Coordinate   `json:"current_position,omitempty"`
	QueryText       string             `json:"query_text"`
	Candidates      []maps.Candidate   `json:"candidates"`
	Destination     *Destination       `json:"destination,omitempty"`
	ActiveRoute     *maps.RouteSummary `json:"active_route,omitempty"`
	LastError       maps.ErrorKind     `json:"last_error,omitempty"`
}

// Snapshot is an immutable, version-stamped copy of State.
type Snapshot struct {
	SessionID string `json:"session_id"`
	Version   uint64 `json:"version"`
	State
}

// HasRoute reports whether a route is ready to be drawn or dispatched.
func (s Snapshot) HasRoute() bool {
	return s.Destination != nil && s.ActiveRoute != nil
}

func (s State) clone() State {
	out := State{
		QueryText:  s.QueryText,
		Candidates: make([]maps.Candidate, len(s.Candidates)),
		LastError:  s.LastError,
	}
	copy(out.Candidates, s.Candidates)

	if s.CurrentPosition != nil {
		pos := *s.CurrentPosition
		out.CurrentPosition = &pos
	}
	if s.Destination != nil {
		dest := *s.Destination
		out.Destination = &dest
	}
	if s.ActiveRoute != nil {
		route := s.ActiveRoute.Clone()
		out.ActiveRoute = &route
	}

	return out
}
