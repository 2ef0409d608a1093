package planner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultApplied = "applied"
	resultStale   = "stale"
	resultFailed  = "failed"
)

var (
	plannerResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_responses_total",
		Help: "Remote responses seen by the orchestrator by request kind and outcome (applied, stale, failed)",
	}, []string{"kind", "result"})

	plannerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_errors_total",
		Help: "Errors recorded in session state by error kind",
	}, []string{"error_kind"})

	plannerSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planner_sessions_active",
		Help: "Planning sessions currently held in memory",
	})

	plannerDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_dispatch_total",
		Help: "Dispatch attempts by result",
	}, []string{"result"})
)
