package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/richxcame/route-planner/pkg/config"
	"github.com/richxcame/route-planner/pkg/logger"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when the breaker refuses a request because it is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Operation represents a call wrapped by the circuit breaker.
type Operation func(ctx context.Context) (interface{}, error)

// Settings defines runtime options for the circuit breaker.
type Settings struct {
	Name             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
	// IsSuccessful classifies errors that should not count against the upstream.
	// A nil func treats every non-nil error as a failure.
	IsSuccessful func(err error) bool
}

// BuildSettings converts configured breaker tuning into Settings.
func BuildSettings(name string, cfg config.CircuitBreakerSettings) Settings {
	return Settings{
		Name:             name,
		Interval:         time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:          time.Duration(cfg.TimeoutSeconds) * time.Second,
		FailureThreshold: uint32(cfg.FailureThreshold),
		SuccessThreshold: uint32(cfg.SuccessThreshold),
	}
}

// CircuitBreaker wraps gobreaker with defaults suitable for our services.
type CircuitBreaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreaker constructs a breaker that logs and exports its state transitions.
func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	name := nextBreakerName(settings.Name)

	readyToTrip := func(counts gobreaker.Counts) bool {
		threshold := settings.FailureThreshold
		if threshold == 0 {
			threshold = 5
		}
		return counts.ConsecutiveFailures >= threshold
	}

	breakerSettings := gobreaker.Settings{
		Name:         name,
		Timeout:      settings.Timeout,
		Interval:     settings.Interval,
		ReadyToTrip:  readyToTrip,
		IsSuccessful: settings.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			recordBreakerStateChange(name, from, to)
			logger.Get().Info("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	if settings.SuccessThreshold > 0 {
		breakerSettings.MaxRequests = settings.SuccessThreshold
	}

	recordBreakerState(name, gobreaker.StateClosed)

	return &CircuitBreaker{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(breakerSettings),
	}
}

// Name returns the breaker's metric label.
func (c *CircuitBreaker) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Execute runs the supplied operation through the breaker. A nil breaker runs it directly.
func (c *CircuitBreaker) Execute(ctx context.Context, operation Operation) (interface{}, error) {
	if operation == nil {
		return nil, errors.New("operation cannot be nil")
	}

	if c == nil || c.breaker == nil {
		return operation(ctx)
	}

	recordBreakerRequest(c.name)
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return operation(ctx)
	})
	if err == nil {
		return result, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		recordBreakerRejection(c.name)
		return nil, ErrCircuitOpen
	}

	recordBreakerFailure(c.name)
	return nil, err
}

// Allow reports whether the breaker would allow a request without executing it.
func (c *CircuitBreaker) Allow() bool {
	if c == nil || c.breaker == nil {
		return true
	}
	return c.breaker.State() != gobreaker.StateOpen
}
