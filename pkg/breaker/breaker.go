package breaker

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/jebjergk/MIP-sub000/pkg/metrics"
)

// ErrOpen is returned while a breaker rejects calls
var ErrOpen = gobreaker.ErrOpenState

// Settings for one breaker
type Settings struct {
	Name                string
	Interval            time.Duration // count reset period while closed
	Timeout             time.Duration // open -> half-open
	ConsecutiveFailures uint32
	MinRequests         uint32
	FailureRatio        float64
}

// DefaultSettings trips after 3 consecutive failures or a 50% failure
// ratio over at least 10 requests
func DefaultSettings(name string) Settings {
	return Settings{
		Name:                name,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 3,
		MinRequests:         10,
		FailureRatio:        0.5,
	}
}

// Breaker wraps a gobreaker circuit breaker and publishes state changes
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New creates a breaker. rec may be nil.
func New(s Settings, rec *metrics.Recorder, log zerolog.Logger) *Breaker {
	st := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
	}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if s.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= s.ConsecutiveFailures {
			return true
		}
		if counts.Requests < s.MinRequests || counts.Requests == 0 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		rec.SetBreakerState(name, int(to))
		log.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}

	rec.SetBreakerState(s.Name, int(gobreaker.StateClosed))
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.cb.Name()
}

// State returns "closed", "half-open" or "open"
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Execute runs fn through the breaker
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// Do runs a typed call through the breaker
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}
