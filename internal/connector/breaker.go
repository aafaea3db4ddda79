package connector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures the circuit breaker guarding a connector
type BreakerSettings struct {
	FailureThreshold uint32
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
}

// Breaker stops launching a source's scraper after repeated failures and
// fails fast until the breaker half-opens again
type Breaker struct {
	next Connector
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps next in a circuit breaker
func WithBreaker(next Connector, settings BreakerSettings, logger *slog.Logger) *Breaker {
	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "connector-" + string(next.Source()),
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a shutdown is not the source's fault
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Connector circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Breaker{next: next, cb: cb}
}

// Source returns the wrapped connector's source
func (b *Breaker) Source() domain.Source {
	return b.next.Source()
}

// Fetch runs the wrapped connector unless the breaker is open
func (b *Breaker) Fetch(ctx context.Context, q Query) ([]RawRecord, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Fetch(ctx, q)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, newError(b.next.Source(), ErrLaunch, err)
		}
		return nil, err
	}

	records, _ := res.([]RawRecord)
	return records, nil
}

// State reports the breaker state, for health output
func (b *Breaker) State() string {
	return b.cb.State().String()
}
