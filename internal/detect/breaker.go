package detect

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes the availability breaker around a recognizer.
type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// BreakerRecognizer wraps a Recognizer with a circuit breaker so that a
// dead inference backend fails fast instead of paying the full timeout on
// every request. An open circuit surfaces as ErrUnavailable, which the
// extractor already treats as "degrade to rule-based types".
type BreakerRecognizer struct {
	inner   Recognizer
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerRecognizer(inner Recognizer, cfg BreakerConfig) *BreakerRecognizer {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        "statistical-recognizer",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// Context cancellation and oversized input are the caller's
			// doing, not backend health.
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, ErrInputTooLarge)
		},
	}
	return &BreakerRecognizer{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerRecognizer) Recognize(ctx context.Context, text string) ([]RawEntity, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Recognize(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		return nil, err
	}
	entities, _ := result.([]RawEntity)
	return entities, nil
}

// State reports the breaker state for diagnostics.
func (b *BreakerRecognizer) State() string {
	switch b.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
