// Package detect provides the pluggable statistical recognizer behind
// model-backed entity types. Implementations are treated as black boxes
// that map text to raw typed spans with a native model score; everything
// downstream (scoring, resolution, context) lives in the extract package.
package detect

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is returned when the model-backed recognizer cannot run
// (model missing, backend not built in, breaker open). Callers degrade to
// rule-based extraction on this error.
var ErrUnavailable = errors.New("statistical recognizer unavailable")

// ErrInputTooLarge is returned when the input exceeds the recognizer's
// size bound. It wraps ErrUnavailable so oversized requests degrade to
// rule-based extraction instead of silently losing model-backed types.
var ErrInputTooLarge = fmt.Errorf("input too large: %w", ErrUnavailable)

// RawEntity is an unscored model detection. Start/End are byte offsets into
// the input text; Score is the recognizer's native score in [0,1].
type RawEntity struct {
	Type   string
	Start  int
	End    int
	Score  float64
	Source string
}

// Recognizer is the statistical inference capability. Recognize is a
// bounded blocking call with no partial results; implementations must be
// safe for concurrent use.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]RawEntity, error)
}
