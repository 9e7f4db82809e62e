package detect

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestONNXRecognizerUnavailableWithoutModel(t *testing.T) {
	r := NewONNXRecognizer(ONNXConfig{ModelDir: t.TempDir()})
	_, err := r.Recognize(context.Background(), "Tim Cook visited Brussels.")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestONNXRecognizerRejectsOversizedInput(t *testing.T) {
	r := NewONNXRecognizer(ONNXConfig{ModelDir: t.TempDir(), MaxBytes: 8})
	_, err := r.Recognize(context.Background(), "this text is longer than eight bytes")
	if !errors.Is(err, ErrInputTooLarge) {
		t.Fatalf("expected ErrInputTooLarge, got %v", err)
	}
	// Oversized input must degrade like an unavailable backend so the
	// caller still gets rule-based entities plus a degradation flag.
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("ErrInputTooLarge must wrap ErrUnavailable, got %v", err)
	}
}

func TestHeuristicRecognizer(t *testing.T) {
	text := "Apple Inc. CEO Tim Cook met with regulators in Brussels."
	got, err := HeuristicRecognizer{}.Recognize(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	byType := map[string][]string{}
	for _, e := range got {
		if e.Start < 0 || e.End > len(text) || e.Start >= e.End {
			t.Fatalf("invalid span: %+v", e)
		}
		byType[e.Type] = append(byType[e.Type], text[e.Start:e.End])
	}
	if len(byType["ORGANIZATION"]) == 0 || byType["ORGANIZATION"][0] != "Apple Inc." {
		t.Fatalf("expected Apple Inc. as ORGANIZATION, got %v", byType)
	}
	found := false
	for _, p := range byType["PERSON"] {
		if p == "Tim Cook" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Tim Cook as PERSON, got %v", byType)
	}
	foundLoc := false
	for _, l := range byType["LOCATION"] {
		if l == "Brussels" {
			foundLoc = true
		}
	}
	if !foundLoc {
		t.Fatalf("expected Brussels as LOCATION, got %v", byType)
	}
}

func TestHeuristicDeterminism(t *testing.T) {
	text := "Angela Merkel spoke in Berlin and Paris yesterday."
	a, _ := HeuristicRecognizer{}.Recognize(context.Background(), text)
	b, _ := HeuristicRecognizer{}.Recognize(context.Background(), text)
	if len(a) != len(b) {
		t.Fatalf("nondeterministic output: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("nondeterministic entity at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

type failingRecognizer struct{ calls int }

func (f *failingRecognizer) Recognize(context.Context, string) ([]RawEntity, error) {
	f.calls++
	return nil, errors.New("backend down")
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingRecognizer{}
	b := NewBreakerRecognizer(inner, BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := b.Recognize(ctx, "x"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if b.State() != "open" {
		t.Fatalf("breaker should be open, state=%s", b.State())
	}
	_, err := b.Recognize(ctx, "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("open breaker must answer ErrUnavailable, got %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("open breaker must not call the backend, calls=%d", inner.calls)
	}
}

func TestBreakerIgnoresOversizedInput(t *testing.T) {
	r := NewONNXRecognizer(ONNXConfig{ModelDir: t.TempDir(), MaxBytes: 4})
	b := NewBreakerRecognizer(r, BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := b.Recognize(ctx, "longer than four bytes"); !errors.Is(err, ErrInputTooLarge) {
			t.Fatalf("got %v, want ErrInputTooLarge", err)
		}
	}
	if b.State() != "closed" {
		t.Fatalf("oversized inputs must not trip the breaker, state=%s", b.State())
	}
}

func TestBreakerPassesThroughResults(t *testing.T) {
	b := NewBreakerRecognizer(HeuristicRecognizer{}, BreakerConfig{})
	got, err := b.Recognize(context.Background(), "Tim Cook visited Brussels today.")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Fatal("expected passthrough entities")
	}
}
