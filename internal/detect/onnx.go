package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// ONNXConfig configures the ONNX-backed recognizer. ModelDir must contain
// model.onnx, labels.json and tokenizer.json.
type ONNXConfig struct {
	ModelDir string
	MaxBytes int
	MinScore float64
}

// ONNXRecognizer runs a token-classification NER model through an ONNX
// session. Model files are loaded once on first use; a failed load makes
// every later call answer ErrUnavailable.
type ONNXRecognizer struct {
	cfg       ONNXConfig
	once      sync.Once
	loadErr   error
	labels    map[int]string
	tokenizer *WordPieceTokenizer
	session   nerSession
}

// nerSession abstracts the inference backend. The native onnxruntime
// session is only compiled in under the 'onnxruntime' build tag.
type nerSession interface {
	Run(ctx context.Context, inputIDs, attentionMask, tokenTypeIDs []int64) ([][]float32, error)
}

func NewONNXRecognizer(cfg ONNXConfig) *ONNXRecognizer {
	if cfg.ModelDir == "" {
		cfg.ModelDir = DefaultModelDir()
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 32 * 1024
	}
	return &ONNXRecognizer{cfg: cfg}
}

// DefaultModelDir prefers the per-user install location.
func DefaultModelDir() string {
	home, err := os.UserHomeDir()
	if err == nil {
		preferred := filepath.Join(home, ".newslens", "models", "ner_en")
		if _, statErr := os.Stat(filepath.Join(preferred, "model.onnx")); statErr == nil {
			return preferred
		}
	}
	return filepath.Join("internal", "models", "ner_en")
}

func (r *ONNXRecognizer) init() error {
	r.once.Do(func() {
		modelPath := filepath.Join(r.cfg.ModelDir, "model.onnx")
		if _, err := os.Stat(modelPath); err != nil {
			r.loadErr = fmt.Errorf("model missing: %w", err)
			return
		}
		labelsRaw, err := os.ReadFile(filepath.Join(r.cfg.ModelDir, "labels.json"))
		if err != nil {
			r.loadErr = fmt.Errorf("labels missing: %w", err)
			return
		}
		var labels map[string]string
		if err := json.Unmarshal(labelsRaw, &labels); err != nil {
			r.loadErr = fmt.Errorf("parse labels: %w", err)
			return
		}
		r.labels = make(map[int]string, len(labels))
		for k, v := range labels {
			var idx int
			if _, err := fmt.Sscanf(k, "%d", &idx); err != nil {
				r.loadErr = fmt.Errorf("label index %q: %w", k, err)
				return
			}
			r.labels[idx] = v
		}
		r.tokenizer, r.loadErr = NewWordPieceTokenizer(filepath.Join(r.cfg.ModelDir, "tokenizer.json"))
		if r.loadErr != nil {
			return
		}
		r.session, r.loadErr = newONNXSession(modelPath)
	})
	return r.loadErr
}

func (r *ONNXRecognizer) Recognize(ctx context.Context, text string) ([]RawEntity, error) {
	if len(text) == 0 {
		return nil, nil
	}
	if len(text) > r.cfg.MaxBytes {
		return nil, fmt.Errorf("%w (%d bytes, limit %d)", ErrInputTooLarge, len(text), r.cfg.MaxBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.init(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	encoded := r.tokenizer.Encode(text)
	logits, err := r.session.Run(ctx, encoded.InputIDs, encoded.AttentionMask, encoded.TokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	labels, scores := r.wordPredictions(encoded, logits)
	out := make([]RawEntity, 0)
	for _, e := range mergeBIO(encoded.Words, labels, scores) {
		if e.Score < r.cfg.MinScore {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// wordPredictions reduces per-piece logits to one label and score per word.
// The first piece of each word decides, matching how BERT NER heads are
// usually read out.
func (r *ONNXRecognizer) wordPredictions(encoded *EncodedText, logits [][]float32) ([]string, []float64) {
	labels := make([]string, len(encoded.Words))
	scores := make([]float64, len(encoded.Words))
	for i := range labels {
		labels[i] = "O"
	}
	seen := make(map[int]bool, len(encoded.Words))
	for pi, wi := range encoded.PieceToWordIdx {
		if wi < 0 || seen[wi] || pi >= len(logits) {
			continue
		}
		seen[wi] = true
		idx, prob := argmaxSoftmax(logits[pi])
		if label, ok := r.labels[idx]; ok {
			labels[wi] = label
			scores[wi] = prob
		}
	}
	return labels, scores
}

func argmaxSoftmax(logits []float32) (int, float64) {
	if len(logits) == 0 {
		return 0, 0
	}
	maxIdx := 0
	maxVal := logits[0]
	for i, v := range logits {
		if v > maxVal {
			maxIdx, maxVal = i, v
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v - maxVal))
	}
	return maxIdx, 1 / sum
}
