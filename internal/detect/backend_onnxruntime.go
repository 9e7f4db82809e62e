//go:build onnxruntime

package detect

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInitOnce sync.Once

type nativeONNXSession struct {
	modelPath string
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
}

func newONNXSession(modelPath string) (nerSession, error) {
	var initErr error
	ortInitOnce.Do(func() {
		if lib := os.Getenv("NEWSLENS_ONNXRUNTIME_LIB"); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", initErr)
	}
	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"logits"}, nil)
	if err != nil {
		return nil, fmt.Errorf("open onnx session: %w", err)
	}
	return &nativeONNXSession{modelPath: modelPath, session: session}, nil
}

func (s *nativeONNXSession) Run(ctx context.Context, inputIDs, attentionMask, tokenTypeIDs []int64) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shape := ort.NewShape(1, int64(len(inputIDs)))
	ids, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, err
	}
	defer ids.Destroy()
	mask, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, err
	}
	defer mask.Destroy()
	types, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, err
	}
	defer types.Destroy()

	outputs := []ort.Value{nil}
	// The ORT session is not safe for concurrent Run calls.
	s.mu.Lock()
	err = s.session.Run([]ort.Value{ids, mask, types}, outputs)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	logitsTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}
	defer logitsTensor.Destroy()

	dims := logitsTensor.GetShape()
	if len(dims) != 3 || dims[0] != 1 {
		return nil, fmt.Errorf("unexpected logits shape %v", dims)
	}
	seqLen, numLabels := int(dims[1]), int(dims[2])
	flat := logitsTensor.GetData()
	if len(flat) < seqLen*numLabels {
		return nil, fmt.Errorf("truncated logits: %d < %d", len(flat), seqLen*numLabels)
	}
	logits := make([][]float32, seqLen)
	for i := 0; i < seqLen; i++ {
		logits[i] = flat[i*numLabels : (i+1)*numLabels]
	}
	return logits, nil
}
