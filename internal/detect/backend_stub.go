//go:build !onnxruntime

package detect

import "fmt"

// Without the onnxruntime build tag there is no inference backend; the
// recognizer reports unavailable and extraction degrades to rule-based
// types only.
func newONNXSession(string) (nerSession, error) {
	return nil, fmt.Errorf("native ONNX backend requires build tag 'onnxruntime'")
}
