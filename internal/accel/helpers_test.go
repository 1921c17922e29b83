package accel

import "github.com/fxnlabs/perf-amx/internal/matrix"

// narrow converts float32 values to bf16 elements.
func narrow(src []float32) []matrix.Element {
	out := make([]matrix.Element, len(src))
	for i, v := range src {
		out[i] = matrix.FromFloat32(v)
	}
	return out
}
