package accel

import "github.com/fxnlabs/perf-amx/internal/matrix"

// widen converts bf16 elements to float32.
func widen(src []matrix.Element) []float32 {
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = v.Float32()
	}
	return out
}

