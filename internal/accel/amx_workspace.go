package accel

import "github.com/fxnlabs/perf-amx/internal/matrix"

// amxWorkspaceBytes is the host memory the oneDNN kernels allocate beyond
// the operands: the f32 destination, plus a reordered n2×m bf16 weights
// buffer for inner product. The reorder is not always taken, so this is an
// upper bound.
func amxWorkspaceBytes(op Op, n1, n2, m int) uint64 {
	ws := 4 * uint64(n1) * uint64(n2)
	if op == InnerProduct {
		ws += matrix.ElementSize * uint64(n2) * uint64(m)
	}
	return ws
}
