package accel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAMXWorkspaceBytes(t *testing.T) {
	testCases := []struct {
		name      string
		op        Op
		n1, n2, m int
		want      uint64
	}{
		{"gemm destination only", MatMul, 4, 8, 16, 4 * 4 * 8},
		{"inner product adds weights reorder", InnerProduct, 4, 8, 16, 4*4*8 + 2*8*16},
		// Tall rect row: the reordered weights dwarf the destination.
		{"rect row", InnerProduct, 32, 8388608, 1024, 4*32*8388608 + 2*8388608*1024},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, amxWorkspaceBytes(tc.op, tc.n1, tc.n2, tc.m))
		})
	}
}

func TestAMXBackend_WorkspaceBytes(t *testing.T) {
	backend := NewAMXBackend(zap.NewNop())
	assert.Equal(t, amxWorkspaceBytes(InnerProduct, 32, 8388608, 1024), backend.WorkspaceBytes(InnerProduct, 32, 8388608, 1024))
	assert.Greater(t, backend.WorkspaceBytes(InnerProduct, 32, 8388608, 1024), uint64(16)<<30)
}
