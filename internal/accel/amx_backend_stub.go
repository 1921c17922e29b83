//go:build !amx || !linux || !cgo

package accel

import (
	"go.uber.org/zap"

	"github.com/fxnlabs/perf-amx/internal/matrix"
)

// AMXBackend is a stub type when the binary is built without the AMX kernel
type AMXBackend struct {
	logger *zap.Logger
}

// NewAMXBackend returns a backend that reports itself unavailable.
func NewAMXBackend(logger *zap.Logger) *AMXBackend {
	return &AMXBackend{logger: logger}
}

func (a *AMXBackend) Name() string { return "amx" }

func (a *AMXBackend) InnerProduct(s Stream, lhs, rhs []matrix.Element, n1, n2, m int, debug bool) (int64, error) {
	return 0, ErrUnsupported
}

func (a *AMXBackend) MatMul(s Stream, lhs, rhs []matrix.Element, n1, n2, m int, debug bool) (int64, error) {
	return 0, ErrUnsupported
}

func (a *AMXBackend) WorkspaceBytes(op Op, n1, n2, m int) uint64 {
	return amxWorkspaceBytes(op, n1, n2, m)
}

func (a *AMXBackend) NewStream() (Stream, error) {
	return nil, ErrUnsupported
}

func (a *AMXBackend) GetDeviceInfo() DeviceInfo {
	return DeviceInfo{Name: "AMX not available", Backend: a.Name()}
}

func (a *AMXBackend) IsAvailable() bool {
	return false
}

func (a *AMXBackend) Initialize() error {
	return ErrUnsupported
}

func (a *AMXBackend) Cleanup() error {
	return nil
}
