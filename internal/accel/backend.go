package accel

import (
	"errors"
	"fmt"

	"github.com/fxnlabs/perf-amx/internal/matrix"
)

var (
	ErrNotInitialized = errors.New("backend not initialized")
	ErrShapeMismatch  = errors.New("operand shape mismatch")
	ErrUnsupported    = errors.New("operation not supported by backend")
	ErrStreamClosed   = errors.New("stream closed")
)

// Op selects the primitive a kernel call executes.
type Op int

const (
	// InnerProduct computes the N1×N2 dot products of the M-length rows of
	// an N1×M and an N2×M operand.
	InnerProduct Op = iota
	// MatMul computes the N1×M by M×N2 matrix product.
	MatMul
)

func (o Op) String() string {
	switch o {
	case InnerProduct:
		return "IP"
	case MatMul:
		return "GEMM"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// RightShape returns the rows and columns of the right operand for op.
func (o Op) RightShape(n2, m int) (rows, cols int) {
	if o == MatMul {
		return m, n2
	}
	return n2, m
}

// DeviceInfo contains information about the compute device
type DeviceInfo struct {
	Name            string `json:"name"`
	Backend         string `json:"backend"`
	TotalMemory     int64  `json:"totalMemory"`     // in bytes
	AvailableMemory int64  `json:"availableMemory"` // in bytes
	Threads         int    `json:"threads"`
	Features        string `json:"features"`
}

// Stream is an ordered execution queue on a device. Backends wait on the
// stream before reporting a duration.
type Stream interface {
	Wait() error
	Close() error
}

// Backend defines the interface for matrix kernels timed by the benchmark.
//
// Implementation notes:
//   - InnerProduct and MatMul return the elapsed kernel time in nanoseconds,
//     measured after the stream has been synchronized.
//   - Operands are row-major. The left operand is n1×m. The right operand is
//     n2×m for InnerProduct and m×n2 for MatMul.
//   - debug enables per-call diagnostics.
type Backend interface {
	// Name returns the short backend name used in mode labels.
	Name() string

	InnerProduct(s Stream, a, b []matrix.Element, n1, n2, m int, debug bool) (int64, error)
	MatMul(s Stream, a, b []matrix.Element, n1, n2, m int, debug bool) (int64, error)

	// WorkspaceBytes reports host memory the kernel allocates beyond the
	// operands for one call (destination, widened copies).
	WorkspaceBytes(op Op, n1, n2, m int) uint64

	// NewStream creates an execution stream on the device.
	NewStream() (Stream, error)

	GetDeviceInfo() DeviceInfo

	// IsAvailable performs a quick check without heavy initialization.
	IsAvailable() bool

	// Initialize prepares the device. Should be called once before first use.
	Initialize() error

	// Cleanup releases the device.
	Cleanup() error
}

func checkOperands(op Op, a, b []matrix.Element, n1, n2, m int) error {
	if n1 <= 0 || n2 <= 0 || m <= 0 {
		return fmt.Errorf("%w: non-positive dimension %d/%d/%d", ErrShapeMismatch, n1, n2, m)
	}
	if len(a) != n1*m {
		return fmt.Errorf("%w: matrix A size mismatch: expected %d, got %d", ErrShapeMismatch, n1*m, len(a))
	}
	rows, cols := op.RightShape(n2, m)
	if len(b) != rows*cols {
		return fmt.Errorf("%w: matrix B size mismatch: expected %d, got %d", ErrShapeMismatch, rows*cols, len(b))
	}
	return nil
}
