package accel

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/fxnlabs/perf-amx/internal/matrix"
)

// CPUBackend implements Backend with gonum's single-precision BLAS. Operands
// are widened from bf16 before the timed region.
type CPUBackend struct {
	logger      *zap.Logger
	initialized bool
}

// NewCPUBackend creates a new CPU backend instance
func NewCPUBackend(logger *zap.Logger) *CPUBackend {
	return &CPUBackend{
		logger: logger,
	}
}

func (c *CPUBackend) Name() string { return "cpu" }

// Initialize prepares the CPU backend for use
func (c *CPUBackend) Initialize() error {
	if c.initialized {
		return nil
	}
	c.initialized = true
	c.logger.Info("CPU backend initialized", zap.Int("threads", runtime.GOMAXPROCS(0)))
	return nil
}

// Cleanup releases any resources (none for CPU backend)
func (c *CPUBackend) Cleanup() error {
	c.initialized = false
	return nil
}

// IsAvailable checks if the backend is available (always true for CPU)
func (c *CPUBackend) IsAvailable() bool {
	return true
}

// GetDeviceInfo returns device information for CPU
func (c *CPUBackend) GetDeviceInfo() DeviceInfo {
	total, available := SystemMemory()
	return DeviceInfo{
		Name:            fmt.Sprintf("CPU %s (%s)", cpuModel(), runtime.GOARCH),
		Backend:         c.Name(),
		TotalMemory:     int64(total),
		AvailableMemory: int64(available),
		Threads:         runtime.GOMAXPROCS(0),
		Features:        DetectFeatures().String(),
	}
}

func (c *CPUBackend) NewStream() (Stream, error) {
	if !c.initialized {
		return nil, fmt.Errorf("CPU backend: %w", ErrNotInitialized)
	}
	return &hostStream{}, nil
}

// WorkspaceBytes covers the float32 copies of both operands and the float32
// destination.
func (c *CPUBackend) WorkspaceBytes(op Op, n1, n2, m int) uint64 {
	return 4 * (uint64(n1)*uint64(m) + uint64(n2)*uint64(m) + uint64(n1)*uint64(n2))
}

// InnerProduct computes A·Bᵀ where A is n1×m and B is n2×m.
func (c *CPUBackend) InnerProduct(s Stream, a, b []matrix.Element, n1, n2, m int, debug bool) (int64, error) {
	return c.execute(s, InnerProduct, a, b, n1, n2, m, debug)
}

// MatMul computes A·B where A is n1×m and B is m×n2.
func (c *CPUBackend) MatMul(s Stream, a, b []matrix.Element, n1, n2, m int, debug bool) (int64, error) {
	return c.execute(s, MatMul, a, b, n1, n2, m, debug)
}

func (c *CPUBackend) execute(s Stream, op Op, a, b []matrix.Element, n1, n2, m int, debug bool) (int64, error) {
	if !c.initialized {
		return 0, fmt.Errorf("CPU backend: %w", ErrNotInitialized)
	}
	if err := checkOperands(op, a, b, n1, n2, m); err != nil {
		return 0, err
	}

	lhs, rhs, dst := c.operands(op, a, b, n1, n2, m)
	if debug {
		c.logger.Debug("cpu kernel",
			zap.Stringer("op", op),
			zap.Int("n1", n1), zap.Int("n2", n2), zap.Int("m", m),
			zap.Int("lda", lhs.Stride), zap.Int("ldb", rhs.Stride), zap.Int("ldc", dst.Stride),
			zap.Uint64("workspace_bytes", c.WorkspaceBytes(op, n1, n2, m)))
	}

	start := time.Now()
	gemm(op, lhs, rhs, dst)
	if err := s.Wait(); err != nil {
		return 0, err
	}
	elapsed := time.Since(start)

	if debug {
		c.logger.Debug("cpu kernel done", zap.Stringer("op", op), zap.Duration("elapsed", elapsed))
	}
	return elapsed.Nanoseconds(), nil
}

func (c *CPUBackend) operands(op Op, a, b []matrix.Element, n1, n2, m int) (lhs, rhs, dst blas32.General) {
	lhs = blas32.General{Rows: n1, Cols: m, Stride: m, Data: widen(a)}
	rows, cols := op.RightShape(n2, m)
	rhs = blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: widen(b)}
	dst = blas32.General{Rows: n1, Cols: n2, Stride: n2, Data: make([]float32, n1*n2)}
	return lhs, rhs, dst
}

func gemm(op Op, lhs, rhs, dst blas32.General) {
	tB := blas.NoTrans
	if op == InnerProduct {
		tB = blas.Trans
	}
	blas32.Gemm(blas.NoTrans, tB, 1, lhs, rhs, 0, dst)
}

// compute runs op untimed and returns the destination, for verification.
func (c *CPUBackend) compute(op Op, a, b []matrix.Element, n1, n2, m int) ([]float32, error) {
	if err := checkOperands(op, a, b, n1, n2, m); err != nil {
		return nil, err
	}
	lhs, rhs, dst := c.operands(op, a, b, n1, n2, m)
	gemm(op, lhs, rhs, dst)
	return dst.Data, nil
}

// hostStream is the CPU stream. Kernels run synchronously on the calling
// goroutine, so Wait only checks the stream is still open.
type hostStream struct {
	mu     sync.Mutex
	closed bool
}

func (h *hostStream) Wait() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrStreamClosed
	}
	return nil
}

func (h *hostStream) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
