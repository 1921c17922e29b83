//go:build amx && linux && cgo

package accel

/*
#cgo CFLAGS: -I../../amx
#cgo LDFLAGS: -L../../amx -lperfamx -ldnnl -lstdc++
#include "amx_kernel.h"
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"runtime"
	"unsafe"

	"go.uber.org/zap"

	"github.com/fxnlabs/perf-amx/internal/matrix"
)

// AMXBackend implements Backend with the oneDNN bf16 primitives, which
// dispatch to AMX tiles on supporting CPUs.
type AMXBackend struct {
	logger      *zap.Logger
	engine      *C.amx_engine
	initialized bool
	available   bool
}

// NewAMXBackend creates a new AMX backend instance
func NewAMXBackend(logger *zap.Logger) *AMXBackend {
	backend := &AMXBackend{
		logger: logger,
	}

	if !DetectFeatures().SupportsAMX() {
		logger.Warn("CPU does not report AMX-BF16")
		return backend
	}
	if rc := C.amx_check_device(); rc != 0 {
		logger.Warn("AMX device not available", zap.String("error", lastError()))
		return backend
	}
	backend.available = true
	return backend
}

func (a *AMXBackend) Name() string { return "amx" }

// Initialize creates the engine
func (a *AMXBackend) Initialize() error {
	if !a.available {
		return fmt.Errorf("AMX device not available")
	}
	if a.initialized {
		return nil
	}

	a.logger.Debug("Initializing AMX backend")
	if rc := C.amx_engine_create(&a.engine); rc != 0 {
		return fmt.Errorf("failed to create AMX engine: %s", lastError())
	}

	a.initialized = true
	a.logger.Info("AMX backend initialized", zap.String("features", DetectFeatures().String()))
	return nil
}

// Cleanup destroys the engine
func (a *AMXBackend) Cleanup() error {
	if !a.initialized {
		return nil
	}
	a.logger.Debug("Cleaning up AMX backend")
	C.amx_engine_destroy(a.engine)
	a.engine = nil
	a.initialized = false
	return nil
}

func (a *AMXBackend) IsAvailable() bool {
	return a.available
}

func (a *AMXBackend) GetDeviceInfo() DeviceInfo {
	total, available := SystemMemory()
	return DeviceInfo{
		Name:            fmt.Sprintf("CPU %s (%s)", cpuModel(), runtime.GOARCH),
		Backend:         a.Name(),
		TotalMemory:     int64(total),
		AvailableMemory: int64(available),
		Threads:         runtime.NumCPU(),
		Features:        DetectFeatures().String(),
	}
}

func (a *AMXBackend) NewStream() (Stream, error) {
	if !a.initialized {
		return nil, fmt.Errorf("AMX backend: %w", ErrNotInitialized)
	}
	s := &amxStream{}
	if rc := C.amx_stream_create(a.engine, &s.stream); rc != 0 {
		return nil, fmt.Errorf("failed to create AMX stream: %s", lastError())
	}
	return s, nil
}

// WorkspaceBytes covers the f32 destination and, for inner product, the
// reordered copy of the bf16 weights.
func (a *AMXBackend) WorkspaceBytes(op Op, n1, n2, m int) uint64 {
	return amxWorkspaceBytes(op, n1, n2, m)
}

func (a *AMXBackend) InnerProduct(s Stream, lhs, rhs []matrix.Element, n1, n2, m int, debug bool) (int64, error) {
	return a.execute(s, InnerProduct, lhs, rhs, n1, n2, m, debug)
}

func (a *AMXBackend) MatMul(s Stream, lhs, rhs []matrix.Element, n1, n2, m int, debug bool) (int64, error) {
	return a.execute(s, MatMul, lhs, rhs, n1, n2, m, debug)
}

func (a *AMXBackend) execute(s Stream, op Op, lhs, rhs []matrix.Element, n1, n2, m int, debug bool) (int64, error) {
	if !a.initialized {
		return 0, fmt.Errorf("AMX backend: %w", ErrNotInitialized)
	}
	if err := checkOperands(op, lhs, rhs, n1, n2, m); err != nil {
		return 0, err
	}
	stream, ok := s.(*amxStream)
	if !ok || stream.stream == nil {
		return 0, fmt.Errorf("AMX backend: %w", ErrStreamClosed)
	}

	// amx_last_error is per thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	aPtr := (*C.uint16_t)(unsafe.Pointer(&lhs[0]))
	bPtr := (*C.uint16_t)(unsafe.Pointer(&rhs[0]))
	var cDebug C.int
	if debug {
		cDebug = 1
	}

	var dur C.int64_t
	var rc C.int
	switch op {
	case InnerProduct:
		rc = C.amx_inner_product(C.uint64_t(n1), C.uint64_t(n2), C.uint64_t(m), aPtr, bPtr, a.engine, stream.stream, cDebug, &dur)
	case MatMul:
		rc = C.amx_matmul(C.uint64_t(n1), C.uint64_t(n2), C.uint64_t(m), aPtr, bPtr, a.engine, stream.stream, cDebug, &dur)
	default:
		return 0, fmt.Errorf("AMX backend: %w: %s", ErrUnsupported, op)
	}
	runtime.KeepAlive(lhs)
	runtime.KeepAlive(rhs)
	if rc != 0 {
		return 0, fmt.Errorf("AMX %s failed: %s", op, lastError())
	}
	return int64(dur), nil
}

type amxStream struct {
	stream *C.amx_stream
}

func (s *amxStream) Wait() error {
	if s.stream == nil {
		return ErrStreamClosed
	}
	if rc := C.amx_stream_wait(s.stream); rc != 0 {
		return fmt.Errorf("AMX stream wait failed: %s", lastError())
	}
	return nil
}

func (s *amxStream) Close() error {
	if s.stream != nil {
		C.amx_stream_destroy(s.stream)
		s.stream = nil
	}
	return nil
}

func lastError() string {
	msg := C.amx_last_error()
	if msg == nil {
		return "unknown error"
	}
	return C.GoString(msg)
}
