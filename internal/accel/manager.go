package accel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fxnlabs/perf-amx/internal/matrix"
)

// Manager is the execution context of a benchmark run: one initialized
// device and one stream on it, shared by every kernel call.
type Manager struct {
	backend Backend
	stream  Stream
	debug   bool
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewManager selects the best available backend, initializes it and opens a
// stream. debug is forwarded to every kernel call.
func NewManager(logger *zap.Logger, debug bool) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		logger: logger,
		debug:  debug,
	}

	if err := m.detectAndInitialize(); err != nil {
		return nil, err
	}

	return m, nil
}

// NewManagerWithBackend initializes the given backend instead of detecting one.
func NewManagerWithBackend(logger *zap.Logger, backend Backend, debug bool) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{logger: logger, debug: debug}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.use(backend); err != nil {
		return nil, err
	}
	return m, nil
}

// detectAndInitialize detects available backends and initializes the best one
func (m *Manager) detectAndInitialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amxBackend := m.tryCreateAMXBackend(); amxBackend != nil && amxBackend.IsAvailable() {
		err := m.use(amxBackend)
		if err == nil {
			return nil
		}
		m.logger.Warn("AMX backend unusable, falling back to CPU", zap.Error(err))
	}

	// Fall back to CPU
	if err := m.use(NewCPUBackend(m.logger)); err != nil {
		return fmt.Errorf("failed to initialize CPU backend: %w", err)
	}
	return nil
}

// use initializes backend and opens its stream. Caller holds mu.
func (m *Manager) use(backend Backend) error {
	if err := backend.Initialize(); err != nil {
		_ = backend.Cleanup()
		return err
	}
	stream, err := backend.NewStream()
	if err != nil {
		_ = backend.Cleanup()
		return fmt.Errorf("failed to create stream: %w", err)
	}
	m.backend = backend
	m.stream = stream

	info := backend.GetDeviceInfo()
	m.logger.Info("Execution context ready",
		zap.String("backend", backend.Name()),
		zap.String("device", info.Name),
		zap.String("features", info.Features),
		zap.Int64("total_memory_mb", info.TotalMemory/(1024*1024)))
	return nil
}

// GetBackend returns the current backend
func (m *Manager) GetBackend() Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend
}

// Execute runs op on the shared stream and returns the kernel duration in
// nanoseconds. a is n1×m; b is n2×m for InnerProduct and m×n2 for MatMul.
func (m *Manager) Execute(ctx context.Context, op Op, a, b *matrix.Matrix, n1, n2, m2 int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	backend, stream := m.backend, m.stream
	m.mu.RUnlock()
	if backend == nil {
		return 0, errors.New("no backend available")
	}

	switch op {
	case InnerProduct:
		return backend.InnerProduct(stream, a.Data, b.Data, n1, n2, m2, m.debug)
	case MatMul:
		return backend.MatMul(stream, a.Data, b.Data, n1, n2, m2, m.debug)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupported, op)
	}
}

// WorkspaceBytes forwards to the current backend.
func (m *Manager) WorkspaceBytes(op Op, n1, n2, m2 int) uint64 {
	backend := m.GetBackend()
	if backend == nil {
		return 0
	}
	return backend.WorkspaceBytes(op, n1, n2, m2)
}

// GetDeviceInfo returns device information from the current backend
func (m *Manager) GetDeviceInfo() DeviceInfo {
	backend := m.GetBackend()
	if backend == nil {
		return DeviceInfo{Name: "No backend available"}
	}
	return backend.GetDeviceInfo()
}

// Label returns the upper-case backend name used in mode labels.
func (m *Manager) Label() string {
	backend := m.GetBackend()
	if backend == nil {
		return "NONE"
	}
	return strings.ToUpper(backend.Name())
}

// Cleanup closes the stream and releases the device.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.stream != nil {
		errs = append(errs, m.stream.Close())
		m.stream = nil
	}
	if m.backend != nil {
		errs = append(errs, m.backend.Cleanup())
		m.backend = nil
	}
	return errors.Join(errs...)
}
