//go:build !amx || !linux || !cgo

package accel

// tryCreateAMXBackend attempts to create an AMX backend when the amx build tag is NOT present
func (m *Manager) tryCreateAMXBackend() Backend {
	return nil
}
