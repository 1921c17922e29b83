//go:build amx && linux && cgo

package accel

// tryCreateAMXBackend attempts to create an AMX backend when the amx build tag is present
func (m *Manager) tryCreateAMXBackend() Backend {
	return NewAMXBackend(m.logger)
}
