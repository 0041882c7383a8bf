package lifecycle

import "sync"

// Manager collects cleanup callbacks during startup and runs them once, in
// reverse registration order, during orderly shutdown. Dependents therefore
// close before the resources they depend on.
type Manager struct {
	mu        sync.Mutex
	callbacks []func()
	once      sync.Once
}

func New() *Manager {
	return &Manager{}
}

func (m *Manager) OnShutdown(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Shutdown is idempotent; only the first call runs the callbacks.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		callbacks := make([]func(), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.Unlock()

		for i := len(callbacks) - 1; i >= 0; i-- {
			callbacks[i]()
		}
	})
}
