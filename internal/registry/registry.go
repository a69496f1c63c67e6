package registry

import "sync"

// Conn is the closable handle tracked for each live client session.
// *websocket.Conn satisfies it.
type Conn interface {
	Close() error
}

// Registry tracks open client connections for observability and orderly
// shutdown. All methods are safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	conns map[string]Conn
}

func New() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

func (r *Registry) Register(id string, c Conn) {
	r.mu.Lock()
	r.conns[id] = c
	r.mu.Unlock()
}

// Unregister removes a connection. Calling it for an unknown or already
// removed id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll best-effort-closes every tracked connection and clears the
// registry. Individual close errors are swallowed; used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]Conn)
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
