package transport

import (
	"sync"
)

// registry maps session ids to live sessions. It is the single source of
// truth for whether a session is reachable. The lock only ever guards map
// operations; callers enqueue after it is released.
type registry struct {
	mu       sync.Mutex
	sessions map[SessionID]*conn
}

func newRegistry() *registry {
	return &registry{
		sessions: make(map[SessionID]*conn),
	}
}

func (r *registry) insert(c *conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[c.id] = c
}

func (r *registry) remove(id SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *registry) lookup(id SessionID) (*conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[id]
	return c, ok
}

// snapshot returns the live sessions at this instant.
func (r *registry) snapshot() []*conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*conn, 0, len(r.sessions))
	for _, c := range r.sessions {
		out = append(out, c)
	}
	return out
}
