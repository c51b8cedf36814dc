package websocket

import (
	"sync"

	"liveclass/internal/auth"
	"liveclass/pkg/types"
)

// Registry maps live, authenticated connections to participant identities.
// It owns no business state: rooms learn about disconnects through the
// handler, not by reaching into the registry.
type Registry struct {
	auth *auth.Service

	mu    sync.RWMutex
	conns map[string]*Connection // connection id -> connection
}

func NewRegistry(authService *auth.Service) *Registry {
	return &Registry{
		auth:  authService,
		conns: make(map[string]*Connection),
	}
}

// Authenticate verifies a token into an identity. Failure is terminal for
// that connection attempt; the caller must reconnect with a fresh token.
// The handler binds the identity to the connection it upgraded.
func (r *Registry) Authenticate(token string) (types.Identity, error) {
	return r.auth.Verify(token)
}

// Register tracks an authenticated connection.
func (r *Registry) Register(c *Connection) error {
	if c == nil {
		return ErrNilConnection
	}
	if _, bound := c.Identity(); !bound {
		return ErrNotAuthenticated
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ConnID()] = c
	return nil
}

// Unregister drops a connection from tracking.
func (r *Registry) Unregister(c *Connection) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c.ConnID())
}

// Count returns the number of live connections, for the ops API.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
