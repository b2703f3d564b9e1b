// Package registry maps users to the live connection this instance holds
// for them.
package registry

import (
	"chat_relay/internal/utils/log"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Conn is a writable connection handle. Implementations serialize their
// own writes.
type Conn interface {
	WriteText(payload []byte) error
}

type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func New() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register stores conn for user, superseding any previous handle. The
// previous handle is not closed here; its owner does that.
func (r *Registry) Register(user string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[user] = conn
}

// Unregister removes whatever handle is registered for user. Absent users are
// a no-op.
func (r *Registry) Unregister(user string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, user)
}

// Release removes user only while conn is still the registered handle.
func (r *Registry) Release(user string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.conns[user]; !ok || cur != conn {
		return false
	}
	delete(r.conns, user)
	return true
}

// Send writes payload to the local connection of user. A false result means
// the user is not deliverable from this instance.
func (r *Registry) Send(user string, payload []byte) bool {
	r.mu.RLock()
	conn, ok := r.conns[user]
	r.mu.RUnlock()

	if !ok {
		return false
	}

	if err := conn.WriteText(payload); err != nil {
		log.Debug("registry send failed", zap.String("user", user), zap.Error(err))
		return false
	}
	return true
}

// Lookup returns the handle registered for user without writing to it.
func (r *Registry) Lookup(user string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[user]
	return conn, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.conns)
}
