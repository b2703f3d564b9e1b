// Package relay runs one Session per live connection and keeps the arena of
// sessions this instance currently owns.
package relay

import (
	"chat_relay/internal/model"
	"chat_relay/internal/service/fanout"
	"chat_relay/internal/service/registry"
	"chat_relay/internal/utils/log"
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrRelayClosed = errors.New("relay is shutting down")

type (
	// Conn is the live channel to one user.
	Conn interface {
		registry.Conn
		// ReadText blocks until the next client payload or a read error.
		ReadText() ([]byte, error)
		Close() error
	}

	MessageLog interface {
		Append(ctx context.Context, from, to, content string) (model.Record, error)
	}

	Relay struct {
		registry *registry.Registry
		bus      fanout.Bus
		messages MessageLog

		mu       sync.Mutex
		sessions map[uuid.UUID]*Session
		closed   bool
		wg       sync.WaitGroup
	}
)

func NewRelay(reg *registry.Registry, bus fanout.Bus, messages MessageLog) *Relay {
	return &Relay{
		registry: reg,
		bus:      bus,
		messages: messages,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Serve runs a session for user over conn until the connection ends or the
// relay shuts down. conn is closed when Serve returns.
func (r *Relay) Serve(ctx context.Context, user string, conn Conn) error {
	s, err := r.Open(user, conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	return s.Run(ctx)
}

// Open adds a Connecting session to the arena. The caller must Run it.
func (r *Relay) Open(user string, conn Conn) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRelayClosed
	}

	s := newSession(r, user, conn)
	r.sessions[s.id] = s
	r.wg.Add(1)
	return s, nil
}

func (r *Relay) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.id]; ok {
		delete(r.sessions, s.id)
		r.wg.Done()
	}
}

// Len reports the number of sessions that have not reached Closed.
func (r *Relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown closes every session and waits for their teardown.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	log.Info("closing relay sessions", zap.Int("sessions", len(sessions)))
	for _, s := range sessions {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
