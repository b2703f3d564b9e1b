package relay

import (
	"chat_relay/internal/model"
	"chat_relay/internal/service/fanout"
	"chat_relay/internal/utils/log"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State int

const (
	Connecting State = iota
	Active
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session owns one user's registry entry and fanout subscription for the
// lifetime of one connection.
type Session struct {
	id    uuid.UUID
	user  string
	conn  Conn
	relay *Relay
	log   *zap.Logger

	mu    sync.Mutex
	state State
	sub   fanout.Subscription

	stop      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
}

func newSession(r *Relay, user string, conn Conn) *Session {
	id := uuid.New()
	return &Session{
		id:    id,
		user:  user,
		conn:  conn,
		relay: r,
		log:   log.With(zap.String("user", user), zap.String("session", id.String())),
		state: Connecting,
		stop:  make(chan struct{}),
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) User() string {
	return s.user
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run activates the session and services it until it closes. The returned
// error says why the session ended; nil means an explicit shutdown.
func (s *Session) Run(ctx context.Context) error {
	defer s.teardown()

	if err := s.activate(ctx); err != nil {
		s.log.Warn("session could not become active", zap.Error(err))
		return err
	}
	s.log.Info("session active")

	if err := s.loop(ctx); err != nil && !s.stopped() {
		return err
	}
	return nil
}

// loop services client payloads and fanout payloads one at a time.
func (s *Session) loop(ctx context.Context) error {
	inbound := make(chan []byte)
	readErr := make(chan error, 1)
	go s.readPump(inbound, readErr)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		case err := <-readErr:
			s.log.Debug("client connection ended", zap.Error(err))
			return fmt.Errorf("%w: %v", model.ErrConnectionLost, err)
		case data := <-inbound:
			if err := s.handleInbound(ctx, data); err != nil {
				return err
			}
		case payload, ok := <-s.sub.Messages():
			if !ok {
				return fmt.Errorf("fanout subscription for %s ended", s.user)
			}
			if err := s.conn.WriteText(payload); err != nil {
				return fmt.Errorf("%w: deliver: %v", model.ErrConnectionLost, err)
			}
		}
	}
}

// Close requests an explicit shutdown. It is safe to call from any
// goroutine, any number of times.
func (s *Session) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.teardown()
}

func (s *Session) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// activate subscribes first and registers last, so a registered user always
// has a live subscription.
func (s *Session) activate(ctx context.Context) error {
	if s.State() != Connecting {
		return ErrRelayClosed
	}

	sub, err := s.relay.bus.Subscribe(ctx, s.user)
	if err != nil {
		return fmt.Errorf("subscribe fanout channel: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Connecting {
		_ = sub.Close()
		return ErrRelayClosed
	}
	s.relay.registry.Register(s.user, s.conn)
	s.sub = sub
	s.state = Active
	return nil
}

func (s *Session) readPump(inbound chan<- []byte, readErr chan<- error) {
	for {
		data, err := s.conn.ReadText()
		if err != nil {
			readErr <- err
			return
		}

		select {
		case inbound <- data:
		case <-s.stop:
			return
		}
	}
}

func (s *Session) handleInbound(ctx context.Context, data []byte) error {
	in, err := model.ParseInbound(data)
	if err != nil {
		s.log.Warn("ignoring client payload", zap.Error(err))
		return nil
	}

	if _, err := s.relay.messages.Append(ctx, s.user, in.To, in.Msg); err != nil {
		s.log.Error("append message failed", zap.String("to", in.To), zap.Error(err))
		return s.write(model.Notice{Error: model.ErrStorageUnavailable.Error(), Content: in.Msg})
	}

	envelope, err := json.Marshal(model.Envelope{From: s.user, Content: in.Msg})
	if err != nil {
		return err
	}

	if err := s.relay.bus.Publish(ctx, in.To, envelope); err != nil {
		s.log.Warn("publish failed, trying local delivery", zap.String("to", in.To), zap.Error(err))
		if !s.relay.registry.Send(in.To, envelope) {
			s.log.Info("recipient not connected to this instance", zap.String("to", in.To))
		}
	}

	return s.write(model.Envelope{From: model.EchoSender, Content: in.Msg})
}

func (s *Session) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	if err := s.conn.WriteText(data); err != nil {
		return fmt.Errorf("%w: %v", model.ErrConnectionLost, err)
	}
	return nil
}

// teardown takes the session from Closing to Closed exactly once.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.stopOnce.Do(func() { close(s.stop) })

		s.mu.Lock()
		s.state = Closing
		sub := s.sub
		s.mu.Unlock()

		s.relay.registry.Release(s.user, s.conn)
		if sub != nil {
			if err := sub.Close(); err != nil {
				s.log.Error("unsubscribe failed", zap.Error(err))
			}
		}
		if err := s.conn.Close(); err != nil {
			s.log.Debug("close connection", zap.Error(err))
		}
		s.relay.remove(s)

		s.mu.Lock()
		s.state = Closed
		s.mu.Unlock()
		s.log.Info("session closed")
	})
}
