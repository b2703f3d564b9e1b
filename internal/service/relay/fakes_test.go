package relay

import (
	"chat_relay/internal/model"
	"chat_relay/internal/service/fanout"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipeConn is an in-memory client connection. Tests push client payloads
// with send and read what the server wrote with next.
type pipeConn struct {
	in      chan []byte
	out     chan []byte
	closed  chan struct{}
	once    sync.Once
	closes  atomic.Int32
	failing atomic.Bool
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:     make(chan []byte),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *pipeConn) ReadText() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *pipeConn) WriteText(payload []byte) error {
	if c.failing.Load() {
		return errors.New("write: broken pipe")
	}
	select {
	case <-c.closed:
		return errors.New("write: use of closed connection")
	default:
	}
	c.out <- payload
	return nil
}

func (c *pipeConn) Close() error {
	c.closes.Add(1)
	c.once.Do(func() { close(c.closed) })
	return nil
}

// hangup simulates the client going away.
func (c *pipeConn) hangup() {
	c.once.Do(func() { close(c.closed) })
}

func (c *pipeConn) send(t *testing.T, payload string) {
	t.Helper()
	select {
	case c.in <- []byte(payload):
	case <-time.After(time.Second):
		t.Fatal("session did not read client payload")
	}
}

func (c *pipeConn) next(t *testing.T) string {
	t.Helper()
	select {
	case data := <-c.out:
		return string(data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for server payload")
		return ""
	}
}

func (c *pipeConn) quiet(t *testing.T) {
	t.Helper()
	select {
	case data := <-c.out:
		t.Fatalf("unexpected server payload %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// countingBus wraps a MemoryBus and counts subscription closes.
type countingBus struct {
	*fanout.MemoryBus
	subscribeErr error
	publishErr   error
	closes       atomic.Int32
}

type countingSubscription struct {
	fanout.Subscription
	bus *countingBus
}

func (s countingSubscription) Close() error {
	s.bus.closes.Add(1)
	return s.Subscription.Close()
}

func newCountingBus() *countingBus {
	return &countingBus{MemoryBus: fanout.NewMemoryBus("relay")}
}

func (b *countingBus) Subscribe(ctx context.Context, user string) (fanout.Subscription, error) {
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	sub, err := b.MemoryBus.Subscribe(ctx, user)
	if err != nil {
		return nil, err
	}
	return countingSubscription{Subscription: sub, bus: b}, nil
}

func (b *countingBus) Publish(ctx context.Context, user string, payload []byte) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	return b.MemoryBus.Publish(ctx, user, payload)
}

type failingLog struct{}

func (failingLog) Append(context.Context, string, string, string) (model.Record, error) {
	return model.Record{}, model.ErrStorageUnavailable
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, time.Second, 5*time.Millisecond,
		"session state %s, want %s", s.State(), want)
}
