package fanout

import (
	"chat_relay/internal/utils/log"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrBusClosed = errors.New("fanout bus closed")

// MemoryBus is an in-process Bus for single-instance deployments and tests.
type MemoryBus struct {
	mu          sync.RWMutex
	prefix      string
	subs        map[string]map[*memorySubscription]struct{}
	closed      bool
	sendTimeout time.Duration
}

type memorySubscription struct {
	bus     *MemoryBus
	channel string
	msgs    chan []byte
	done    chan struct{}
	once    sync.Once

	// mu guards msgs against being closed while a publisher sends on it.
	mu       sync.RWMutex
	finished bool
}

func NewMemoryBus(prefix string) *MemoryBus {
	return &MemoryBus{
		prefix:      prefix,
		subs:        make(map[string]map[*memorySubscription]struct{}),
		sendTimeout: SendTimeout,
	}
}

// Publish delivers outside the bus lock, so a subscriber that stopped
// draining only delays this call.
func (b *MemoryBus) Publish(ctx context.Context, user string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	set := b.subs[ChannelName(b.prefix, user)]
	targets := make([]*memorySubscription, 0, len(set))
	for sub := range set {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(ctx, payload, b.sendTimeout)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, user string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	channel := ChannelName(b.prefix, user)
	sub := &memorySubscription{
		bus:     b,
		channel: channel,
		msgs:    make(chan []byte, 256),
		done:    make(chan struct{}),
	}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*memorySubscription]struct{})
	}
	b.subs[channel][sub] = struct{}{}
	return sub, nil
}

// Subscribers reports how many live subscriptions a user's channel has.
func (b *MemoryBus) Subscribers(user string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[ChannelName(b.prefix, user)])
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	var subs []*memorySubscription
	for _, set := range b.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	return nil
}

func (s *memorySubscription) Messages() <-chan []byte {
	return s.msgs
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		close(s.done)

		s.bus.mu.Lock()
		if set, ok := s.bus.subs[s.channel]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.bus.subs, s.channel)
			}
		}
		s.bus.mu.Unlock()

		s.mu.Lock()
		s.finished = true
		close(s.msgs)
		s.mu.Unlock()
	})
	return nil
}

func (s *memorySubscription) deliver(ctx context.Context, payload []byte, timeout time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.finished {
		return
	}

	select {
	case s.msgs <- payload:
		return
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.msgs <- payload:
	case <-s.done:
	case <-ctx.Done():
		log.Warn("fanout payload dropped", zap.String("channel", s.channel), zap.Error(ctx.Err()))
	case <-timer.C:
		log.Warn("fanout payload dropped, subscriber is not draining", zap.String("channel", s.channel))
	}
}
