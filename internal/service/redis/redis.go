package redis

import (
	"chat_relay/internal/service/fanout"
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

type (
	// RedisService is the fanout bus backed by Redis PUBLISH/SUBSCRIBE.
	RedisService struct {
		rdb    *redis.Client
		prefix string
	}

	subscription struct {
		pubsub *redis.PubSub
		msgs   chan []byte
		done   chan struct{}
		exited chan struct{}
		once   sync.Once
		err    error
	}
)

func NewRedis(rdb *redis.Client, prefix string) *RedisService {
	return &RedisService{
		rdb:    rdb,
		prefix: prefix,
	}
}

func (r *RedisService) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisService) Publish(ctx context.Context, user string, payload []byte) error {
	return r.rdb.Publish(ctx, fanout.ChannelName(r.prefix, user), payload).Err()
}

// Subscribe waits for the server to confirm the subscription before
// returning, so a nil error means the channel is live.
func (r *RedisService) Subscribe(ctx context.Context, user string) (fanout.Subscription, error) {
	pubsub := r.rdb.Subscribe(ctx, fanout.ChannelName(r.prefix, user))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &subscription{
		pubsub: pubsub,
		msgs:   make(chan []byte),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go sub.pump(pubsub.Channel())
	return sub, nil
}

func (s *subscription) pump(in <-chan *redis.Message) {
	defer close(s.exited)
	defer close(s.msgs)

	for {
		select {
		case <-s.done:
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.msgs <- []byte(m.Payload):
			case <-s.done:
				return
			}
		}
	}
}

func (s *subscription) Messages() <-chan []byte {
	return s.msgs
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		<-s.exited
		s.err = s.pubsub.Close()
	})
	return s.err
}
