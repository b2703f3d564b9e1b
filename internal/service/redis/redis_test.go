package redis

import (
	"chat_relay/internal/service/fanout"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, "relay"), mr
}

func TestRedisService_PublishReachesSubscriber(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _ := newService(t)

	sub, err := svc.Subscribe(ctx, "B")
	req.NoError(err)
	defer sub.Close()

	req.NoError(svc.Publish(ctx, "B", []byte(`{"from":"A","content":"hello"}`)))

	select {
	case msg := <-sub.Messages():
		req.Equal(`{"from":"A","content":"hello"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
	}
}

func TestRedisService_UsesNamespacedChannel(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, mr := newService(t)

	sub, err := svc.Subscribe(ctx, "B")
	req.NoError(err)
	defer sub.Close()

	req.Eventually(func() bool {
		return len(mr.PubSubChannels("")) == 1
	}, time.Second, 10*time.Millisecond)
	req.Equal([]string{fanout.ChannelName("relay", "B")}, mr.PubSubChannels(""))
}

func TestRedisService_CloseUnsubscribes(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, mr := newService(t)

	sub, err := svc.Subscribe(ctx, "A")
	req.NoError(err)

	req.NoError(sub.Close())
	req.NoError(sub.Close())

	_, ok := <-sub.Messages()
	req.False(ok)
	req.Eventually(func() bool {
		return len(mr.PubSubChannels("")) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRedisService_SubscribeFailsWhenBrokerIsDown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	svc, mr := newService(t)
	mr.Close()

	_, err := svc.Subscribe(ctx, "A")

	require.Error(t, err)
}
