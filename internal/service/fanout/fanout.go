// Package fanout defines the cross-instance publish/subscribe contract the
// relay delivers through, keyed one channel per recipient.
package fanout

import (
	"context"
	"time"
)

// SendTimeout bounds how long a publish waits on a full subscriber buffer
// before the payload is dropped.
const SendTimeout = time.Second

type (
	Bus interface {
		// Publish is fire-and-forget: a nil error says nothing about
		// whether anyone received the payload.
		Publish(ctx context.Context, user string, payload []byte) error
		// Subscribe returns once the subscription is established. Payloads
		// published before that point are not replayed.
		Subscribe(ctx context.Context, user string) (Subscription, error)
	}

	Subscription interface {
		Messages() <-chan []byte
		// Close unsubscribes. Once it returns no further payloads are
		// delivered. Safe to call more than once.
		Close() error
	}
)

// ChannelName namespaces the per-user channel on a shared broker.
func ChannelName(prefix, user string) string {
	return prefix + ":user:" + user
}
