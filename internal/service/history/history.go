// Package history serves the read model of a conversation between two users.
package history

import (
	"chat_relay/internal/model"
	"context"
	"fmt"

	"github.com/samber/lo"
)

type (
	MessageLog interface {
		Query(ctx context.Context, a, b string) ([]model.Record, error)
	}

	Service struct {
		messages MessageLog
	}
)

func NewService(messages MessageLog) *Service {
	return &Service{messages: messages}
}

// Between returns every message exchanged by a and b, oldest first. A pair
// that never talked yields an empty, non-nil slice.
func (s *Service) Between(ctx context.Context, a, b string) ([]model.Envelope, error) {
	records, err := s.messages.Query(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrHistoryUnavailable, err)
	}

	return lo.Map(records, func(r model.Record, _ int) model.Envelope {
		return r.Envelope()
	}), nil
}
