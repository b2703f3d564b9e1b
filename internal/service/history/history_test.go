package history

import (
	"chat_relay/internal/model"
	"chat_relay/internal/repository/message"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type brokenLog struct{}

func (brokenLog) Query(context.Context, string, string) ([]model.Record, error) {
	return nil, model.ErrStorageUnavailable
}

func TestService_Between_BothDirectionsInOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := message.NewMemoryRepo()
	_, _ = repo.Append(ctx, "A", "B", "hello")
	_, _ = repo.Append(ctx, "B", "A", "hi")
	_, _ = repo.Append(ctx, "A", "C", "elsewhere")
	_, _ = repo.Append(ctx, "A", "B", "how are you")

	got, err := NewService(repo).Between(ctx, "B", "A")

	req.NoError(err)
	req.Equal([]model.Envelope{
		{From: "A", Content: "hello"},
		{From: "B", Content: "hi"},
		{From: "A", Content: "how are you"},
	}, got)
}

func TestService_Between_EmptyPair(t *testing.T) {
	req := require.New(t)

	got, err := NewService(message.NewMemoryRepo()).Between(context.Background(), "A", "B")

	req.NoError(err)
	req.NotNil(got)
	req.Empty(got)
}

func TestService_Between_StorageFailure(t *testing.T) {
	_, err := NewService(brokenLog{}).Between(context.Background(), "A", "B")

	require.True(t, errors.Is(err, model.ErrHistoryUnavailable), "got %v", err)
}
