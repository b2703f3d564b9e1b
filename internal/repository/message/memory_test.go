package message

import (
	"chat_relay/internal/model"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepo_Query_PreservesSendOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewMemoryRepo()

	// Given a sender appending several messages to one recipient
	for i := 0; i < 10; i++ {
		_, err := repo.Append(ctx, "A", "B", fmt.Sprintf("m%d", i))
		req.NoError(err)
	}

	// When the pair is queried
	records, err := repo.Query(ctx, "A", "B")

	// Then messages come back in send order with increasing timestamps
	req.NoError(err)
	req.Len(records, 10)
	for i, rec := range records {
		req.Equal(fmt.Sprintf("m%d", i), rec.Content)
		if i > 0 {
			req.True(rec.Timestamp.After(records[i-1].Timestamp))
		}
	}
}

func TestMemoryRepo_Query_IsDirectionSymmetric(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewMemoryRepo()

	_, _ = repo.Append(ctx, "A", "B", "hi B")
	_, _ = repo.Append(ctx, "B", "A", "hi A")
	_, _ = repo.Append(ctx, "A", "C", "hi C")
	_, _ = repo.Append(ctx, "C", "B", "not ours")

	ab, err := repo.Query(ctx, "A", "B")
	req.NoError(err)
	ba, err := repo.Query(ctx, "B", "A")
	req.NoError(err)

	req.Equal(ab, ba)
	req.Equal([]string{"hi B", "hi A"}, lo.Map(ab, func(r model.Record, _ int) string { return r.Content }))
}

func TestMemoryRepo_Query_EmptyPair(t *testing.T) {
	req := require.New(t)

	records, err := NewMemoryRepo().Query(context.Background(), "A", "B")

	req.NoError(err)
	req.NotNil(records)
	req.Empty(records)
}

func TestMemoryRepo_ConcurrentAppends(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewMemoryRepo()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Append(ctx, "A", "B", fmt.Sprintf("m%d", i))
			req.NoError(err)
		}(i)
	}
	wg.Wait()

	records, err := repo.Query(ctx, "A", "B")
	req.NoError(err)
	req.Len(records, 50)
	ids := lo.Uniq(lo.Map(records, func(r model.Record, _ int) string { return r.ID }))
	req.Len(ids, 50)
}

func TestMemoryRepo_Append_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryRepo().Append(ctx, "A", "B", "hi")

	require.True(t, errors.Is(err, model.ErrStorageUnavailable))
}
