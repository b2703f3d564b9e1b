package message

import (
	"chat_relay/internal/model"
	"context"
	"fmt"
	"strconv"
	"sync"
)

// MemoryRepo keeps the log in process memory. Records are kept in append
// order, which is also timestamp order since the stamper is shared.
type MemoryRepo struct {
	mu      sync.RWMutex
	records []model.Record
	stamper *Stamper
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{stamper: NewStamper(nil)}
}

func (r *MemoryRepo) Append(ctx context.Context, from, to, content string) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := model.Record{
		ID:        strconv.Itoa(len(r.records) + 1),
		From:      from,
		To:        to,
		Content:   content,
		Timestamp: r.stamper.Next(),
	}
	r.records = append(r.records, rec)
	return rec, nil
}

func (r *MemoryRepo) Query(ctx context.Context, a, b string) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]model.Record, 0)
	for _, rec := range r.records {
		if (rec.From == a && rec.To == b) || (rec.From == b && rec.To == a) {
			res = append(res, rec)
		}
	}
	return res, nil
}
