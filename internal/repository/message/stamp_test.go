package message

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStamper_StrictlyIncreasing_WhenClockStalls(t *testing.T) {
	req := require.New(t)
	frozen := time.Unix(1700000000, 0)
	s := NewStamper(func() time.Time { return frozen })

	first := s.Next()
	second := s.Next()

	req.Equal(frozen.UnixNano(), first.UnixNano())
	req.True(second.After(first))
}

func TestStamper_StrictlyIncreasing_WhenClockStepsBack(t *testing.T) {
	req := require.New(t)
	now := time.Unix(1700000000, 0)
	s := NewStamper(func() time.Time { return now })

	first := s.Next()
	now = now.Add(-time.Hour)
	second := s.Next()

	req.True(second.After(first))
}

func TestStamper_ConcurrentCallersNeverShareATimestamp(t *testing.T) {
	req := require.New(t)
	s := NewStamper(func() time.Time { return time.Unix(1700000000, 0) })

	const n = 200
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := s.Next().UnixNano()
			mu.Lock()
			seen[ts] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	req.Len(seen, n)
}
