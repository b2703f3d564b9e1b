package message

import (
	"sync"
	"time"
)

// Stamper hands out strictly increasing timestamps, even when the wall
// clock stalls or steps backwards.
type Stamper struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func NewStamper(now func() time.Time) *Stamper {
	if now == nil {
		now = time.Now
	}
	return &Stamper{now: now}
}

func (s *Stamper) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UnixNano()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return time.Unix(0, ts).UTC()
}
