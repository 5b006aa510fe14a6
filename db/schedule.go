package db

import (
	"context"
	"math/rand"
	"time"
)

// ScheduleRecord gates automated sends for one channel. NextMessage is
// LastMessage plus a duration drawn from the configured random range.
type ScheduleRecord struct {
	LastMessage time.Time `json:"lastMessage"`
	NextMessage time.Time `json:"nextMessage"`
}

// Schedule reads the record for a channel login; nil when absent.
func (s *Store) Schedule(ctx context.Context, login string) *ScheduleRecord {
	var rec ScheduleRecord
	if !s.GetJSON(ctx, NamespaceLastMessage, login, &rec) {
		return nil
	}
	return &rec
}

// PutSchedule persists the record for a channel login.
func (s *Store) PutSchedule(ctx context.Context, login string, rec ScheduleRecord) error {
	return s.PutJSON(ctx, NamespaceLastMessage, login, rec)
}

// AdvanceSchedule writes {lastMessage: sentAt, nextMessage: sentAt+delay}.
func (s *Store) AdvanceSchedule(ctx context.Context, login string, sentAt time.Time, delay time.Duration) error {
	return s.PutSchedule(ctx, login, ScheduleRecord{
		LastMessage: sentAt,
		NextMessage: sentAt.Add(delay),
	})
}

// RandomNextDelay draws a uniform duration in [min, max] for the next send.
func RandomNextDelay(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Float64()*float64(max-min))
}
