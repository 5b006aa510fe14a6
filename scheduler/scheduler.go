// Package scheduler runs the crash-tolerant loop that decides when an emote
// batch is due and drives the send pipeline. The loop re-enters on a flat
// tick; anything that goes wrong inside one tick is logged and absorbed, and
// a single-flight guard keeps two pipelines from ever overlapping.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/onnwee/lurk-tender/backend/db"
	"github.com/onnwee/lurk-tender/backend/state"
	"github.com/onnwee/lurk-tender/backend/telemetry"
)

// Pipeline sends one emote batch for the channel in snap.
type Pipeline interface {
	Send(ctx context.Context, snap state.Snapshot, count int) error
}

// Scheduler owns the tick loop and its gating decisions.
type Scheduler struct {
	store    *db.Store
	agg      *state.Aggregator
	pipeline Pipeline
	rng      *rand.Rand

	tick     time.Duration
	delayMin time.Duration
	delayMax time.Duration
	now      func() time.Time

	inFlight atomic.Bool
}

// New builds a scheduler ticking every tick, with delayMin/delayMax bounding
// the provisional schedule advance.
func New(store *db.Store, agg *state.Aggregator, pipeline Pipeline, rng *rand.Rand, tick, delayMin, delayMax time.Duration) *Scheduler {
	return &Scheduler{
		store:    store,
		agg:      agg,
		pipeline: pipeline,
		rng:      rng,
		tick:     tick,
		delayMin: delayMin,
		delayMax: delayMax,
		now:      time.Now,
	}
}

// Run ticks until ctx is cancelled. Each tick runs on its own goroutine so a
// slow send pipeline never stalls the ticker; overlapping ticks are skipped
// by the in-flight guard.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	slog.Info("scheduler started", "tick", s.tick)
	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			go s.TickOnce(ctx)
		}
	}
}

// TickOnce performs one scheduling decision. It never panics outward and
// always releases the in-flight guard.
func (s *Scheduler) TickOnce(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer s.inFlight.Store(false)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler tick panic", "panic", r)
		}
	}()
	telemetry.Inc(telemetry.SchedulerTicks)

	login, count, ok := s.eligible(ctx)
	if !ok {
		telemetry.Inc(telemetry.SchedulerSkips)
		return
	}

	// Optimistic advance: claim this window before sending so a tick racing
	// in right behind us sees the schedule already moved.
	delay := db.RandomNextDelay(s.rng, s.delayMin, s.delayMax)
	if err := s.store.AdvanceSchedule(ctx, login, s.now(), delay); err != nil {
		slog.Error("provisional schedule advance", "channel", login, "error", err)
		return
	}

	snap := s.agg.Snapshot()
	if err := s.pipeline.Send(ctx, snap, count); err != nil {
		slog.Error("send pipeline", "channel", login, "error", err)
	}
}

// eligible evaluates every gating condition and, when all pass, returns the
// channel login and the batch size for this send.
func (s *Scheduler) eligible(ctx context.Context) (string, int, bool) {
	if !s.store.GetBool(ctx, db.KeyAutoEmoteEnabled, false) {
		return "", 0, false
	}
	snap := s.agg.Snapshot()
	if snap.Channel.Login == "" || !snap.IsLive || snap.Catalog.Size() == 0 {
		return "", 0, false
	}
	if s.store.GetBool(ctx, db.KeyFollowedOnly, false) && !snap.IsFollowing {
		return "", 0, false
	}

	rec := s.store.Schedule(ctx, snap.Channel.Login)
	if rec != nil && s.now().Before(rec.NextMessage) {
		return "", 0, false
	}
	return snap.Channel.Login, s.batchSize(ctx), true
}

// batchSize resolves the configured emote count, either fixed or drawn from
// the user's min..max range.
func (s *Scheduler) batchSize(ctx context.Context) int {
	if s.store.GetBool(ctx, db.KeyUseRange, false) {
		lo := s.store.GetInt(ctx, db.KeyEmoteMin, 1)
		hi := s.store.GetInt(ctx, db.KeyEmoteMax, 3)
		if lo < 1 {
			lo = 1
		}
		if hi < lo {
			hi = lo
		}
		return lo + s.rng.Intn(hi-lo+1)
	}
	n := s.store.GetInt(ctx, db.KeyEmoteCount, 1)
	if n < 1 {
		n = 1
	}
	return n
}
