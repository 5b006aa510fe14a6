// Package state folds bus events into the application's view of the watched
// channel and persists the pieces that must survive a restart.
package state

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/onnwee/lurk-tender/backend/db"
	"github.com/onnwee/lurk-tender/backend/emotes"
	"github.com/onnwee/lurk-tender/backend/events"
	"github.com/onnwee/lurk-tender/backend/telemetry"
)

// Snapshot is a point-in-time copy of the aggregated in-memory state. It is
// safe to retain: the catalog slice is replaced wholesale on update, never
// mutated in place.
type Snapshot struct {
	CurrentUser emotes.User
	Channel     emotes.User
	IsLive      bool
	StreamID    string
	StartedAt   time.Time
	IsFollowing bool
	AdPlaying   bool
	Catalog     emotes.Catalog
}

// Aggregator consumes the event stream and owns all mutable channel state.
// Writers go through Apply; readers take a locked Snapshot copy.
type Aggregator struct {
	store    *db.Store
	rng      *rand.Rand
	delayMin time.Duration
	delayMax time.Duration
	now      func() time.Time

	mu   sync.RWMutex
	snap Snapshot
}

// NewAggregator builds an aggregator persisting through store. delayMin and
// delayMax bound the randomized schedule advance applied on MessageSent.
func NewAggregator(store *db.Store, rng *rand.Rand, delayMin, delayMax time.Duration) *Aggregator {
	return &Aggregator{
		store:    store,
		rng:      rng,
		delayMin: delayMin,
		delayMax: delayMax,
		now:      time.Now,
	}
}

// Run applies events from ch until the channel closes or ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			a.Apply(ctx, ev)
		}
	}
}

// Apply folds a single event into the aggregate. Unknown kinds are ignored.
func (a *Aggregator) Apply(ctx context.Context, ev events.Event) {
	switch p := ev.Payload.(type) {
	case events.EmotesUpdatedPayload:
		a.mu.Lock()
		a.snap.Catalog = p.Catalog
		a.mu.Unlock()
		telemetry.SetCatalogSize(p.Catalog.Size())
		slog.Debug("catalog replaced", "emotes", p.Catalog.Size())

	case events.ChannelNamePayload:
		a.mu.Lock()
		prev := a.snap.Channel.Login
		a.snap.Channel = p.User
		a.mu.Unlock()
		if prev != "" && prev != p.User.Login {
			slog.Info("channel changed", "from", prev, "to", p.User.Login)
		}

	case events.ChannelLivePayload:
		a.mu.Lock()
		prevLive, prevLogin := a.snap.IsLive, a.snap.Channel.Login
		a.snap.IsLive = p.IsLive
		a.snap.StreamID = p.StreamID
		a.snap.StartedAt = p.StartedAt
		if p.User.Login != "" {
			a.snap.Channel = p.User
		}
		a.mu.Unlock()
		telemetry.SetLive(p.IsLive)
		if p.IsLive != prevLive || p.User.Login != prevLogin {
			slog.Info("live state", "channel", p.User.Login, "live", p.IsLive, "stream_id", p.StreamID)
		}

	case events.MessageSentPayload:
		a.advanceSchedule(ctx, p.SentAt)

	case events.RaidingOutPayload:
		a.handleRaid(ctx, p)

	case events.FollowingChannelPayload:
		a.mu.Lock()
		a.snap.IsFollowing = p.IsFollowing
		a.mu.Unlock()
		slog.Debug("follow state", "channel", p.User.Login, "following", p.IsFollowing, "source", p.EventName)

	case events.AdPlayingPayload:
		a.mu.Lock()
		a.snap.AdPlaying = p.IsAdPlaying
		a.mu.Unlock()
		slog.Debug("ad state", "playing", p.IsAdPlaying, "roll", p.RollType, "event", p.EventName)

	case events.CurrentUserPayload:
		a.mu.Lock()
		a.snap.CurrentUser = p.User
		a.mu.Unlock()
		slog.Info("session user identified", "login", p.User.Login, "id", p.User.ID)
	}
}

// advanceSchedule is the canonical schedule write: it fires on every observed
// outgoing message, whether this process sent it or the user typed by hand.
func (a *Aggregator) advanceSchedule(ctx context.Context, sentAt time.Time) {
	a.mu.RLock()
	login := a.snap.Channel.Login
	a.mu.RUnlock()
	if login == "" {
		slog.Warn("message observed before channel identity, schedule not advanced")
		return
	}
	delay := db.RandomNextDelay(a.rng, a.delayMin, a.delayMax)
	if err := a.store.AdvanceSchedule(ctx, login, sentAt, delay); err != nil {
		slog.Error("advance schedule", "channel", login, "error", err)
		return
	}
	slog.Info("schedule advanced", "channel", login, "next_in", delay.Round(time.Second))
}

// handleRaid applies the auto-disable policy: when a raid departs and the user
// opted in, switch auto-emote off so the loop does not post into the raided-to
// channel's chat.
func (a *Aggregator) handleRaid(ctx context.Context, p events.RaidingOutPayload) {
	slog.Info("raiding out", "target", p.TargetLogin, "viewers", p.ViewerCount)
	if !a.store.GetBool(ctx, db.KeyRaidDisable, false) {
		return
	}
	if !a.store.GetBool(ctx, db.KeyAutoEmoteEnabled, false) {
		return
	}
	if err := a.store.PutSetting(ctx, db.KeyAutoEmoteEnabled, false); err != nil {
		slog.Error("raid auto-disable", "error", err)
		return
	}
	slog.Info("auto emote disabled for raid", "target", p.TargetLogin)
}

// Snapshot returns a copy of the current aggregate state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

// CurrentUser returns the captured session identity, if seen yet.
func (a *Aggregator) CurrentUser() emotes.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap.CurrentUser
}

// Channel returns the watched channel's identity.
func (a *Aggregator) Channel() emotes.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap.Channel
}
