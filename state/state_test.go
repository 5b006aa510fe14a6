package state

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/onnwee/lurk-tender/backend/db"
	"github.com/onnwee/lurk-tender/backend/emotes"
	"github.com/onnwee/lurk-tender/backend/events"
)

func newTestAggregator(t *testing.T, seed int64) (*Aggregator, *db.Store) {
	t.Helper()
	database, err := db.Connect(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := db.NewStore(database)
	agg := NewAggregator(store, rand.New(rand.NewSource(seed)), 13*time.Minute, 15*time.Minute)
	return agg, store
}

func channelEvent(login, id string) events.Event {
	return events.Event{Kind: events.KindChannelName, At: time.Now(), Payload: events.ChannelNamePayload{
		User: emotes.User{ID: id, Login: login, DisplayName: login},
	}}
}

func TestApplyChannelAndLive(t *testing.T) {
	agg, _ := newTestAggregator(t, 1)
	ctx := context.Background()

	agg.Apply(ctx, channelEvent("streamer", "42"))
	if got := agg.Channel().Login; got != "streamer" {
		t.Fatalf("Channel = %q", got)
	}

	started := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	agg.Apply(ctx, events.Event{Kind: events.KindChannelLive, Payload: events.ChannelLivePayload{
		User: emotes.User{ID: "42", Login: "streamer"}, IsLive: true, StreamID: "s1", StartedAt: started,
	}})
	snap := agg.Snapshot()
	if !snap.IsLive || snap.StreamID != "s1" || !snap.StartedAt.Equal(started) {
		t.Errorf("live snapshot = %+v", snap)
	}

	agg.Apply(ctx, events.Event{Kind: events.KindChannelLive, Payload: events.ChannelLivePayload{
		User: emotes.User{ID: "42", Login: "streamer"}, IsLive: false,
	}})
	if agg.Snapshot().IsLive {
		t.Error("still live after offline snapshot")
	}
}

func TestMessageSentAdvancesScheduleForCurrentChannel(t *testing.T) {
	agg, store := newTestAggregator(t, 7)
	ctx := context.Background()

	sentAt := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	// No channel identity yet: nothing to key the record by.
	agg.Apply(ctx, events.Event{Kind: events.KindMessageSent, Payload: events.MessageSentPayload{SentAt: sentAt}})
	if rec := store.Schedule(ctx, "streamer"); rec != nil {
		t.Fatalf("schedule written without channel identity: %+v", rec)
	}

	agg.Apply(ctx, channelEvent("streamer", "42"))
	agg.Apply(ctx, events.Event{Kind: events.KindMessageSent, Payload: events.MessageSentPayload{SentAt: sentAt}})

	rec := store.Schedule(ctx, "streamer")
	if rec == nil {
		t.Fatal("no schedule record after MessageSent")
	}
	if !rec.LastMessage.Equal(sentAt) {
		t.Errorf("LastMessage = %s, want %s", rec.LastMessage, sentAt)
	}
	gap := rec.NextMessage.Sub(rec.LastMessage)
	if gap < 13*time.Minute || gap > 15*time.Minute {
		t.Errorf("next delay %s outside [13m,15m]", gap)
	}
}

// Two aggregators with the same seed must compute the same next delay: the
// schedule advance is a pure function of the rng stream and sentAt.
func TestMessageSentDeterministicBySeed(t *testing.T) {
	sentAt := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	var gaps []time.Duration
	for i := 0; i < 2; i++ {
		agg, store := newTestAggregator(t, 99)
		ctx := context.Background()
		agg.Apply(ctx, channelEvent("streamer", "42"))
		agg.Apply(ctx, events.Event{Kind: events.KindMessageSent, Payload: events.MessageSentPayload{SentAt: sentAt}})
		rec := store.Schedule(ctx, "streamer")
		if rec == nil {
			t.Fatal("no schedule record")
		}
		gaps = append(gaps, rec.NextMessage.Sub(rec.LastMessage))
	}
	if gaps[0] != gaps[1] {
		t.Errorf("same seed, different delays: %s vs %s", gaps[0], gaps[1])
	}
}

func TestRaidAutoDisable(t *testing.T) {
	raid := events.Event{Kind: events.KindRaidingOut, Payload: events.RaidingOutPayload{
		RaidID: "r1", TargetLogin: "other", ViewerCount: 120,
	}}

	t.Run("both flags set disables", func(t *testing.T) {
		agg, store := newTestAggregator(t, 1)
		ctx := context.Background()
		if err := store.PutSetting(ctx, db.KeyRaidDisable, true); err != nil {
			t.Fatal(err)
		}
		if err := store.PutSetting(ctx, db.KeyAutoEmoteEnabled, true); err != nil {
			t.Fatal(err)
		}
		agg.Apply(ctx, raid)
		if store.GetBool(ctx, db.KeyAutoEmoteEnabled, true) {
			t.Error("autoEmoteEnabled still true after raid")
		}
	})

	t.Run("raidDisable off leaves setting alone", func(t *testing.T) {
		agg, store := newTestAggregator(t, 1)
		ctx := context.Background()
		if err := store.PutSetting(ctx, db.KeyAutoEmoteEnabled, true); err != nil {
			t.Fatal(err)
		}
		agg.Apply(ctx, raid)
		if !store.GetBool(ctx, db.KeyAutoEmoteEnabled, false) {
			t.Error("autoEmoteEnabled flipped without raidDisable")
		}
	})

	t.Run("already disabled is a no-op", func(t *testing.T) {
		agg, store := newTestAggregator(t, 1)
		ctx := context.Background()
		if err := store.PutSetting(ctx, db.KeyRaidDisable, true); err != nil {
			t.Fatal(err)
		}
		agg.Apply(ctx, raid)
		if store.GetBool(ctx, db.KeyAutoEmoteEnabled, false) {
			t.Error("autoEmoteEnabled became true")
		}
	})
}

func TestFollowAndAdAndUserEvents(t *testing.T) {
	agg, _ := newTestAggregator(t, 1)
	ctx := context.Background()

	agg.Apply(ctx, events.Event{Kind: events.KindFollowingChannel, Payload: events.FollowingChannelPayload{
		EventName: "FollowUser", User: emotes.User{ID: "42", Login: "streamer"}, IsFollowing: true,
	}})
	if !agg.Snapshot().IsFollowing {
		t.Error("IsFollowing not set")
	}

	agg.Apply(ctx, events.Event{Kind: events.KindAdPlaying, Payload: events.AdPlayingPayload{
		EventName: "AdPlaying", RollType: "midroll", IsAdPlaying: true,
	}})
	if !agg.Snapshot().AdPlaying {
		t.Error("AdPlaying not set")
	}
	agg.Apply(ctx, events.Event{Kind: events.KindAdPlaying, Payload: events.AdPlayingPayload{
		EventName: "AdEnded", IsAdPlaying: false,
	}})
	if agg.Snapshot().AdPlaying {
		t.Error("AdPlaying not cleared")
	}

	agg.Apply(ctx, events.Event{Kind: events.KindCurrentUser, Payload: events.CurrentUserPayload{
		User: emotes.User{ID: "7", Login: "lurker"},
	}})
	if got := agg.CurrentUser().ID; got != "7" {
		t.Errorf("CurrentUser.ID = %q", got)
	}
}

func TestCatalogReplacement(t *testing.T) {
	agg, _ := newTestAggregator(t, 1)
	ctx := context.Background()

	cat := emotes.Catalog{{
		Owner:  &emotes.User{ID: "42", Login: "streamer"},
		Emotes: []emotes.Emote{{ID: "e1", Token: "streamerHi", Type: emotes.TypeFollower}},
	}}
	agg.Apply(ctx, events.Event{Kind: events.KindEmotesUpdated, Payload: events.EmotesUpdatedPayload{Catalog: cat}})
	if got := agg.Snapshot().Catalog.Size(); got != 1 {
		t.Fatalf("catalog size = %d", got)
	}

	agg.Apply(ctx, events.Event{Kind: events.KindEmotesUpdated, Payload: events.EmotesUpdatedPayload{Catalog: emotes.Catalog{}}})
	if got := agg.Snapshot().Catalog.Size(); got != 0 {
		t.Errorf("catalog not replaced wholesale, size = %d", got)
	}
}

func TestRunDrainsUntilClose(t *testing.T) {
	agg, _ := newTestAggregator(t, 1)
	ch := make(chan events.Event, 4)
	ch <- channelEvent("streamer", "42")
	close(ch)

	done := make(chan struct{})
	go func() {
		agg.Run(context.Background(), ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after channel close")
	}
	if agg.Channel().Login != "streamer" {
		t.Error("event before close not applied")
	}
}
