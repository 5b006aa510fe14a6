package twitchgql

import (
	"testing"
	"time"

	"github.com/onnwee/lurk-tender/backend/events"
)

const emoteCatalogResponse = `[{
  "data": {"channel": {"self": {"availableEmoteSetsPaginated": {"edges": [
    {"node": {
      "owner": {"id": "42", "login": "streamer", "displayName": "Streamer"},
      "emotes": [
        {"id": "e1", "token": "streamerHi", "type": "FOLLOWER"},
        {"id": "e2", "token": "streamerBits", "type": "BITS_BADGE_TIERS"},
        {"id": "e3", "token": "streamer2FA", "type": "TWO_FACTOR"}
      ]
    }},
    {"node": {
      "owner": null,
      "emotes": [{"id": "g1", "token": "Kappa", "type": "GLOBALS"}]
    }},
    {"node": {
      "owner": {"id": "9", "login": "badges", "displayName": "Badges"},
      "emotes": [{"id": "b1", "token": "badgeOnly", "type": "BITS_BADGE_TIERS"}]
    }}
  ]}}}},
  "extensions": {"operationName": "AvailableEmotesForChannelPaginated"}
}]`

func TestParseResponseEmoteCatalog(t *testing.T) {
	p := NewParser()
	evs := p.ParseResponse([]byte(emoteCatalogResponse))
	if len(evs) != 1 {
		t.Fatalf("events = %d, want 1", len(evs))
	}
	payload, ok := evs[0].Payload.(events.EmotesUpdatedPayload)
	if !ok {
		t.Fatalf("payload type %T", evs[0].Payload)
	}
	// Badge-tier and verification emotes are filtered; an all-filtered
	// category is dropped entirely.
	if len(payload.Catalog) != 2 {
		t.Fatalf("categories = %d, want 2", len(payload.Catalog))
	}
	first := payload.Catalog[0]
	if first.Owner == nil || first.Owner.Login != "streamer" {
		t.Errorf("owner = %+v", first.Owner)
	}
	if len(first.Emotes) != 1 || first.Emotes[0].Token != "streamerHi" {
		t.Errorf("emotes = %+v", first.Emotes)
	}
	if payload.Catalog[1].Owner != nil {
		t.Errorf("global category owner = %+v", payload.Catalog[1].Owner)
	}
}

const useLiveOnline = `[{
  "data": {"user": {"id": "42", "login": "streamer",
    "stream": {"id": "s123", "createdAt": "2026-08-29T10:00:00Z"}}},
  "extensions": {"operationName": "UseLive"}
}]`

const useLiveOffline = `{
  "data": {"user": {"id": "42", "login": "streamer", "stream": null}},
  "extensions": {"operationName": "UseLive"}
}`

func TestParseResponseUseLive(t *testing.T) {
	p := NewParser()

	evs := p.ParseResponse([]byte(useLiveOnline))
	if len(evs) != 2 {
		t.Fatalf("events = %d, want ChannelName then ChannelLive", len(evs))
	}
	if evs[0].Kind != events.KindChannelName || evs[1].Kind != events.KindChannelLive {
		t.Fatalf("kinds = %s, %s", evs[0].Kind, evs[1].Kind)
	}
	live := evs[1].Payload.(events.ChannelLivePayload)
	if !live.IsLive || live.StreamID != "s123" {
		t.Errorf("live payload = %+v", live)
	}
	want := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	if !live.StartedAt.Equal(want) {
		t.Errorf("StartedAt = %s", live.StartedAt)
	}
	if p.Channel().Login != "streamer" {
		t.Errorf("parser channel = %+v", p.Channel())
	}

	// Offline snapshot: single object instead of a batch, null stream.
	evs = p.ParseResponse([]byte(useLiveOffline))
	if len(evs) != 2 {
		t.Fatalf("offline events = %d", len(evs))
	}
	live = evs[1].Payload.(events.ChannelLivePayload)
	if live.IsLive || live.StreamID != "" {
		t.Errorf("offline payload = %+v", live)
	}
}

func TestParseResponseSendChatMessage(t *testing.T) {
	p := NewParser()
	evs := p.ParseResponse([]byte(`[{"data": {}, "extensions": {"operationName": "sendChatMessage"}}]`))
	if len(evs) != 1 || evs[0].Kind != events.KindMessageSent {
		t.Fatalf("events = %+v", evs)
	}
}

func TestParseResponseCurrentUserCapturedOnce(t *testing.T) {
	p := NewParser()
	body := []byte(`[{"data": {"currentUser": {"id": "7", "login": "lurker"}}}]`)

	evs := p.ParseResponse(body)
	if len(evs) != 1 || evs[0].Kind != events.KindCurrentUser {
		t.Fatalf("first observation events = %+v", evs)
	}
	if p.Self().ID != "7" || p.Self().Login != "lurker" {
		t.Errorf("self = %+v", p.Self())
	}
	// Repeat observations refresh state silently.
	if evs := p.ParseResponse(body); len(evs) != 0 {
		t.Errorf("second observation events = %+v", evs)
	}
}

func TestParseResponseFollowOps(t *testing.T) {
	p := NewParser()
	// Establish the watched channel first; follow ops for other channels
	// must be ignored.
	p.ParseResponse([]byte(useLiveOffline))

	followed := `[{
	  "data": {"followUser": {"follow": {"user": {"id": "42", "login": "streamer",
	    "displayName": "Streamer", "self": {"follower": {"followedAt": "2026-08-29T11:00:00Z"}}}}}},
	  "extensions": {"operationName": "FollowButton_FollowUser"}
	}]`
	evs := p.ParseResponse([]byte(followed))
	if len(evs) != 1 {
		t.Fatalf("follow events = %+v", evs)
	}
	fp := evs[0].Payload.(events.FollowingChannelPayload)
	if fp.EventName != "FollowUser" || !fp.IsFollowing {
		t.Errorf("payload = %+v", fp)
	}

	otherChannel := `[{
	  "data": {"user": {"id": "9999", "login": "someone",
	    "self": {"follower": {"followedAt": "2026-08-29T11:00:00Z"}}}},
	  "extensions": {"operationName": "FollowButton_User"}
	}]`
	if evs := p.ParseResponse([]byte(otherChannel)); len(evs) != 0 {
		t.Errorf("other-channel follow produced events: %+v", evs)
	}

	unfollowed := `[{
	  "data": {"unfollowUser": {"follow": {"user": {"id": "42", "login": "streamer"}}}},
	  "extensions": {"operationName": "FollowButton_UnfollowUser"}
	}]`
	evs = p.ParseResponse([]byte(unfollowed))
	if len(evs) != 1 {
		t.Fatalf("unfollow events = %+v", evs)
	}
	fp = evs[0].Payload.(events.FollowingChannelPayload)
	if fp.EventName != "UnfollowUser" || fp.IsFollowing {
		t.Errorf("payload = %+v", fp)
	}
}

func TestParseRequestAdTransitions(t *testing.T) {
	p := NewParser()
	impression := `{"operationName": "RecordAdEvent", "variables": {"input": {
	  "eventName": "video_ad_impression",
	  "eventPayload": "{\"roll_type\":\"midroll\",\"ad_position\":1,\"duration\":30}"
	}}}`
	complete := `{"operationName": "RecordAdEvent", "variables": {"input": {
	  "eventName": "video_ad_pod_complete",
	  "eventPayload": "{\"roll_type\":\"midroll\"}"
	}}}`

	evs := p.ParseRequest([]byte(impression))
	if len(evs) != 1 {
		t.Fatalf("impression events = %+v", evs)
	}
	ad := evs[0].Payload.(events.AdPlayingPayload)
	if !ad.IsAdPlaying || ad.RollType != "midroll" || ad.Duration != 30 || ad.Position != 1 {
		t.Errorf("payload = %+v", ad)
	}
	if ad.StartedAt.IsZero() {
		t.Error("StartedAt not set on ad start")
	}

	// Still playing: no transition, no event.
	if evs := p.ParseRequest([]byte(impression)); len(evs) != 0 {
		t.Errorf("repeat impression events = %+v", evs)
	}

	evs = p.ParseRequest([]byte(complete))
	if len(evs) != 1 {
		t.Fatalf("complete events = %+v", evs)
	}
	if evs[0].Payload.(events.AdPlayingPayload).IsAdPlaying {
		t.Error("IsAdPlaying still true after pod complete")
	}
}

func TestParseResponseGarbage(t *testing.T) {
	p := NewParser()
	for _, body := range []string{"", "nonsense", "[]", "{}", `{"data": null}`, `[1, 2, 3]`} {
		if evs := p.ParseResponse([]byte(body)); len(evs) != 0 {
			t.Errorf("body %q produced events: %+v", body, evs)
		}
	}
}
