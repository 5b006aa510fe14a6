package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/lurk-tender/backend/emotes"
)

func TestPollUntilImmediate(t *testing.T) {
	calls := 0
	ok := pollUntil(context.Background(), time.Second, func() (bool, error) {
		calls++
		return true, nil
	})
	if !ok || calls != 1 {
		t.Fatalf("ok=%v calls=%d", ok, calls)
	}
}

func TestPollUntilTimeout(t *testing.T) {
	start := time.Now()
	ok := pollUntil(context.Background(), 250*time.Millisecond, func() (bool, error) {
		return false, nil
	})
	if ok {
		t.Fatal("expected timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout took %s", elapsed)
	}
}

func TestPollUntilErrorIsRetried(t *testing.T) {
	calls := 0
	ok := pollUntil(context.Background(), time.Second, func() (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("mid-render")
		}
		return true, nil
	})
	if !ok || calls != 3 {
		t.Fatalf("ok=%v calls=%d", ok, calls)
	}
}

func TestPollUntilContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if pollUntil(ctx, time.Minute, func() (bool, error) { return false, nil }) {
		t.Fatal("expected cancellation to end polling")
	}
}

func TestSectionSelector(t *testing.T) {
	owner := &emotes.User{ID: "42", Login: "streamer", DisplayName: "Streamer"}
	cases := []struct {
		name string
		e    emotes.Emote
		want string
	}{
		{"hype train", emotes.Emote{Type: emotes.TypeHypeTrain, Owner: owner}, `button[data-a-target="HYPE_TRAIN_EMOTES"]`},
		{"globals", emotes.Emote{Type: emotes.TypeGlobals}, `button[data-a-target="GLOBAL_EMOTES"]`},
		{"streamer category", emotes.Emote{Type: emotes.TypeFollower, Owner: owner}, `button[data-a-target="category-ref-Streamer"]`},
		{"no owner", emotes.Emote{Type: emotes.TypeFollower}, ""},
		{"owner without display name", emotes.Emote{Type: emotes.TypeSubscriptions, Owner: &emotes.User{Login: "x"}}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sectionSelector(tc.e); got != tc.want {
				t.Errorf("sectionSelector = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEmoteButtonSelector(t *testing.T) {
	got := emoteButtonSelector(emotes.Emote{ID: "emotesv2_abc"})
	want := `button[data-test-selector="emote-button-clickable"]:has(img[src*="emotesv2_abc"])`
	if got != want {
		t.Errorf("emoteButtonSelector = %q", got)
	}
}

func TestTokensMessage(t *testing.T) {
	batch := []emotes.Emote{{Token: "Kappa"}, {Token: ""}, {Token: "streamerHi"}}
	if got := tokensMessage(batch); got != "Kappa streamerHi" {
		t.Errorf("tokensMessage = %q", got)
	}
	if got := tokensMessage(nil); got != "" {
		t.Errorf("empty batch = %q", got)
	}
}
