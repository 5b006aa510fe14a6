package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/onnwee/lurk-tender/backend/db"
)

const (
	whitelistBinding = "__lurkWhitelistPick"

	// A capture session that sees no click for this long shuts itself off.
	captureTimeout = 5 * time.Minute
)

// Clicking an emote in the picker normally queues it; in capture mode the
// click is intercepted, the emote's id and token are reported through a
// CDP binding, and the page sees nothing.
const jsCaptureClicks = `() => {
	if (window.__lurkCaptureInstalled) return true;
	window.__lurkCaptureInstalled = true;
	document.addEventListener("click", (event) => {
		if (!window.__lurkCaptureActive) return;
		const btn = event.target.closest("[data-test-selector='emote-button-clickable']");
		if (!btn) return;
		event.preventDefault();
		event.stopImmediatePropagation();
		const img = btn.querySelector("img");
		if (!img) return;
		const match = img.src.match(/\/emoticons\/v2\/([^\/]+)\/default/);
		if (!match) return;
		window.__lurkWhitelistPick(JSON.stringify({ id: match[1], token: img.getAttribute("alt") }));
	}, true);
	return true;
}`

// WhitelistCapture lets the user build the emote whitelist by clicking
// emotes in the page's own picker. While a capture session is active those
// clicks are swallowed and persisted instead of queueing emotes.
type WhitelistCapture struct {
	page  *rod.Page
	store *db.Store
}

// NewWhitelistCapture builds a capture helper for page.
func NewWhitelistCapture(page *rod.Page, store *db.Store) *WhitelistCapture {
	return &WhitelistCapture{page: page, store: store}
}

// Run installs the click interceptor and records picked emotes until ctx is
// cancelled or the session times out from inactivity.
func (w *WhitelistCapture) Run(ctx context.Context) error {
	if err := (proto.RuntimeAddBinding{Name: whitelistBinding}).Call(w.page); err != nil {
		return fmt.Errorf("add whitelist binding: %w", err)
	}
	if _, err := w.page.Eval(jsCaptureClicks); err != nil {
		return fmt.Errorf("install capture hook: %w", err)
	}
	if _, err := w.page.Eval(`() => { window.__lurkCaptureActive = true; }`); err != nil {
		return err
	}
	defer func() {
		w.page.Eval(`() => { window.__lurkCaptureActive = false; }`)
	}()
	slog.Info("whitelist capture started", "timeout", captureTimeout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	idle := time.AfterFunc(captureTimeout, cancel)
	defer idle.Stop()

	wait := w.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != whitelistBinding {
			return
		}
		idle.Reset(captureTimeout)
		var entry db.WhitelistEntry
		if err := json.Unmarshal([]byte(e.Payload), &entry); err != nil || entry.ID == "" {
			slog.Warn("whitelist capture: bad payload", "payload", e.Payload)
			return
		}
		if err := w.store.AddToWhitelist(ctx, entry); err != nil {
			slog.Error("whitelist capture: persist", "error", err)
			return
		}
		slog.Info("whitelisted emote", "id", entry.ID, "token", entry.Token)
	})
	wait()
	slog.Info("whitelist capture ended")
	return nil
}
