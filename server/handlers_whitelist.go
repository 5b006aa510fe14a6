package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/onnwee/lurk-tender/backend/db"
)

// captureSession is set when a browser is attached; it runs one interactive
// whitelist capture until timeout or cancellation.
type captureSession struct {
	ctx    context.Context
	run    func(context.Context) error
	active atomic.Bool
}

// EnableCapture wires the interactive whitelist capture. ctx bounds the
// lifetime of capture sessions started over HTTP.
func (h *Handlers) EnableCapture(ctx context.Context, run func(context.Context) error) {
	h.capture = &captureSession{ctx: ctx, run: run}
}

// HandleWhitelist serves the whitelist. GET returns entries sorted by token.
func (h *Handlers) HandleWhitelist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entries := make([]db.WhitelistEntry, 0)
	for _, e := range h.store.Whitelist(r.Context()) {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Token < entries[j].Token })
	writeJSON(w, http.StatusOK, entries)
}

// HandleWhitelistDelete removes one entry: DELETE /whitelist/{id}.
func (h *Handlers) HandleWhitelistDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/whitelist/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "missing emote id", http.StatusBadRequest)
		return
	}
	if err := h.store.RemoveFromWhitelist(r.Context(), id); err != nil {
		http.Error(w, "failed to remove entry", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleWhitelistCapture starts an interactive capture session: until it
// ends, emote clicks in the page's picker are recorded into the whitelist
// instead of being sent.
func (h *Handlers) HandleWhitelistCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.capture == nil {
		http.Error(w, "no browser attached", http.StatusConflict)
		return
	}
	if !h.capture.active.CompareAndSwap(false, true) {
		http.Error(w, "capture already running", http.StatusConflict)
		return
	}
	go func() {
		defer h.capture.active.Store(false)
		if err := h.capture.run(h.capture.ctx); err != nil {
			slog.Error("whitelist capture session", "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "capture_started"})
}
