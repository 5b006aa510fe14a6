package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/onnwee/lurk-tender/backend/db"
	"github.com/onnwee/lurk-tender/backend/state"
)

// Handlers bundles the dependencies the HTTP surface reads and mutates.
type Handlers struct {
	sqlDB   *sql.DB
	store   *db.Store
	agg     *state.Aggregator
	browser func() bool // reports whether the page connection is up; nil skips the check
	capture *captureSession
}

// NewHandlers wires handler dependencies. browserUp may be nil when no
// browser is attached (status-only deployments).
func NewHandlers(sqlDB *sql.DB, store *db.Store, agg *state.Aggregator, browserUp func() bool) *Handlers {
	return &Handlers{sqlDB: sqlDB, store: store, agg: agg, browser: browserUp}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleHealthz responds to liveness probes by checking store connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.sqlDB.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports readiness: the store must answer and, when a browser
// is wired in, its connection must be up.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() bool
	}{
		{"database", func() bool { return h.sqlDB.PingContext(r.Context()) == nil }},
		{"browser", func() bool { return h.browser == nil || h.browser() }},
	}
	for _, check := range checks {
		if !check.fn() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statusResponse is the full observable state of the loop.
type statusResponse struct {
	CurrentUser      string     `json:"currentUser,omitempty"`
	Channel          string     `json:"channel,omitempty"`
	ChannelID        string     `json:"channelId,omitempty"`
	IsLive           bool       `json:"isLive"`
	StreamID         string     `json:"streamId,omitempty"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	IsFollowing      bool       `json:"isFollowing"`
	AdPlaying        bool       `json:"adPlaying"`
	CatalogSize      int        `json:"catalogSize"`
	AutoEmoteEnabled bool       `json:"autoEmoteEnabled"`
	LastMessage      *time.Time `json:"lastMessage,omitempty"`
	NextMessage      *time.Time `json:"nextMessage,omitempty"`
	SecondsUntilNext *int       `json:"secondsUntilNext,omitempty"`
}

// HandleStatus reports the aggregated channel state and the current
// channel's schedule. The countdown field follows the showCountdown setting.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	snap := h.agg.Snapshot()

	resp := statusResponse{
		CurrentUser:      snap.CurrentUser.Login,
		Channel:          snap.Channel.Login,
		ChannelID:        snap.Channel.ID,
		IsLive:           snap.IsLive,
		StreamID:         snap.StreamID,
		IsFollowing:      snap.IsFollowing,
		AdPlaying:        snap.AdPlaying,
		CatalogSize:      snap.Catalog.Size(),
		AutoEmoteEnabled: h.store.GetBool(ctx, db.KeyAutoEmoteEnabled, false),
	}
	if !snap.StartedAt.IsZero() {
		resp.StartedAt = &snap.StartedAt
	}
	if snap.Channel.Login != "" {
		if rec := h.store.Schedule(ctx, snap.Channel.Login); rec != nil {
			resp.LastMessage = &rec.LastMessage
			resp.NextMessage = &rec.NextMessage
			if h.store.GetBool(ctx, db.KeyShowCountdown, false) {
				secs := int(time.Until(rec.NextMessage).Seconds())
				if secs < 0 {
					secs = 0
				}
				resp.SecondsUntilNext = &secs
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
