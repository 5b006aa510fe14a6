package server

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/lurk-tender/backend/db"
	"github.com/onnwee/lurk-tender/backend/telemetry"
)

// HandleSettings serves the flat settings map. GET returns every known key
// that has a stored value; PUT upserts the keys present in the body and
// rejects unknown ones.
func (h *Handlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.settingsGet(w, r)
	case http.MethodPut:
		h.settingsPut(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) settingsGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := make(map[string]json.RawMessage)
	for _, key := range db.SettingKeys {
		var raw json.RawMessage
		if h.store.GetJSON(ctx, db.NamespaceSettings, key, &raw) {
			out[key] = raw
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) settingsPut(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	known := make(map[string]bool, len(db.SettingKeys))
	for _, key := range db.SettingKeys {
		known[key] = true
	}
	for key := range body {
		if !known[key] {
			http.Error(w, "unknown setting: "+key, http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	for key, raw := range body {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			http.Error(w, "invalid value for "+key, http.StatusBadRequest)
			return
		}
		if err := h.store.PutSetting(ctx, key, value); err != nil {
			telemetry.LoggerWithCorr(ctx).Error("persist setting", "key", key, "error", err)
			http.Error(w, "failed to persist "+key, http.StatusInternalServerError)
			return
		}
	}
	h.settingsGet(w, r)
}
