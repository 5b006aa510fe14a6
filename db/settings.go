package db

import "context"

// Settings keys persisted in the "settings" namespace. Shapes match the
// external settings surface: booleans, ints, and the whitelist map.
const (
	KeyAutoEmoteEnabled = "autoEmoteEnabled"
	KeyUseRange         = "useRange"
	KeyEmoteCount       = "emoteCount"
	KeyEmoteMin         = "emoteMin"
	KeyEmoteMax         = "emoteMax"
	KeyFollowedOnly     = "followedOnly"
	KeyRaidDisable      = "raidDisable"
	KeyShowCountdown    = "showCountdown"
	KeyWhitelist        = "whitelistedEmotes"
)

// SettingKeys lists every key the settings surface may read or write.
var SettingKeys = []string{
	KeyAutoEmoteEnabled, KeyUseRange, KeyEmoteCount, KeyEmoteMin, KeyEmoteMax,
	KeyFollowedOnly, KeyRaidDisable, KeyShowCountdown, KeyWhitelist,
}

// WhitelistEntry is one user-whitelisted emote.
type WhitelistEntry struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// GetBool reads a boolean setting, returning def on absence or error.
func (s *Store) GetBool(ctx context.Context, key string, def bool) bool {
	v := def
	if s.GetJSON(ctx, NamespaceSettings, key, &v) {
		return v
	}
	return def
}

// GetInt reads an integer setting, returning def on absence or error.
func (s *Store) GetInt(ctx context.Context, key string, def int) int {
	v := def
	if s.GetJSON(ctx, NamespaceSettings, key, &v) {
		return v
	}
	return def
}

// PutSetting writes one settings key.
func (s *Store) PutSetting(ctx context.Context, key string, value any) error {
	return s.PutJSON(ctx, NamespaceSettings, key, value)
}

// Whitelist returns the persisted whitelist map (emote id -> entry). Absent
// or unreadable values degrade to an empty map.
func (s *Store) Whitelist(ctx context.Context) map[string]WhitelistEntry {
	out := map[string]WhitelistEntry{}
	s.GetJSON(ctx, NamespaceSettings, KeyWhitelist, &out)
	return out
}

// AddToWhitelist inserts an entry and persists the full map.
func (s *Store) AddToWhitelist(ctx context.Context, entry WhitelistEntry) error {
	wl := s.Whitelist(ctx)
	if _, ok := wl[entry.ID]; ok {
		return nil
	}
	wl[entry.ID] = entry
	return s.PutSetting(ctx, KeyWhitelist, wl)
}

// RemoveFromWhitelist deletes an entry by emote id and persists the result.
func (s *Store) RemoveFromWhitelist(ctx context.Context, id string) error {
	wl := s.Whitelist(ctx)
	if _, ok := wl[id]; !ok {
		return nil
	}
	delete(wl, id)
	return s.PutSetting(ctx, KeyWhitelist, wl)
}
