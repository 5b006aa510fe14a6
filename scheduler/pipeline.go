package scheduler

import (
	"context"
	"log/slog"

	"github.com/onnwee/lurk-tender/backend/chat"
	"github.com/onnwee/lurk-tender/backend/db"
	"github.com/onnwee/lurk-tender/backend/emotes"
	"github.com/onnwee/lurk-tender/backend/state"
)

// SendPipeline is the production Pipeline: weighted selection feeding the
// chat UI driver.
type SendPipeline struct {
	store    *db.Store
	selector *emotes.Selector
	driver   *chat.Driver
}

// NewSendPipeline wires selection to the driver.
func NewSendPipeline(store *db.Store, selector *emotes.Selector, driver *chat.Driver) *SendPipeline {
	return &SendPipeline{store: store, selector: selector, driver: driver}
}

// Send selects count emotes (restricted to the whitelist when one is set)
// and drives the UI to post them.
func (p *SendPipeline) Send(ctx context.Context, snap state.Snapshot, count int) error {
	whitelist := make(map[string]struct{})
	for id := range p.store.Whitelist(ctx) {
		whitelist[id] = struct{}{}
	}
	batch := p.selector.SelectRandom(snap.Catalog, count, whitelist, snap.Channel.Login)
	if len(batch) == 0 {
		slog.Warn("selection produced no emotes", "channel", snap.Channel.Login, "catalog", snap.Catalog.Size())
		return nil
	}
	return p.driver.SendBatch(ctx, snap.Channel.Login, batch)
}
