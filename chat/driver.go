// Package chat drives the page's chat UI to queue and send emote batches,
// pacing every step with small randomized delays so the interaction looks
// like a person clicking around.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-rod/rod"

	"github.com/onnwee/lurk-tender/backend/db"
	"github.com/onnwee/lurk-tender/backend/emotes"
	"github.com/onnwee/lurk-tender/backend/telemetry"
)

const (
	thinkMin = 300 * time.Millisecond
	thinkMax = 600 * time.Millisecond

	emoteWaitTimeout = 5 * time.Second
	inputWaitTimeout = 5 * time.Second
	rulesWaitTimeout = 3 * time.Second
)

// Driver performs the strictly sequential send pipeline against one page.
type Driver struct {
	page     *rod.Page
	store    *db.Store
	rng      *rand.Rand
	delayMin time.Duration
	delayMax time.Duration
	now      func() time.Time
	sleep    func(time.Duration)
}

// NewDriver builds a driver. delayMin and delayMax bound the fallback
// schedule advance written after every attempt.
func NewDriver(page *rod.Page, store *db.Store, rng *rand.Rand, delayMin, delayMax time.Duration) *Driver {
	return &Driver{
		page:     page,
		store:    store,
		rng:      rng,
		delayMin: delayMin,
		delayMax: delayMax,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// think pauses a randomized human-ish interval between UI steps.
func (d *Driver) think() {
	d.sleep(thinkMin + time.Duration(d.rng.Int63n(int64(thinkMax-thinkMin))))
}

// SendBatch queues each emote through the picker, sends the message, and
// handles an optional chat-rules dialog. Before returning, success or not,
// it advances the channel's schedule: the traffic-observed confirmation is
// the canonical advance, but this write guarantees the loop never hot-spins
// on a send whose confirmation was missed.
func (d *Driver) SendBatch(ctx context.Context, channelLogin string, batch []emotes.Emote) (err error) {
	if len(batch) == 0 {
		return nil
	}
	telemetry.Inc(telemetry.SendsAttempted)
	start := d.now()
	defer func() {
		if telemetry.SendDuration != nil {
			telemetry.SendDuration.Observe(d.now().Sub(start).Seconds())
		}
		if err != nil {
			telemetry.Inc(telemetry.SendsFailed)
		} else {
			telemetry.Inc(telemetry.SendsSucceeded)
		}
		d.advanceSchedule(ctx, channelLogin)
	}()

	if ok, _ := isVisible(d.page, selChatScroller); !ok {
		return fmt.Errorf("chat is not rendered")
	}
	if err := d.ensurePickerOpen(ctx); err != nil {
		return err
	}

	queued := d.clickEmotes(ctx, batch)
	if queued == 0 {
		// Picker navigation failed wholesale; fall back to typing the
		// tokens straight into the input.
		ok, err := setInputValue(d.page, tokensMessage(batch))
		if err != nil || !ok {
			return fmt.Errorf("no emotes queued and input fallback failed: %v", err)
		}
		queued = len(batch)
		slog.Warn("picker clicks failed, typed tokens directly", "count", queued)
	}

	// The input renders queued emotes asynchronously; give it a moment
	// before sending so a laggy frame does not truncate the message.
	pollUntil(ctx, inputWaitTimeout, func() (bool, error) {
		n, err := countVisible(d.page, selInputTokens)
		return n >= queued, err
	})
	if ok, err := click(d.page, selSendButton); err != nil || !ok {
		return fmt.Errorf("send button click failed: %v", err)
	}
	d.acceptRulesDialog(ctx)

	slog.Info("emote batch sent", "channel", channelLogin, "queued", queued)
	return nil
}

func (d *Driver) ensurePickerOpen(ctx context.Context) error {
	if ok, _ := isVisible(d.page, selPickerPanel); ok {
		return nil
	}
	if ok, err := click(d.page, selPickerButton); err != nil || !ok {
		return fmt.Errorf("emote picker button click failed: %v", err)
	}
	if !pollUntil(ctx, emoteWaitTimeout, func() (bool, error) {
		return isVisible(d.page, selPickerPanel)
	}) {
		return fmt.Errorf("emote picker did not open")
	}
	d.think()
	return nil
}

// clickEmotes queues each emote in order, skipping any whose button never
// renders. One missing emote must not abort the batch.
func (d *Driver) clickEmotes(ctx context.Context, batch []emotes.Emote) int {
	queued := 0
	for _, e := range batch {
		if sel := sectionSelector(e); sel != "" {
			click(d.page, sel)
		}
		d.think()

		btn := emoteButtonSelector(e)
		if !pollUntil(ctx, emoteWaitTimeout, func() (bool, error) {
			return isVisible(d.page, btn)
		}) {
			slog.Warn("emote button never appeared, skipping", "token", e.Token, "id", e.ID)
			continue
		}
		d.think()
		if ok, err := click(d.page, btn); err != nil || !ok {
			slog.Warn("emote click failed", "token", e.Token, "error", err)
			continue
		}
		queued++
		d.think()
	}
	return queued
}

// acceptRulesDialog dismisses the first-message chat-rules prompt when it
// appears. Absence is the normal case.
func (d *Driver) acceptRulesDialog(ctx context.Context) {
	if !pollUntil(ctx, rulesWaitTimeout, func() (bool, error) {
		return isVisible(d.page, selRulesOK)
	}) {
		return
	}
	click(d.page, selRulesOK)
	d.think()
	slog.Info("accepted chat rules dialog")
}

func (d *Driver) advanceSchedule(ctx context.Context, channelLogin string) {
	if channelLogin == "" {
		return
	}
	delay := db.RandomNextDelay(d.rng, d.delayMin, d.delayMax)
	if err := d.store.AdvanceSchedule(ctx, channelLogin, d.now(), delay); err != nil {
		slog.Error("fallback schedule advance", "channel", channelLogin, "error", err)
	}
}
