package twitchgql

import (
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/tidwall/gjson"

	"github.com/onnwee/lurk-tender/backend/events"
)

// Socket endpoints whose frames carry signals worth extracting.
const (
	ircEndpointPrefix    = "wss://irc-ws.chat.twitch.tv/"
	hermesEndpointPrefix = "wss://hermes.twitch.tv/v1"
)

// ParseSocketFrame dispatches one incoming socket frame by connection URL.
// Frames from other endpoints yield nothing.
func (p *Parser) ParseSocketFrame(socketURL, payload string) []events.Event {
	switch {
	case strings.HasPrefix(socketURL, ircEndpointPrefix):
		return p.parseIRCFrame(payload)
	case strings.HasPrefix(socketURL, hermesEndpointPrefix):
		return p.parseHermesFrame(payload)
	}
	return nil
}

// parseIRCFrame scans a chat-IRC frame for a PRIVMSG sent by the session's
// own user into the watched channel. This is the low-latency confirmation
// that a message went out; the GQL sendChatMessage response is the fallback.
func (p *Parser) parseIRCFrame(payload string) []events.Event {
	p.mu.Lock()
	selfID := p.self.ID
	channelLogin := p.channel.Login
	p.mu.Unlock()
	if selfID == "" || channelLogin == "" {
		return nil
	}

	var out []events.Event
	for _, line := range strings.Split(payload, "\r\n") {
		if line == "" || !strings.Contains(line, "PRIVMSG") {
			continue
		}
		msg, ok := twitch.ParseMessage(line).(*twitch.PrivateMessage)
		if !ok {
			continue
		}
		if msg.User.ID != selfID || !strings.EqualFold(msg.Channel, channelLogin) {
			continue
		}
		out = append(out, events.Event{
			Kind: events.KindMessageSent, At: p.now(),
			Payload: events.MessageSentPayload{SentAt: p.now()},
		})
	}
	return out
}

// parseHermesFrame unwraps the pub/sub envelope (JSON carrying a JSON string)
// and reports a raid departing the watched channel.
func (p *Parser) parseHermesFrame(payload string) []events.Event {
	inner := gjson.Get(payload, "notification.pubsub")
	if !inner.Exists() {
		return nil
	}
	pubsub := gjson.Parse(inner.String())
	if pubsub.Get("type").String() != "raid_go_v2" {
		return nil
	}
	raid := pubsub.Get("raid")
	if !raid.Get("id").Exists() {
		return nil
	}
	return []events.Event{{
		Kind: events.KindRaidingOut, At: p.now(),
		Payload: events.RaidingOutPayload{
			RaidID:      raid.Get("id").String(),
			CreatorID:   raid.Get("creator_id").String(),
			TargetID:    raid.Get("target_id").String(),
			TargetLogin: raid.Get("target_login").String(),
			ViewerCount: int(raid.Get("viewer_count").Int()),
		},
	}}
}
