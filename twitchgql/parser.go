// Package twitchgql extracts typed events from passively observed GQL
// traffic, chat-IRC frames, and pub/sub notifications. Parsing is
// best-effort throughout: unrecognized or malformed payloads produce no
// events and no errors, since the page's own traffic must never be gated on
// our ability to understand it.
package twitchgql

import (
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/onnwee/lurk-tender/backend/emotes"
	"github.com/onnwee/lurk-tender/backend/events"
)

// Operation tags recognized in GQL response batches.
const (
	opAvailableEmotes = "AvailableEmotesForChannelPaginated"
	opUseLive         = "UseLive"
	opSendChatMessage = "sendChatMessage"
	opFollowUser      = "FollowButton_User"
	opFollowFollow    = "FollowButton_FollowUser"
	opFollowUnfollow  = "FollowButton_UnfollowUser"
	opRecordAdEvent   = "RecordAdEvent"
)

// Ad event names carried in RecordAdEvent request bodies.
const (
	adEventImpression  = "video_ad_impression"
	adEventPodComplete = "video_ad_pod_complete"
)

// Parser accumulates session identity (own user, watched channel) across
// observed traffic and derives events from it. Safe for concurrent use: CDP
// event handlers may fire on different goroutines.
type Parser struct {
	mu        sync.Mutex
	self      emotes.User
	channel   emotes.User
	adPlaying bool
	now       func() time.Time
}

// NewParser returns a parser with no session identity yet; identity fills in
// as currentUser and UseLive responses are observed.
func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Self returns the session's own captured identity, if seen.
func (p *Parser) Self() emotes.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.self
}

// Channel returns the watched channel identity, if seen.
func (p *Parser) Channel() emotes.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel
}

// ParseResponse walks one GQL response body (a single operation result or a
// batch of them) and returns the events it implies, in batch order.
func (p *Parser) ParseResponse(body []byte) []events.Event {
	root := gjson.ParseBytes(body)
	var out []events.Event
	forEachItem(root, func(item gjson.Result) {
		out = append(out, p.parseItem(item)...)
	})
	return out
}

// ParseRequest inspects an outbound GQL request body. Only the ad-event
// operation carries its payload on the request side.
func (p *Parser) ParseRequest(body []byte) []events.Event {
	root := gjson.ParseBytes(body)
	var out []events.Event
	forEachItem(root, func(item gjson.Result) {
		if item.Get("operationName").String() != opRecordAdEvent {
			return
		}
		if ev, ok := p.parseAdEvent(item.Get("variables.input")); ok {
			out = append(out, ev)
		}
	})
	return out
}

// forEachItem normalizes the wire format: responses may be a single object
// or a list of them.
func forEachItem(root gjson.Result, fn func(gjson.Result)) {
	if root.IsArray() {
		root.ForEach(func(_, item gjson.Result) bool {
			fn(item)
			return true
		})
		return
	}
	if root.IsObject() {
		fn(root)
	}
}

func (p *Parser) parseItem(item gjson.Result) []events.Event {
	var out []events.Event

	switch item.Get("extensions.operationName").String() {
	case opAvailableEmotes:
		if ev, ok := p.parseEmoteCatalog(item); ok {
			out = append(out, ev)
		}
	case opUseLive:
		out = append(out, p.parseUseLive(item)...)
	case opSendChatMessage:
		out = append(out, events.Event{
			Kind: events.KindMessageSent, At: p.now(),
			Payload: events.MessageSentPayload{SentAt: p.now()},
		})
	case opFollowUser:
		out = append(out, p.parseFollow("IsFollowing", item.Get("data.user"))...)
	case opFollowFollow:
		out = append(out, p.parseFollow("FollowUser", item.Get("data.followUser.follow.user"))...)
	case opFollowUnfollow:
		out = append(out, p.parseFollow("UnfollowUser", item.Get("data.unfollowUser.follow.user"))...)
	}

	// Any response may carry the viewer's own identity.
	if user := item.Get("data.currentUser"); user.Get("id").Exists() {
		p.mu.Lock()
		first := p.self.ID == ""
		p.self.ID = user.Get("id").String()
		if login := user.Get("login").String(); login != "" {
			p.self.Login = login
		}
		self := p.self
		p.mu.Unlock()
		if first {
			out = append(out, events.Event{
				Kind: events.KindCurrentUser, At: p.now(),
				Payload: events.CurrentUserPayload{User: self},
			})
		}
	}

	return out
}

func (p *Parser) parseEmoteCatalog(item gjson.Result) (events.Event, bool) {
	edges := item.Get("data.channel.self.availableEmoteSetsPaginated.edges")
	if !edges.Exists() {
		return events.Event{}, false
	}
	var catalog emotes.Catalog
	edges.ForEach(func(_, edge gjson.Result) bool {
		node := edge.Get("node")
		owner := parseUser(node.Get("owner"))
		var list []emotes.Emote
		node.Get("emotes").ForEach(func(_, e gjson.Result) bool {
			typ := emotes.EmoteType(e.Get("type").String())
			// Badge-tier and verification emotes are not postable in chat.
			if typ == emotes.TypeBitsBadge || typ == emotes.TypeTwoFactor {
				return true
			}
			list = append(list, emotes.Emote{
				ID:    e.Get("id").String(),
				Token: e.Get("token").String(),
				Type:  typ,
				Owner: owner,
			})
			return true
		})
		if len(list) > 0 {
			catalog = append(catalog, emotes.Category{Owner: owner, Emotes: list})
		}
		return true
	})
	return events.Event{
		Kind: events.KindEmotesUpdated, At: p.now(),
		Payload: events.EmotesUpdatedPayload{Catalog: catalog},
	}, true
}

func (p *Parser) parseUseLive(item gjson.Result) []events.Event {
	user := item.Get("data.user")
	if !user.Get("id").Exists() {
		return nil
	}
	identity := emotes.User{
		ID:    user.Get("id").String(),
		Login: user.Get("login").String(),
	}
	p.mu.Lock()
	p.channel = identity
	p.mu.Unlock()

	out := []events.Event{{
		Kind: events.KindChannelName, At: p.now(),
		Payload: events.ChannelNamePayload{User: identity},
	}}

	live := events.ChannelLivePayload{User: identity}
	if stream := user.Get("stream"); stream.IsObject() {
		live.IsLive = true
		live.StreamID = stream.Get("id").String()
		if t, err := time.Parse(time.RFC3339, stream.Get("createdAt").String()); err == nil {
			live.StartedAt = t
		}
	}
	out = append(out, events.Event{Kind: events.KindChannelLive, At: p.now(), Payload: live})
	return out
}

// parseFollow emits FollowingChannel only when the operation's subject is the
// watched channel; follow activity for other channels is irrelevant here.
func (p *Parser) parseFollow(eventName string, user gjson.Result) []events.Event {
	if !user.Get("id").Exists() {
		return nil
	}
	subject := parseUserValue(user)
	p.mu.Lock()
	channelID := p.channel.ID
	p.mu.Unlock()
	if channelID == "" || subject.ID != channelID {
		return nil
	}
	isFollowing := false
	if eventName != "UnfollowUser" {
		isFollowing = user.Get("self.follower.followedAt").Exists()
	}
	return []events.Event{{
		Kind: events.KindFollowingChannel, At: p.now(),
		Payload: events.FollowingChannelPayload{
			EventName:   eventName,
			User:        subject,
			IsFollowing: isFollowing,
		},
	}}
}

// parseAdEvent tracks start/stop transitions; repeated observations while an
// ad keeps playing are collapsed.
func (p *Parser) parseAdEvent(input gjson.Result) (events.Event, bool) {
	name := input.Get("eventName").String()
	if name == "" {
		return events.Event{}, false
	}
	payload := gjson.Parse(input.Get("eventPayload").String())

	playing := name != adEventPodComplete
	p.mu.Lock()
	changed := playing != p.adPlaying
	p.adPlaying = playing
	p.mu.Unlock()
	if !changed {
		return events.Event{}, false
	}

	ev := events.AdPlayingPayload{
		EventName:   name,
		RollType:    payload.Get("roll_type").String(),
		Position:    int(payload.Get("ad_position").Int()),
		Duration:    int(payload.Get("duration").Int()),
		IsAdPlaying: playing,
	}
	if playing {
		ev.StartedAt = p.now()
	}
	return events.Event{Kind: events.KindAdPlaying, At: p.now(), Payload: ev}, true
}

func parseUser(node gjson.Result) *emotes.User {
	if !node.Get("id").Exists() {
		return nil
	}
	u := parseUserValue(node)
	return &u
}

func parseUserValue(node gjson.Result) emotes.User {
	return emotes.User{
		ID:          node.Get("id").String(),
		Login:       node.Get("login").String(),
		DisplayName: node.Get("displayName").String(),
	}
}
