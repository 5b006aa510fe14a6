// Package events defines the typed notifications extracted from observed page
// traffic and the in-process bus that fans them out to consumers.
package events

import (
	"time"

	"github.com/onnwee/lurk-tender/backend/emotes"
)

// Kind names an event on the bus.
type Kind string

const (
	KindEmotesUpdated    Kind = "EmotesUpdated"
	KindChannelName      Kind = "ChannelName"
	KindChannelLive      Kind = "ChannelLive"
	KindMessageSent      Kind = "MessageSent"
	KindRaidingOut       Kind = "RaidingOut"
	KindFollowingChannel Kind = "FollowingChannel"
	KindAdPlaying        Kind = "AdPlaying"
	KindCurrentUser      Kind = "CurrentUser"
)

// Event is a single typed notification. Payload holds one of the *Payload
// structs below, matching Kind.
type Event struct {
	Kind    Kind
	At      time.Time
	Payload any
}

// EmotesUpdatedPayload carries a wholesale catalog replacement.
type EmotesUpdatedPayload struct {
	Catalog emotes.Catalog
}

// ChannelNamePayload identifies the channel the page is currently viewing.
type ChannelNamePayload struct {
	User emotes.User
}

// ChannelLivePayload is a full live-state snapshot; no partial merges.
type ChannelLivePayload struct {
	User      emotes.User
	IsLive    bool
	StreamID  string
	StartedAt time.Time
}

// MessageSentPayload confirms an outgoing chat message, whichever path
// observed it first (socket frame or POST response).
type MessageSentPayload struct {
	SentAt time.Time
}

// RaidingOutPayload reports the watched channel raiding out.
type RaidingOutPayload struct {
	RaidID      string
	CreatorID   string
	TargetID    string
	TargetLogin string
	ViewerCount int
}

// FollowingChannelPayload reports a follow-state observation for the watched
// channel. EventName is one of IsFollowing, FollowUser, UnfollowUser.
type FollowingChannelPayload struct {
	EventName   string
	User        emotes.User
	IsFollowing bool
}

// AdPlayingPayload tracks ad start/stop transitions on the player.
type AdPlayingPayload struct {
	EventName   string
	RollType    string
	Position    int
	Duration    int
	IsAdPlaying bool
	StartedAt   time.Time
}

// CurrentUserPayload captures the session's own identity.
type CurrentUserPayload struct {
	User emotes.User
}
