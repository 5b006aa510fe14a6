// Package emotes models the observed emote catalog and implements the
// weighted-random selection used to build a batch for sending.
package emotes

// EmoteType mirrors the type tag carried by the page's emote catalog payloads.
type EmoteType string

const (
	TypeGlobals       EmoteType = "GLOBALS"
	TypeHypeTrain     EmoteType = "HYPE_TRAIN"
	TypeSubscriptions EmoteType = "SUBSCRIPTIONS"
	TypeFollower      EmoteType = "FOLLOWER"
	TypeBitsBadge     EmoteType = "BITS_BADGE_TIERS"
	TypeTwoFactor     EmoteType = "TWO_FACTOR"
)

// User identifies a channel or account observed in page traffic.
type User struct {
	ID          string
	Login       string
	DisplayName string
}

// Emote is a single selectable emote.
type Emote struct {
	ID    string
	Token string
	Type  EmoteType
	Owner *User
}

// Category groups emotes under their owning channel (nil owner for global sets).
type Category struct {
	Owner  *User
	Emotes []Emote
}

// Catalog is the full set of categories available to the viewer. It is
// replaced wholesale whenever the page refetches it; staleness is expected.
type Catalog []Category

// Size returns the total emote count across all categories.
func (c Catalog) Size() int {
	n := 0
	for _, cat := range c {
		n += len(cat.Emotes)
	}
	return n
}

// Selection weights. Emotes owned by the watched channel dominate, then the
// broadly usable classes, with a floor of 1 so nothing is unreachable.
const (
	weightChannelOwner  = 1500
	weightGlobals       = 850
	weightHypeTrain     = 600
	weightSubscriptions = 300
	weightDefault       = 1
)

func weightFor(e Emote, channelLogin string) int {
	if e.Owner != nil && channelLogin != "" && e.Owner.Login == channelLogin {
		return weightChannelOwner
	}
	switch e.Type {
	case TypeGlobals:
		return weightGlobals
	case TypeHypeTrain:
		return weightHypeTrain
	case TypeSubscriptions:
		return weightSubscriptions
	}
	return weightDefault
}
