// Package extractor attaches to the page over CDP and turns its own network
// traffic into bus events. It is strictly passive: it never issues requests
// of its own and never alters what the page sends or receives.
package extractor

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/onnwee/lurk-tender/backend/events"
	"github.com/onnwee/lurk-tender/backend/twitchgql"
)

const gqlEndpoint = "gql.twitch.tv/gql"

// request bookkeeping is bounded: entries are dropped once handled, and the
// map is cleared wholesale if the page somehow leaks past this many.
const maxTracked = 4096

// Extractor observes one page's network stream and publishes the typed
// events the traffic implies.
type Extractor struct {
	parser *twitchgql.Parser
	bus    *events.Bus

	mu      sync.Mutex
	gqlReqs map[proto.NetworkRequestID]struct{}
	sockets map[proto.NetworkRequestID]string
}

// New builds an extractor publishing to bus.
func New(bus *events.Bus) *Extractor {
	return &Extractor{
		parser:  twitchgql.NewParser(),
		bus:     bus,
		gqlReqs: make(map[proto.NetworkRequestID]struct{}),
		sockets: make(map[proto.NetworkRequestID]string),
	}
}

// Parser exposes the session identity the extractor has accumulated.
func (x *Extractor) Parser() *twitchgql.Parser { return x.parser }

// Attach enables network observation on page and blocks handling events until
// ctx is cancelled.
func (x *Extractor) Attach(ctx context.Context, page *rod.Page) error {
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return err
	}
	slog.Info("extractor attached", "target", page.TargetID)

	wait := page.Context(ctx).EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) {
			x.guard(func() { x.onRequest(page, ev) })
		},
		func(ev *proto.NetworkLoadingFinished) {
			x.guard(func() { x.onResponseDone(page, ev.RequestID) })
		},
		func(ev *proto.NetworkLoadingFailed) {
			x.forget(ev.RequestID)
		},
		func(ev *proto.NetworkWebSocketCreated) {
			x.guard(func() { x.onSocketCreated(ev) })
		},
		func(ev *proto.NetworkWebSocketFrameReceived) {
			x.guard(func() { x.onSocketFrame(ev) })
		},
		func(ev *proto.NetworkWebSocketClosed) {
			x.mu.Lock()
			delete(x.sockets, ev.RequestID)
			x.mu.Unlock()
		},
	)
	wait()
	return nil
}

// guard keeps a panicking handler from tearing down the event loop; one bad
// payload must not stop observation.
func (x *Extractor) guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("extractor handler panic", "panic", r)
		}
	}()
	fn()
}

func (x *Extractor) publish(evs []events.Event) {
	for _, ev := range evs {
		x.bus.Publish(ev)
	}
}

func (x *Extractor) onRequest(page *rod.Page, ev *proto.NetworkRequestWillBeSent) {
	if !strings.Contains(ev.Request.URL, gqlEndpoint) {
		return
	}
	x.mu.Lock()
	if len(x.gqlReqs) >= maxTracked {
		x.gqlReqs = make(map[proto.NetworkRequestID]struct{})
	}
	x.gqlReqs[ev.RequestID] = struct{}{}
	x.mu.Unlock()

	body := ev.Request.PostData
	if body == "" && ev.Request.HasPostData {
		res, err := (proto.NetworkGetRequestPostData{RequestID: ev.RequestID}).Call(page)
		if err != nil {
			return
		}
		body = res.PostData
	}
	if body != "" {
		x.publish(x.parser.ParseRequest([]byte(body)))
	}
}

func (x *Extractor) onResponseDone(page *rod.Page, id proto.NetworkRequestID) {
	x.mu.Lock()
	_, ok := x.gqlReqs[id]
	delete(x.gqlReqs, id)
	x.mu.Unlock()
	if !ok {
		return
	}

	res, err := (proto.NetworkGetResponseBody{RequestID: id}).Call(page)
	if err != nil {
		slog.Debug("response body unavailable", "request_id", id, "error", err)
		return
	}
	body := []byte(res.Body)
	if res.Base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(res.Body)
		if err != nil {
			return
		}
		body = decoded
	}
	x.publish(x.parser.ParseResponse(body))
}

func (x *Extractor) onSocketCreated(ev *proto.NetworkWebSocketCreated) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.sockets) >= maxTracked {
		x.sockets = make(map[proto.NetworkRequestID]string)
	}
	x.sockets[ev.RequestID] = ev.URL
}

func (x *Extractor) onSocketFrame(ev *proto.NetworkWebSocketFrameReceived) {
	x.mu.Lock()
	url, ok := x.sockets[ev.RequestID]
	x.mu.Unlock()
	if !ok || ev.Response == nil {
		return
	}
	x.publish(x.parser.ParseSocketFrame(url, ev.Response.PayloadData))
}

func (x *Extractor) forget(id proto.NetworkRequestID) {
	x.mu.Lock()
	delete(x.gqlReqs, id)
	x.mu.Unlock()
}
