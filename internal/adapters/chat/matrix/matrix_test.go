package matrix

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/okian/wiglebot/internal/adapters/chat"
)

func textEvent(msgType event.MessageType, body string) *event.Event {
	return &event.Event{
		Type:      event.EventMessage,
		ID:        id.EventID("$abc"),
		RoomID:    id.RoomID("!room:example.org"),
		Sender:    id.UserID("@alice:example.org"),
		Timestamp: 1700000000000,
		Content:   event.Content{Parsed: &event.MessageEventContent{MsgType: msgType, Body: body}},
	}
}

func memberEvent(stateKey string, membership event.Membership) *event.Event {
	return &event.Event{
		Type:     event.StateMember,
		RoomID:   id.RoomID("!invited:example.org"),
		Sender:   id.UserID("@alice:example.org"),
		StateKey: &stateKey,
		Content:  event.Content{Parsed: &event.MemberEventContent{Membership: membership}},
	}
}

func TestToMessage(t *testing.T) {
	Convey("Given room message events", t, func() {
		Convey("A text message is mapped", func() {
			msg, ok := toMessage(textEvent(event.MsgText, "!user alice"))
			So(ok, ShouldBeTrue)
			So(msg, ShouldResemble, chat.Message{
				ID:       "$abc",
				RoomID:   "!room:example.org",
				SenderID: "@alice:example.org",
				Body:     "!user alice",
				Received: time.UnixMilli(1700000000000),
			})
		})

		Convey("Notices and emotes are ignored", func() {
			_, ok := toMessage(textEvent(event.MsgNotice, "!help"))
			So(ok, ShouldBeFalse)
			_, ok = toMessage(textEvent(event.MsgEmote, "!help"))
			So(ok, ShouldBeFalse)
		})

		Convey("Empty bodies and other event types are ignored", func() {
			_, ok := toMessage(textEvent(event.MsgText, ""))
			So(ok, ShouldBeFalse)
			_, ok = toMessage(memberEvent("@bot:example.org", event.MembershipInvite))
			So(ok, ShouldBeFalse)
			_, ok = toMessage(nil)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestInviteFor(t *testing.T) {
	self := id.UserID("@bot:example.org")

	Convey("Given membership events", t, func() {
		Convey("An invite for the bot yields the room", func() {
			room, ok := inviteFor(memberEvent("@bot:example.org", event.MembershipInvite), self)
			So(ok, ShouldBeTrue)
			So(room, ShouldEqual, "!invited:example.org")
		})

		Convey("An invite for someone else is ignored", func() {
			_, ok := inviteFor(memberEvent("@carol:example.org", event.MembershipInvite), self)
			So(ok, ShouldBeFalse)
		})

		Convey("Other memberships are ignored", func() {
			_, ok := inviteFor(memberEvent("@bot:example.org", event.MembershipJoin), self)
			So(ok, ShouldBeFalse)
			_, ok = inviteFor(memberEvent("@bot:example.org", event.MembershipLeave), self)
			So(ok, ShouldBeFalse)
		})

		Convey("Non-state events are ignored", func() {
			_, ok := inviteFor(textEvent(event.MsgText, "hi"), self)
			So(ok, ShouldBeFalse)
		})
	})
}

// homeserver is a minimal fake of the client-server API endpoints the
// gateway calls outside /sync.
type homeserver struct {
	*httptest.Server
	mu    sync.Mutex
	calls []string
	login map[string]any
}

func newHomeserver() *homeserver {
	hs := &homeserver{}
	hs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hs.mu.Lock()
		hs.calls = append(hs.calls, r.Method+" "+r.URL.Path)
		hs.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/login"):
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			hs.mu.Lock()
			hs.login = body
			hs.mu.Unlock()
			if body["password"] != "secret" {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"errcode":"M_FORBIDDEN","error":"Invalid password"}`))
				return
			}
			_, _ = w.Write([]byte(`{"user_id":"@bot:example.org","access_token":"tok","device_id":"DEV"}`))
		case strings.Contains(r.URL.Path, "/send/m.room.message/"):
			_, _ = w.Write([]byte(`{"event_id":"$sent"}`))
		case strings.Contains(r.URL.Path, "/typing/"):
			_, _ = w.Write([]byte(`{}`))
		case strings.HasSuffix(r.URL.Path, "/join"):
			_, _ = w.Write([]byte(`{"room_id":"!invited:example.org"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errcode":"M_UNRECOGNIZED","error":"Unrecognized request"}`))
		}
	}))
	return hs
}

func (hs *homeserver) seen(fragment string) bool {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	for _, c := range hs.calls {
		if strings.Contains(c, fragment) {
			return true
		}
	}
	return false
}

func TestGatewaySession(t *testing.T) {
	ctx := context.Background()

	Convey("Given a gateway that has not logged in", t, func() {
		g := New("https://matrix.example.org", "@bot:example.org", "secret")

		Convey("Outbound calls report not connected", func() {
			So(errors.Is(g.SendText(ctx, "!r", "hi"), chat.ErrNotConnected), ShouldBeTrue)
			So(errors.Is(g.SendTyping(ctx, "!r", time.Second), chat.ErrNotConnected), ShouldBeTrue)
			So(errors.Is(g.JoinRoom(ctx, "!r"), chat.ErrNotConnected), ShouldBeTrue)
			So(g.Close(), ShouldBeNil)
		})

		Convey("Self is the configured user id", func() {
			So(g.Name(), ShouldEqual, "matrix")
			So(g.Self(), ShouldEqual, "@bot:example.org")
		})
	})

	Convey("Given a fake homeserver", t, func() {
		hs := newHomeserver()
		defer hs.Close()

		Convey("When the password is wrong", func() {
			g := New(hs.URL, "@bot:example.org", "wrong")
			_, err := g.login(ctx)

			Convey("Then login fails and the gateway stays disconnected", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldStartWith, "matrix login")
				So(errors.Is(g.SendText(ctx, "!r", "hi"), chat.ErrNotConnected), ShouldBeTrue)
			})
		})

		Convey("When logged in", func() {
			g := New(hs.URL, "@bot:example.org", "secret")
			_, err := g.login(ctx)
			So(err, ShouldBeNil)

			Convey("Then the login used a password identifier", func() {
				So(hs.login["type"], ShouldEqual, "m.login.password")
				ident, _ := hs.login["identifier"].(map[string]any)
				So(ident["type"], ShouldEqual, "m.id.user")
				So(ident["user"], ShouldEqual, "@bot:example.org")
			})

			Convey("Then outbound calls reach the homeserver", func() {
				So(g.SendText(ctx, "!room:example.org", "hello"), ShouldBeNil)
				So(g.SendTyping(ctx, "!room:example.org", 3*time.Second), ShouldBeNil)
				So(g.JoinRoom(ctx, "!invited:example.org"), ShouldBeNil)
				So(hs.seen("/send/m.room.message/"), ShouldBeTrue)
				So(hs.seen("/typing/"), ShouldBeTrue)
				So(hs.seen("/join"), ShouldBeTrue)
				So(g.Self(), ShouldEqual, "@bot:example.org")
			})
		})
	})
}
