// Package matrix is the chat gateway for Matrix homeservers.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/okian/wiglebot/internal/adapters/chat"
	"github.com/okian/wiglebot/pkg/logger"
)

const deviceName = "wiglebot"

// Gateway logs in with a password and long-polls /sync.
type Gateway struct {
	homeserver string
	userID     string
	password   string
	log        logger.Logger

	mu     sync.RWMutex
	client *mautrix.Client
}

var _ chat.Gateway = (*Gateway)(nil)

// New returns a gateway for userID on homeserver.
func New(homeserver, userID, password string, opts ...Option) *Gateway {
	g := &Gateway{
		homeserver: homeserver,
		userID:     userID,
		password:   password,
		log:        logger.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) Name() string { return "matrix" }

// Self is the logged-in user id, or the configured one before login.
func (g *Gateway) Self() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.client != nil && g.client.UserID != "" {
		return string(g.client.UserID)
	}
	return g.userID
}

func (g *Gateway) session() (*mautrix.Client, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.client == nil {
		return nil, chat.ErrNotConnected
	}
	return g.client, nil
}

func (g *Gateway) login(ctx context.Context) (*mautrix.Client, error) {
	cli, err := mautrix.NewClient(g.homeserver, id.UserID(g.userID), "")
	if err != nil {
		return nil, fmt.Errorf("matrix client: %w", err)
	}
	resp, err := cli.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: g.userID,
		},
		Password:                 g.password,
		InitialDeviceDisplayName: deviceName,
		StoreCredentials:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("matrix login: %w", err)
	}
	g.log.Info(ctx, "login successful",
		logger.String("user", string(resp.UserID)),
		logger.String("device", string(resp.DeviceID)),
	)

	g.mu.Lock()
	g.client = cli
	g.mu.Unlock()
	return cli, nil
}

// Run logs in and syncs until ctx is done. Events from the first sync are
// history and are skipped.
func (g *Gateway) Run(ctx context.Context, h chat.Handler) error {
	cli, err := g.login(ctx)
	if err != nil {
		return err
	}

	syncer, ok := cli.Syncer.(mautrix.ExtensibleSyncer)
	if !ok {
		return fmt.Errorf("matrix: unsupported syncer %T", cli.Syncer)
	}
	syncer.OnSync(cli.DontProcessOldEvents)
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		if msg, ok := toMessage(evt); ok {
			h.OnMessage(ctx, msg)
		}
	})
	syncer.OnEventType(event.StateMember, func(ctx context.Context, evt *event.Event) {
		if roomID, ok := inviteFor(evt, cli.UserID); ok {
			h.OnInvite(ctx, roomID)
		}
	})

	g.log.Info(ctx, "syncing", logger.String("homeserver", g.homeserver))
	err = cli.SyncWithContext(ctx)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("matrix sync: %w", err)
	}
	return nil
}

// SendText posts a plain m.text message.
func (g *Gateway) SendText(ctx context.Context, roomID, text string) error {
	cli, err := g.session()
	if err != nil {
		return err
	}
	if _, err := cli.SendText(ctx, id.RoomID(roomID), text); err != nil {
		return fmt.Errorf("matrix send: %w", err)
	}
	return nil
}

// SendTyping marks the bot as typing in roomID for d.
func (g *Gateway) SendTyping(ctx context.Context, roomID string, d time.Duration) error {
	cli, err := g.session()
	if err != nil {
		return err
	}
	if _, err := cli.UserTyping(ctx, id.RoomID(roomID), true, d); err != nil {
		return fmt.Errorf("matrix typing: %w", err)
	}
	return nil
}

// JoinRoom accepts an invitation.
func (g *Gateway) JoinRoom(ctx context.Context, roomID string) error {
	cli, err := g.session()
	if err != nil {
		return err
	}
	if _, err := cli.JoinRoomByID(ctx, id.RoomID(roomID)); err != nil {
		return fmt.Errorf("matrix join: %w", err)
	}
	return nil
}

// Close stops a running sync.
func (g *Gateway) Close() error {
	if cli, err := g.session(); err == nil {
		cli.StopSync()
	}
	return nil
}

// toMessage maps an m.room.message event with msgtype m.text.
func toMessage(evt *event.Event) (chat.Message, bool) {
	if evt == nil || evt.Type.Type != event.EventMessage.Type {
		return chat.Message{}, false
	}
	content := evt.Content.AsMessage()
	if content.MsgType != event.MsgText || content.Body == "" {
		return chat.Message{}, false
	}
	return chat.Message{
		ID:       string(evt.ID),
		RoomID:   string(evt.RoomID),
		SenderID: string(evt.Sender),
		Body:     content.Body,
		Received: time.UnixMilli(evt.Timestamp),
	}, true
}

// inviteFor reports the room of a membership invite addressed to self.
func inviteFor(evt *event.Event, self id.UserID) (string, bool) {
	if evt == nil || evt.Type.Type != event.StateMember.Type || evt.StateKey == nil {
		return "", false
	}
	if id.UserID(evt.GetStateKey()) != self {
		return "", false
	}
	if evt.Content.AsMember().Membership != event.MembershipInvite {
		return "", false
	}
	return string(evt.RoomID), true
}
