// Package chat defines the contract between the bot and a chat platform.
//
// A Gateway delivers inbound room events to a Handler and exposes the few
// outbound operations the bot needs.
package chat

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected is returned by outbound operations before Run has
// established a session.
var ErrNotConnected = errors.New("chat: gateway not connected")

// Message is one inbound text message.
type Message struct {
	// ID is the platform event id, used to drop redeliveries.
	ID       string
	RoomID   string
	SenderID string
	Body     string
	Received time.Time
}

// Sender is the outbound half of a gateway.
type Sender interface {
	SendText(ctx context.Context, roomID, text string) error
	SendTyping(ctx context.Context, roomID string, d time.Duration) error
}

// Handler receives inbound events. Implementations must not block for long;
// Run calls them from the gateway's receive loop.
type Handler interface {
	OnMessage(ctx context.Context, msg Message)
	OnInvite(ctx context.Context, roomID string)
}

// Gateway is a connected chat platform.
type Gateway interface {
	Sender
	// Name identifies the platform in logs and metrics.
	Name() string
	// Self is the bot's own sender id, empty until known.
	Self() string
	// JoinRoom accepts an invitation to roomID.
	JoinRoom(ctx context.Context, roomID string) error
	// Run connects and delivers events to h until ctx is cancelled or the
	// session fails.
	Run(ctx context.Context, h Handler) error
	// Close releases the session.
	Close() error
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are no-ops.
type HandlerFuncs struct {
	Message func(ctx context.Context, msg Message)
	Invite  func(ctx context.Context, roomID string)
}

func (h HandlerFuncs) OnMessage(ctx context.Context, msg Message) {
	if h.Message != nil {
		h.Message(ctx, msg)
	}
}

func (h HandlerFuncs) OnInvite(ctx context.Context, roomID string) {
	if h.Invite != nil {
		h.Invite(ctx, roomID)
	}
}
