// Package chattest provides an in-memory chat gateway for tests.
package chattest

import (
	"context"
	"sync"
	"time"

	"github.com/okian/wiglebot/internal/adapters/chat"
)

// Op kinds recorded by Gateway.
const (
	OpText   = "text"
	OpTyping = "typing"
	OpJoin   = "join"
)

// Op is one outbound call.
type Op struct {
	Kind   string
	RoomID string
	Text   string
	Typing time.Duration
}

// Gateway records every outbound call and lets tests inject inbound events
// once Run is active.
type Gateway struct {
	SelfID string
	// Fail, when set, is returned by the named operation (an Op kind).
	Fail map[string]error

	mu      sync.Mutex
	ops     []Op
	handler chat.Handler
	ready   chan struct{}
	once    sync.Once
	sent    chan Op
}

var _ chat.Gateway = (*Gateway)(nil)

// New returns a Gateway whose own id is self.
func New(self string) *Gateway {
	return &Gateway{
		SelfID: self,
		Fail:   map[string]error{},
		ready:  make(chan struct{}),
		sent:   make(chan Op, 1024),
	}
}

func (g *Gateway) Name() string { return "test" }

func (g *Gateway) Self() string { return g.SelfID }

func (g *Gateway) record(op Op) error {
	g.mu.Lock()
	g.ops = append(g.ops, op)
	err := g.Fail[op.Kind]
	g.mu.Unlock()
	if op.Kind == OpText {
		select {
		case g.sent <- op:
		default:
		}
	}
	return err
}

func (g *Gateway) SendText(_ context.Context, roomID, text string) error {
	return g.record(Op{Kind: OpText, RoomID: roomID, Text: text})
}

func (g *Gateway) SendTyping(_ context.Context, roomID string, d time.Duration) error {
	return g.record(Op{Kind: OpTyping, RoomID: roomID, Typing: d})
}

func (g *Gateway) JoinRoom(_ context.Context, roomID string) error {
	return g.record(Op{Kind: OpJoin, RoomID: roomID})
}

// Run stores h and blocks until ctx is done.
func (g *Gateway) Run(ctx context.Context, h chat.Handler) error {
	g.mu.Lock()
	g.handler = h
	g.mu.Unlock()
	g.once.Do(func() { close(g.ready) })
	<-ctx.Done()
	return nil
}

func (g *Gateway) Close() error { return nil }

// Ready is closed once Run has received its handler.
func (g *Gateway) Ready() <-chan struct{} { return g.ready }

// Deliver passes msg to the running handler.
func (g *Gateway) Deliver(ctx context.Context, msg chat.Message) {
	g.mu.Lock()
	h := g.handler
	g.mu.Unlock()
	h.OnMessage(ctx, msg)
}

// Invite passes an invitation to the running handler.
func (g *Gateway) Invite(ctx context.Context, roomID string) {
	g.mu.Lock()
	h := g.handler
	g.mu.Unlock()
	h.OnInvite(ctx, roomID)
}

// Ops returns a copy of every outbound call so far.
func (g *Gateway) Ops() []Op {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Op, len(g.ops))
	copy(out, g.ops)
	return out
}

// Texts returns the bodies of every SendText call so far.
func (g *Gateway) Texts() []string {
	var out []string
	for _, op := range g.Ops() {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}

// WaitText waits for the next SendText call.
func (g *Gateway) WaitText(timeout time.Duration) (Op, bool) {
	select {
	case op := <-g.sent:
		return op, true
	case <-time.After(timeout):
		return Op{}, false
	}
}
