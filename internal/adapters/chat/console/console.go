// Package console is a chat gateway over a line-oriented reader and writer,
// used for local runs.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/wiglebot/internal/adapters/chat"
	"github.com/okian/wiglebot/pkg/logger"
)

// Fixed identities for the single console room.
const (
	RoomID   = "console"
	SenderID = "console-user"
	SelfID   = "console-bot"
)

// Gateway reads one message per input line and writes replies to out.
type Gateway struct {
	in  io.Reader
	out io.Writer

	// typing, when set, receives a notice for every typing indicator.
	typing io.Writer
	newID  func() string
	now    func() time.Time
	log    logger.Logger

	mu sync.Mutex // serializes writes
}

var _ chat.Gateway = (*Gateway)(nil)

// New returns a gateway reading commands from in and writing replies to out.
func New(in io.Reader, out io.Writer, opts ...Option) *Gateway {
	g := &Gateway{
		in:    in,
		out:   out,
		newID: uuid.NewString,
		now:   time.Now,
		log:   logger.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) Name() string { return "console" }

func (g *Gateway) Self() string { return SelfID }

// SendText writes text followed by a newline.
func (g *Gateway) SendText(_ context.Context, _ string, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := io.WriteString(g.out, strings.TrimRight(text, "\n")+"\n"); err != nil {
		return fmt.Errorf("console write: %w", err)
	}
	return nil
}

// SendTyping writes a notice to the typing writer, if configured.
func (g *Gateway) SendTyping(_ context.Context, _ string, d time.Duration) error {
	if g.typing == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := fmt.Fprintf(g.typing, "... typing (%s)\n", d); err != nil {
		return fmt.Errorf("console write: %w", err)
	}
	return nil
}

// JoinRoom is a no-op; the console has a single room.
func (g *Gateway) JoinRoom(context.Context, string) error { return nil }

// Run delivers each non-blank input line to h until input ends or ctx is
// done. End of input is not an error.
func (g *Gateway) Run(ctx context.Context, h chat.Handler) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(g.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					if err != nil {
						return fmt.Errorf("console read: %w", err)
					}
				default:
				}
				g.log.Debug(ctx, "console input closed")
				return nil
			}
			if msg, ok := g.toMessage(line); ok {
				h.OnMessage(ctx, msg)
			}
		}
	}
}

func (g *Gateway) toMessage(line string) (chat.Message, bool) {
	// Only trailing whitespace goes; a leading space keeps a line from
	// reading as a command, as on the other platforms.
	body := strings.TrimRight(line, " \t\r")
	if strings.TrimSpace(body) == "" {
		return chat.Message{}, false
	}
	return chat.Message{
		ID:       g.newID(),
		RoomID:   RoomID,
		SenderID: SenderID,
		Body:     body,
		Received: g.now(),
	}, true
}

func (g *Gateway) Close() error { return nil }
