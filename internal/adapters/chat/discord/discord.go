// Package discord is the chat gateway for Discord bots.
package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/okian/wiglebot/internal/adapters/chat"
	"github.com/okian/wiglebot/pkg/logger"
)

// maxMessageLen is Discord's limit on message content, in characters.
const maxMessageLen = 2000

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// Gateway holds one bot session. Rooms are channel ids.
type Gateway struct {
	token string
	log   logger.Logger

	mu      sync.RWMutex
	session *discordgo.Session
	self    string
}

var _ chat.Gateway = (*Gateway)(nil)

// New returns a gateway for the bot token.
func New(token string, opts ...Option) *Gateway {
	g := &Gateway{token: token, log: logger.Nop()}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) Name() string { return "discord" }

// Self is the bot's user id, known after the Ready event.
func (g *Gateway) Self() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.self
}

func (g *Gateway) setSelf(userID string) {
	g.mu.Lock()
	g.self = userID
	g.mu.Unlock()
}

func (g *Gateway) current() (*discordgo.Session, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return nil, chat.ErrNotConnected
	}
	return g.session, nil
}

// Run opens the websocket session and blocks until ctx is done.
func (g *Gateway) Run(ctx context.Context, h chat.Handler) error {
	s, err := discordgo.New("Bot " + g.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = intents

	opened := time.Now()
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			g.setSelf(r.User.ID)
			g.log.Info(ctx, "discord ready",
				logger.String("user", r.User.Username),
				logger.Int("guilds", len(r.Guilds)),
			)
		}
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if msg, ok := toMessage(m, g.Self()); ok {
			h.OnMessage(ctx, msg)
		}
	})
	s.AddHandler(func(_ *discordgo.Session, gc *discordgo.GuildCreate) {
		if guildID, ok := joinedGuild(gc, opened); ok {
			h.OnInvite(ctx, guildID)
		}
	})

	// Handlers may fire before Open returns; replies need the session by then.
	g.mu.Lock()
	g.session = s
	g.mu.Unlock()
	if err := s.Open(); err != nil {
		g.mu.Lock()
		g.session = nil
		g.mu.Unlock()
		return fmt.Errorf("discord open: %w", err)
	}

	<-ctx.Done()
	return g.Close()
}

// SendText posts text to a channel, split at line boundaries to fit the
// message limit.
func (g *Gateway) SendText(_ context.Context, roomID, text string) error {
	s, err := g.current()
	if err != nil {
		return err
	}
	for _, part := range splitMessage(text, maxMessageLen) {
		if _, err := s.ChannelMessageSend(roomID, part); err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
	}
	return nil
}

// SendTyping triggers the channel's typing indicator. Discord fixes its
// duration, so d is ignored.
func (g *Gateway) SendTyping(_ context.Context, roomID string, _ time.Duration) error {
	s, err := g.current()
	if err != nil {
		return err
	}
	if err := s.ChannelTyping(roomID); err != nil {
		return fmt.Errorf("discord typing: %w", err)
	}
	return nil
}

// JoinRoom is a no-op: a bot is added to a guild by its administrators.
func (g *Gateway) JoinRoom(context.Context, string) error { return nil }

// Close ends the session.
func (g *Gateway) Close() error {
	g.mu.Lock()
	s := g.session
	g.session = nil
	g.mu.Unlock()
	if s == nil {
		return nil
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("discord close: %w", err)
	}
	return nil
}

// toMessage maps a created message. Bot authors, including self, are
// skipped.
func toMessage(m *discordgo.MessageCreate, self string) (chat.Message, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return chat.Message{}, false
	}
	if m.Author.Bot || (self != "" && m.Author.ID == self) || strings.TrimSpace(m.Content) == "" {
		return chat.Message{}, false
	}
	return chat.Message{
		ID:       m.ID,
		RoomID:   m.ChannelID,
		SenderID: m.Author.ID,
		Body:     m.Content,
		Received: m.Timestamp,
	}, true
}

// joinedGuild reports guilds joined after the session opened. GuildCreate
// also fires for every existing guild on connect.
func joinedGuild(gc *discordgo.GuildCreate, opened time.Time) (string, bool) {
	if gc == nil || gc.Guild == nil || gc.JoinedAt.Before(opened) {
		return "", false
	}
	return gc.ID, true
}

// splitMessage breaks text into chunks of at most limit characters,
// preferring newline boundaries. Cuts never fall inside a UTF-8 sequence.
func splitMessage(text string, limit int) []string {
	var parts []string
	for utf8.RuneCountInString(text) > limit {
		end := runeOffset(text, limit)
		cut := strings.LastIndexByte(text[:end], '\n')
		if cut <= 0 {
			cut = end
		}
		parts = append(parts, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" || len(parts) == 0 {
		parts = append(parts, text)
	}
	return parts
}

// runeOffset is the byte offset just past the first n runes of s.
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
