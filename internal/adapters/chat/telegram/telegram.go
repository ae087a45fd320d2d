// Package telegram is the chat gateway for Telegram bots using long
// polling. Rooms are chat ids.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/okian/wiglebot/internal/adapters/chat"
	"github.com/okian/wiglebot/pkg/logger"
)

const pollTimeoutSeconds = 60

// Gateway holds one bot connection.
type Gateway struct {
	token    string
	endpoint string
	client   *http.Client
	log      logger.Logger

	mu       sync.RWMutex
	bot      *tgbotapi.BotAPI
	stopOnce sync.Once
}

var _ chat.Gateway = (*Gateway)(nil)

// New returns a gateway for the bot token.
func New(token string, opts ...Option) *Gateway {
	g := &Gateway{
		token:    token,
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{Timeout: (pollTimeoutSeconds + 10) * time.Second},
		log:      logger.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) Name() string { return "telegram" }

// Self is the bot's user id once connected.
func (g *Gateway) Self() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.bot == nil {
		return ""
	}
	return strconv.FormatInt(g.bot.Self.ID, 10)
}

func (g *Gateway) current() (*tgbotapi.BotAPI, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.bot == nil {
		return nil, chat.ErrNotConnected
	}
	return g.bot, nil
}

// connect authenticates the token with getMe.
func (g *Gateway) connect(ctx context.Context) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(g.token, g.endpoint, g.client)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	g.log.Info(ctx, "telegram bot authorized",
		logger.String("username", bot.Self.UserName),
		logger.String("id", strconv.FormatInt(bot.Self.ID, 10)),
	)
	g.mu.Lock()
	g.bot = bot
	g.mu.Unlock()
	return bot, nil
}

// Run connects and long-polls for updates until ctx is done.
func (g *Gateway) Run(ctx context.Context, h chat.Handler) error {
	bot, err := g.connect(ctx)
	if err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	u.AllowedUpdates = []string{"message", "my_chat_member"}
	updates := bot.GetUpdatesChan(u)
	defer g.stop(bot)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if msg, ok := toMessage(update); ok {
				h.OnMessage(ctx, msg)
			}
			if chatID, ok := addedTo(update, bot.Self.ID); ok {
				h.OnInvite(ctx, chatID)
			}
		}
	}
}

func (g *Gateway) stop(bot *tgbotapi.BotAPI) {
	g.stopOnce.Do(bot.StopReceivingUpdates)
}

// SendText posts a plain message to the chat.
func (g *Gateway) SendText(_ context.Context, roomID, text string) error {
	bot, err := g.current()
	if err != nil {
		return err
	}
	chatID, err := parseChatID(roomID)
	if err != nil {
		return err
	}
	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// SendTyping sends the typing chat action. Telegram fixes its duration, so
// d is ignored.
func (g *Gateway) SendTyping(_ context.Context, roomID string, _ time.Duration) error {
	bot, err := g.current()
	if err != nil {
		return err
	}
	chatID, err := parseChatID(roomID)
	if err != nil {
		return err
	}
	if _, err := bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("telegram typing: %w", err)
	}
	return nil
}

// JoinRoom is a no-op: bots are added to chats by members.
func (g *Gateway) JoinRoom(context.Context, string) error { return nil }

// Close stops polling.
func (g *Gateway) Close() error {
	if bot, err := g.current(); err == nil {
		g.stop(bot)
	}
	return nil
}

func parseChatID(roomID string) (int64, error) {
	id, err := strconv.ParseInt(roomID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram chat id %q: %w", roomID, err)
	}
	return id, nil
}

// toMessage maps a text message. Message ids are unique per chat only, so
// the event id carries both.
func toMessage(u tgbotapi.Update) (chat.Message, bool) {
	m := u.Message
	if m == nil || m.Chat == nil || strings.TrimSpace(m.Text) == "" {
		return chat.Message{}, false
	}
	var sender string
	switch {
	case m.From != nil:
		sender = strconv.FormatInt(m.From.ID, 10)
	case m.SenderChat != nil:
		sender = strconv.FormatInt(m.SenderChat.ID, 10)
	}
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	return chat.Message{
		ID:       chatID + ":" + strconv.Itoa(m.MessageID),
		RoomID:   chatID,
		SenderID: sender,
		Body:     m.Text,
		Received: time.Unix(int64(m.Date), 0),
	}, true
}

// addedTo reports the chat when the bot's own membership changes from
// absent to present.
func addedTo(u tgbotapi.Update, self int64) (string, bool) {
	cm := u.MyChatMember
	if cm == nil || cm.NewChatMember.User == nil || cm.NewChatMember.User.ID != self {
		return "", false
	}
	wasOut := cm.OldChatMember.HasLeft() || cm.OldChatMember.WasKicked()
	isIn := cm.NewChatMember.Status == "member" || cm.NewChatMember.IsAdministrator()
	if !wasOut || !isIn {
		return "", false
	}
	return strconv.FormatInt(cm.Chat.ID, 10), true
}
