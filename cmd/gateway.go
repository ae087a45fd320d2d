package main

import (
	"fmt"
	"io"

	"github.com/okian/wiglebot/internal/adapters/chat"
	"github.com/okian/wiglebot/internal/adapters/chat/console"
	"github.com/okian/wiglebot/internal/adapters/chat/discord"
	"github.com/okian/wiglebot/internal/adapters/chat/matrix"
	"github.com/okian/wiglebot/internal/adapters/chat/telegram"
	"github.com/okian/wiglebot/internal/config"
	"github.com/okian/wiglebot/pkg/logger"
)

// newGateway builds the chat platform named by cfg.Gateway. The console
// gateway reads in and writes replies to out.
func newGateway(cfg *config.Config, log logger.Logger, in io.Reader, out io.Writer) (chat.Gateway, error) {
	switch cfg.Gateway {
	case config.GatewayMatrix:
		return matrix.New(cfg.MatrixHomeserver, cfg.MatrixUserID, cfg.MatrixPassword,
			matrix.WithLogger(log.Named("matrix"))), nil
	case config.GatewayDiscord:
		return discord.New(cfg.DiscordToken, discord.WithLogger(log.Named("discord"))), nil
	case config.GatewayTelegram:
		return telegram.New(cfg.TelegramToken, telegram.WithLogger(log.Named("telegram"))), nil
	case config.GatewayConsole:
		return console.New(in, out, console.WithLogger(log.Named("console"))), nil
	default:
		return nil, fmt.Errorf("%w: unknown gateway %q", config.ErrInvalidConfig, cfg.Gateway)
	}
}
