package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/okian/wiglebot/internal/adapters/chat"
	"github.com/okian/wiglebot/internal/adapters/chat/console"
	"github.com/okian/wiglebot/internal/adapters/wigle"
	"github.com/okian/wiglebot/internal/router"
	"github.com/okian/wiglebot/pkg/logger"
)

// ErrMissingAPIKey is returned when no WiGLE API key is configured.
var ErrMissingAPIKey = errors.New("missing WiGLE API key")

// Config holds the query tool settings.
type Config struct {
	APIKey  string
	BaseURL string
	Prefix  string
	// Command, when set, is answered alone and input is not read.
	Command string
	Timeout time.Duration
}

// Run answers commands one at a time, in input order, writing replies to out.
func Run(ctx context.Context, cfg Config, in io.Reader, out io.Writer) error {
	if cfg.APIKey == "" {
		return ErrMissingAPIKey
	}
	if cfg.Command != "" {
		in = strings.NewReader(cfg.Command + "\n")
	}

	log := logger.Get()
	client := wigle.NewClient(
		wigle.WithAPIKey(cfg.APIKey),
		wigle.WithBaseURL(cfg.BaseURL),
		wigle.WithTimeout(cfg.Timeout),
		wigle.WithLogger(log.Named("wigle")),
	)
	defer client.Close()

	gw := console.New(in, out, console.WithLogger(log.Named("console")))
	r := router.New(client, gw,
		router.WithPrefix(cfg.Prefix),
		router.WithLogger(log.Named("router")),
	)

	var sendErr error
	err := gw.Run(ctx, chat.HandlerFuncs{
		Message: func(ctx context.Context, msg chat.Message) {
			if err := r.Handle(ctx, msg); err != nil && sendErr == nil {
				sendErr = err
			}
		},
	})
	if err != nil {
		return err
	}
	return sendErr
}
