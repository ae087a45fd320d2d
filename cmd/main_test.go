package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/wiglebot/internal/adapters/wigle/wigletest"
	"github.com/okian/wiglebot/internal/config"
	"github.com/okian/wiglebot/pkg/logger"
)

func setEnv(kv map[string]string) func() {
	for k, v := range kv {
		_ = os.Setenv(k, v)
	}
	return func() {
		for k := range kv {
			_ = os.Unsetenv(k)
		}
	}
}

func TestNewGateway(t *testing.T) {
	convey.Convey("Given a configuration for each gateway", t, func() {
		log := logger.Nop()
		cfg := config.New()
		cfg.MatrixHomeserver = "https://matrix.example.org"
		cfg.MatrixUserID = "@wigle:example.org"
		cfg.MatrixPassword = "secret"
		cfg.DiscordToken = "discord-token"
		cfg.TelegramToken = "123:telegram"

		for _, name := range []string{
			config.GatewayMatrix,
			config.GatewayDiscord,
			config.GatewayTelegram,
			config.GatewayConsole,
		} {
			cfg.Gateway = name
			gw, err := newGateway(cfg, log, strings.NewReader(""), &bytes.Buffer{})

			convey.So(err, convey.ShouldBeNil)
			convey.So(gw.Name(), convey.ShouldEqual, name)
			convey.So(gw.Close(), convey.ShouldBeNil)
		}

		convey.Convey("When the gateway is unknown", func() {
			cfg.Gateway = "irc"
			gw, err := newGateway(cfg, log, nil, nil)

			convey.Convey("Then construction fails with ErrInvalidConfig", func() {
				convey.So(gw, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given the console gateway configured from the environment", t, func() {
		srv := wigletest.NewServer()
		defer srv.Close()
		srv.JSON(wigletest.PathUser, http.StatusOK, wigletest.UserBody("alice"))

		restore := setEnv(map[string]string{
			"WIGLEBOT_GATEWAY":        "console",
			"WIGLEBOT_WIGLE_API_KEY":  "QUlEOnRva2Vu",
			"WIGLEBOT_WIGLE_BASE_URL": srv.BaseURL(),
			"WIGLEBOT_ADDR":           "127.0.0.1:0",
			"WIGLEBOT_WORKER_COUNT":   "2",
		})
		defer restore()

		convey.Convey("When stdin carries commands and then ends", func() {
			var out bytes.Buffer
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			err := run(ctx, strings.NewReader("!help\nhello there\n!user alice\n"), &out)

			convey.Convey("Then every command is answered before run returns", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "**Command List**")
				convey.So(out.String(), convey.ShouldContainSubstring, "**WiGLE User Stats for 'alice'**")
				convey.So(out.String(), convey.ShouldNotContainSubstring, "hello there")
				convey.So(len(srv.Requests()), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the context is cancelled while waiting for input", func() {
			ctx, cancel := context.WithCancel(context.Background())
			pr, pw := io.Pipe()
			defer func() { _ = pw.Close() }()

			done := make(chan error, 1)
			go func() { done <- run(ctx, pr, &bytes.Buffer{}) }()
			time.Sleep(100 * time.Millisecond)
			cancel()

			convey.Convey("Then run returns", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(5 * time.Second):
					convey.So("run did not return", convey.ShouldBeEmpty)
				}
			})
		})
	})

	convey.Convey("Given an invalid configuration", t, func() {
		restore := setEnv(map[string]string{
			"WIGLEBOT_GATEWAY": "console",
		})
		defer restore()

		convey.Convey("When run starts", func() {
			err := run(context.Background(), strings.NewReader(""), &bytes.Buffer{})

			convey.Convey("Then it fails before connecting", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
