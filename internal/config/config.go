// Package config defines the bot configuration and its loader.
//
// Keys are flat (e.g. wigle_api_key) so the original JSON config file, a YAML
// file and WIGLEBOT_* environment variables all map onto the same struct.
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Gateway names accepted by the gateway key.
const (
	GatewayMatrix   = "matrix"
	GatewayDiscord  = "discord"
	GatewayTelegram = "telegram"
	GatewayConsole  = "console"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`
	// Addr is the ops HTTP listen address; empty disables the server.
	Addr string `koanf:"addr"`

	// Gateway selects the chat platform.
	Gateway string `koanf:"gateway"`
	// CommandPrefix is the single character that marks a command.
	CommandPrefix string `koanf:"command_prefix"`
	// TypingTimeoutMS is how long the typing indicator is shown.
	TypingTimeoutMS int `koanf:"typing_timeout_ms"`

	// WorkerCount sets the number of command workers.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds the in-memory message queue.
	QueueSize int `koanf:"queue_size"`
	// DedupeSize is how many recent chat event ids are remembered; 0 disables.
	DedupeSize int `koanf:"dedupe_size"`

	MatrixHomeserver string `koanf:"matrix_homeserver"`
	MatrixUserID     string `koanf:"matrix_user_id"`
	MatrixPassword   string `koanf:"matrix_password"`

	DiscordToken  string `koanf:"discord_token"`
	TelegramToken string `koanf:"telegram_token"`

	WigleAPIKey         string `koanf:"wigle_api_key"`
	WigleBaseURL        string `koanf:"wigle_base_url"`
	WigleTimeoutSeconds int    `koanf:"wigle_timeout_seconds"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		Gateway:             GatewayMatrix,
		CommandPrefix:       "!",
		TypingTimeoutMS:     3000,
		WorkerCount:         16,
		QueueSize:           1_000,
		DedupeSize:          10_000,
		WigleBaseURL:        "https://api.wigle.net/api/v2/",
		WigleTimeoutSeconds: 60,
	}
}

// TypingTimeout returns TypingTimeoutMS as a duration.
func (c *Config) TypingTimeout() time.Duration {
	return time.Duration(c.TypingTimeoutMS) * time.Millisecond
}

// WigleTimeout returns WigleTimeoutSeconds as a duration.
func (c *Config) WigleTimeout() time.Duration {
	return time.Duration(c.WigleTimeoutSeconds) * time.Second
}

// Validate checks that the selected gateway has its credentials and that
// numeric settings are usable. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if c.WigleAPIKey == "" {
		add("wigle_api_key must not be empty")
	}
	if c.WigleBaseURL == "" {
		add("wigle_base_url must not be empty")
	}
	if utf8.RuneCountInString(c.CommandPrefix) != 1 {
		add("command_prefix must be a single character, got %q", c.CommandPrefix)
	}
	if c.WorkerCount <= 0 {
		add("worker_count must be positive")
	}
	if c.QueueSize <= 0 {
		add("queue_size must be positive")
	}
	if c.DedupeSize < 0 {
		add("dedupe_size must not be negative")
	}
	if c.TypingTimeoutMS <= 0 {
		add("typing_timeout_ms must be positive")
	}
	if c.WigleTimeoutSeconds <= 0 {
		add("wigle_timeout_seconds must be positive")
	}

	switch strings.ToLower(c.Gateway) {
	case GatewayMatrix:
		if c.MatrixHomeserver == "" || c.MatrixUserID == "" || c.MatrixPassword == "" {
			add("matrix gateway needs matrix_homeserver, matrix_user_id and matrix_password")
		}
	case GatewayDiscord:
		if c.DiscordToken == "" {
			add("discord gateway needs discord_token")
		}
	case GatewayTelegram:
		if c.TelegramToken == "" {
			add("telegram gateway needs telegram_token")
		}
	case GatewayConsole:
	default:
		add("unknown gateway %q", c.Gateway)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
