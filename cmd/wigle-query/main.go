package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/wiglebot/pkg/logger"
)

// Default configuration constants.
const (
	defaultBaseURL = "https://api.wigle.net/api/v2/"
	defaultPrefix  = "!"
	defaultTimeout = 60 * time.Second
)

func main() {
	var (
		apiKey  = flag.String("key", os.Getenv("WIGLEBOT_WIGLE_API_KEY"), "WiGLE API key (default $WIGLEBOT_WIGLE_API_KEY)")
		baseURL = flag.String("url", defaultBaseURL, "WiGLE API base URL")
		prefix  = flag.String("prefix", defaultPrefix, "Command prefix")
		command = flag.String("command", "", "Run a single command and exit, e.g. \"!user alice\"")
		timeout = flag.Duration("timeout", defaultTimeout, "WiGLE request timeout")
		verbose = flag.Bool("verbose", false, "Log requests to stderr")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	level := "error"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(logger.WithOutput(os.Stderr), logger.WithLevel(level)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := Config{
		APIKey:  *apiKey,
		BaseURL: *baseURL,
		Prefix:  *prefix,
		Command: *command,
		Timeout: *timeout,
	}
	if err := Run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		os.Stderr.WriteString("wigle-query: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func showHelp() {
	os.Stdout.WriteString(`WiGLE Query Tool
================

Answers bot commands from the terminal without a chat platform.

Usage:
  go run ./cmd/wigle-query [options]

Options:
  -key string
        WiGLE API key (default $WIGLEBOT_WIGLE_API_KEY)
  -url string
        WiGLE API base URL (default "https://api.wigle.net/api/v2/")
  -prefix string
        Command prefix (default "!")
  -command string
        Run a single command and exit
  -timeout duration
        WiGLE request timeout (default 1m0s)
  -verbose
        Log requests to stderr
  -help
        Show this help message

Examples:
  # One command
  go run ./cmd/wigle-query -command "!user alice"

  # Interactive, one command per line until EOF
  go run ./cmd/wigle-query
`)
}
