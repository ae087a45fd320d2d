package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/wiglebot/internal/adapters/http/api"
	"github.com/okian/wiglebot/internal/adapters/wigle"
	service "github.com/okian/wiglebot/internal/app"
	"github.com/okian/wiglebot/internal/config"
	"github.com/okian/wiglebot/internal/router"
	"github.com/okian/wiglebot/pkg/logger"
	"github.com/okian/wiglebot/pkg/metrics"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Initialize logging with defaults until the config is known.
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Stdin, os.Stdout)
	stop()
	_ = logger.Sync()
	if err != nil {
		os.Stderr.WriteString("wiglebot: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// run wires the bot from the environment and blocks until ctx ends or the
// gateway stops. The console gateway uses in and out.
func run(ctx context.Context, in io.Reader, out io.Writer) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	logOpts := []logger.Option{logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel)}
	if cfg.Gateway == config.GatewayConsole {
		// Replies own stdout.
		logOpts = append(logOpts, logger.WithOutput(os.Stderr))
	}
	if err := logger.Init(logOpts...); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logger.Get()

	client := wigle.NewClient(
		wigle.WithAPIKey(cfg.WigleAPIKey),
		wigle.WithBaseURL(cfg.WigleBaseURL),
		wigle.WithTimeout(cfg.WigleTimeout()),
		wigle.WithLogger(log.Named("wigle")),
	)
	defer client.Close()

	gw, err := newGateway(cfg, log, in, out)
	if err != nil {
		return err
	}
	defer func() {
		if err := gw.Close(); err != nil {
			log.Warn(ctx, "gateway close failed", logger.Error(err))
		}
	}()

	r := router.New(client, gw,
		router.WithPrefix(cfg.CommandPrefix),
		router.WithSelf(gw.Self),
		router.WithTypingDuration(cfg.TypingTimeout()),
		router.WithLogger(log.Named("router")),
	)

	svc := service.New(gw, r,
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	log.Info(ctx, "wiglebot starting",
		logger.String("gateway", gw.Name()),
		logger.String("prefix", cfg.CommandPrefix),
		logger.Int("workers", cfg.WorkerCount),
	)

	// Any member returning ends the process: a gateway that stops (console EOF,
	// lost session) takes the ops server down with it.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		if err := svc.Run(gctx); err != nil {
			return fmt.Errorf("%s gateway: %w", gw.Name(), err)
		}
		return nil
	})

	g.Go(func() error {
		metrics.CollectSystem(gctx)
		return nil
	})

	if cfg.Addr != "" {
		srv := api.NewHTTPServer(cfg.Addr, svc)
		g.Go(func() error {
			log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%w: %w", api.ErrServe, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error(ctx, "server shutdown failed", logger.Error(err))
			}
			return nil
		})
	}

	err = g.Wait()
	log.Info(ctx, "shutting down")
	return err
}
