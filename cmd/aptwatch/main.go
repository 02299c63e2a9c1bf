// Aptwatch watches rental listing sites and emails subscribers about new
// apartments matching their criteria.
//
// It serves the manual trigger API and, unless a temporal worker does it,
// checks every active source on an interval.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	"go.temporal.io/sdk/client"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/aptwatch/internal/api"
	"github.com/jdholdren/aptwatch/internal/app"
	"github.com/jdholdren/aptwatch/internal/logger"
	"github.com/jdholdren/aptwatch/internal/schedule"
	"github.com/jdholdren/aptwatch/internal/worker"
)

type config struct {
	app.Config

	Port          int           `env:"PORT, default=4444"`
	CorsHeader    string        `env:"CORS_HEADER"`
	CheckInterval time.Duration `env:"CHECK_INTERVAL, default=300s"`

	// When set, checks are handed to the temporal worker and the in-process
	// scheduler stays off.
	TemporalHostPort string `env:"TEMPORAL_HOST_PORT"`
}

func main() {
	ctx := context.Background()

	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat, slog.LevelInfo))

	// Start the application
	if err := start(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func start(ctx context.Context, cfg config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dbx, err := app.OpenDB(ctx, cfg.BaseConfig)
	if err != nil {
		return err
	}
	defer dbx.Close()

	p, err := app.NewPipeline(ctx, cfg.Config, dbx)
	if err != nil {
		return fmt.Errorf("error building pipeline: %s", err)
	}
	defer p.Close()

	var checker api.Checker = p.Runner
	if cfg.TemporalHostPort != "" {
		c, err := client.Dial(client.Options{
			HostPort: cfg.TemporalHostPort,
			Logger:   slog.Default(),
		})
		if err != nil {
			return fmt.Errorf("unable to create temporal client: %s", err)
		}
		defer c.Close()

		checker = worker.NewClient(c)
	}

	s := api.NewServer(api.ServerConfig{
		Port:       cfg.Port,
		CorsHeader: cfg.CorsHeader,
	}, p.Repo, checker, p.Dispatcher)

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	g.Add(func() error {
		slog.Info("listening", "port", cfg.Port)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	}, func(error) {
		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	})

	if cfg.TemporalHostPort == "" {
		schedCtx, schedCancel := context.WithCancel(ctx)
		sched := schedule.New(p.Runner, cfg.CheckInterval)
		g.Add(func() error {
			return sched.Run(schedCtx)
		}, func(error) {
			schedCancel()
		})
	}

	var sigErr run.SignalError
	if err := g.Run(); err != nil && !errors.As(err, &sigErr) {
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}
