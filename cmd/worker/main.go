// Worker runs the pipeline as temporal workflows, checking every active source
// on the configured interval.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/client"
	_ "golang.org/x/crypto/x509roots/fallback"
	"golang.org/x/sync/errgroup"

	"github.com/jdholdren/aptwatch/internal/app"
	"github.com/jdholdren/aptwatch/internal/logger"
	"github.com/jdholdren/aptwatch/internal/worker"
)

type config struct {
	app.Config

	TemporalHostPort  string        `env:"TEMPORAL_HOST_PORT, required"`
	TemporalNamespace string        `env:"TEMPORAL_NAMESPACE, default=default"`
	TemporalRetention time.Duration `env:"TEMPORAL_RETENTION, default=72h"`
	CheckInterval     time.Duration `env:"CHECK_INTERVAL, default=300s"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LoggerFormat, slog.LevelInfo))

	if err := start(ctx, cfg); err != nil {
		slog.Error("error running worker", "error", err)
		os.Exit(1)
	}
}

func start(ctx context.Context, cfg config) error {
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

	// Retry until temporal is ready
	var c client.Client
	if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
		cli, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalHostPort,
			Namespace: cfg.TemporalNamespace,
			Logger:    slog.Default(),
		})
		if err != nil {
			slog.WarnContext(ctx, "temporal not ready", "err", err)
			return retry.RetryableError(err)
		}
		c = cli

		return nil
	}); err != nil {
		return fmt.Errorf("unable to create temporal client: %s", err)
	}
	defer c.Close()

	if err := worker.EnsureNamespace(ctx, c.WorkflowService(), cfg.TemporalNamespace, cfg.TemporalRetention); err != nil {
		return err
	}

	w, err := worker.NewWorker(ctx, p.Repo, p.Runner, c, cfg.CheckInterval)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	stop := make(chan any)
	g.Go(func() error {
		// Block from shutting down until the group is canceled
		<-gCtx.Done()
		close(stop)

		return nil
	})
	g.Go(func() error {
		if err := w.Run(stop); err != nil {
			return fmt.Errorf("error running worker: %s", err)
		}

		return nil
	})

	return g.Wait()
}
