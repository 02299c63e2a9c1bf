// Seed creates the sources to watch, and optionally subscriptions on them.
//
// Without a file it creates Eindhoven and Rotterdam. Sources that already
// exist are skipped, so it is safe to run on every deploy.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/jdholdren/aptwatch/internal/app"
	"github.com/jdholdren/aptwatch/internal/database"
	"github.com/jdholdren/aptwatch/internal/logger"
	"github.com/jdholdren/aptwatch/internal/seed"
)

func main() {
	ctx := context.Background()
	file := flag.String("file", "", "YAML seed file; the built-in sources are used when empty")
	flag.Parse()

	_ = godotenv.Load()

	var cfg app.BaseConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat, slog.LevelInfo))

	f := seed.Defaults()
	if *file != "" {
		var err error
		if f, err = seed.LoadFile(*file); err != nil {
			log.Fatalf("error loading seed file: %s", err)
		}
	}

	dbx, err := app.OpenDB(ctx, cfg)
	if err != nil {
		log.Fatalf("error opening database: %s", err)
	}
	defer dbx.Close()

	report, err := seed.Apply(ctx, database.New(dbx), f)
	if err != nil {
		slog.Error("error seeding", "error", err)
		os.Exit(1)
	}
	slog.Info("seeded",
		"sources_created", report.SourcesCreated,
		"sources_skipped", report.SourcesSkipped,
		"subscriptions_created", report.SubscriptionsCreated,
	)
}
