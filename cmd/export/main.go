// Export writes a source's listings, newest first, to stdout or a file as CSV.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
	"github.com/jdholdren/aptwatch/internal/app"
	"github.com/jdholdren/aptwatch/internal/database"
	"github.com/jdholdren/aptwatch/internal/export"
)

func main() {
	ctx := context.Background()
	var (
		sourceID = flag.String("source", "", "id of the source to export")
		out      = flag.String("out", "", "file to write; stdout when empty")
		limit    = flag.Uint64("limit", 0, "maximum listings to export; all when zero")
	)
	flag.Parse()
	if *sourceID == "" {
		log.Fatal("-source is required")
	}

	_ = godotenv.Load()

	var cfg app.BaseConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	dbx, err := app.OpenDB(ctx, cfg)
	if err != nil {
		log.Fatalf("error opening database: %s", err)
	}
	defer dbx.Close()

	repo := database.New(dbx)
	if _, err := repo.Source(ctx, *sourceID); err != nil {
		log.Fatalf("error fetching source: %s", err)
	}
	listings, err := repo.SourceListings(ctx, *sourceID, aptwatch.ListingsArgs{Limit: *limit})
	if err != nil {
		log.Fatalf("error fetching listings: %s", err)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("error creating output file: %s", err)
		}
		defer f.Close()
		w = f
	}

	if err := export.WriteListings(w, listings); err != nil {
		log.Fatalf("error exporting: %s", err)
	}
}
