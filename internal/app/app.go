// Package app wires the pipeline together from the process configuration. It
// is shared by every binary that runs or inspects the pipeline.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite"

	"github.com/jdholdren/aptwatch/internal/crawl"
	"github.com/jdholdren/aptwatch/internal/database"
	"github.com/jdholdren/aptwatch/internal/dedup"
	"github.com/jdholdren/aptwatch/internal/fetch"
	"github.com/jdholdren/aptwatch/internal/lock"
	"github.com/jdholdren/aptwatch/internal/match"
	"github.com/jdholdren/aptwatch/internal/migrations"
	"github.com/jdholdren/aptwatch/internal/notify"
)

// BaseConfig is the configuration every binary needs.
type BaseConfig struct {
	Database string `env:"DATABASE, default=aptwatch.db"`
	// Either sqlite or pgx
	DatabaseDriver string `env:"DATABASE_DRIVER, default=sqlite"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

// Config is everything needed to build a runner.
type Config struct {
	BaseConfig

	MaxPages     int           `env:"MAX_PAGES, default=10"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT, default=10s"`
	// Page fetches per second, per layout
	FetchRate    float64 `env:"FETCH_RATE, default=0.2"`
	BrowserFetch bool    `env:"BROWSER_FETCH, default=true"`
	LayoutsFile  string  `env:"LAYOUTS_FILE"`

	RedisURL string `env:"REDIS_URL"`

	SMTPHost          string        `env:"SMTP_HOST, default=smtp.gmail.com"`
	SMTPPort          int           `env:"SMTP_PORT, default=587"`
	SMTPUsername      string        `env:"SMTP_USERNAME"`
	SMTPPassword      string        `env:"SMTP_PASSWORD"`
	SMTPFrom          string        `env:"SMTP_FROM"`
	SMTPTimeout       time.Duration `env:"SMTP_TIMEOUT, default=30s"`
	MarkOnSendFailure bool          `env:"MARK_ON_SEND_FAILURE, default=true"`
}

// OpenDB connects to the configured database, waits for it to answer and
// brings its schema up to date.
func OpenDB(ctx context.Context, cfg BaseConfig) (*sqlx.DB, error) {
	dsn := cfg.Database
	if cfg.DatabaseDriver == "sqlite" {
		dsn = fmt.Sprintf("%s?_txlock=immediate&_journal_mode=WAL&_busy_timeout=5000", cfg.Database)
	}

	dbx, err := sqlx.Open(cfg.DatabaseDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %s", err)
	}

	// Retry until the database is ready
	b := retry.WithMaxRetries(5, retry.NewFibonacci(time.Second))
	if err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := dbx.PingContext(ctx); err != nil {
			slog.WarnContext(ctx, "database not ready", "err", err)
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("error pinging database: %s", err)
	}

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("error running migrations: %s", err)
	}

	return dbx, nil
}

// Pipeline is a built runner and the pieces callers besides the runner use.
type Pipeline struct {
	Repo       database.Repo
	Runner     *crawl.Runner
	Dispatcher *notify.Dispatcher

	closers []func()
}

// Close releases browsers and connections held by the pipeline.
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// NewPipeline builds the runner over an open database. Its browsers live until
// ctx is done or Close is called.
func NewPipeline(ctx context.Context, cfg Config, dbx *sqlx.DB) (*Pipeline, error) {
	p := &Pipeline{Repo: database.New(dbx)}

	layouts := crawl.BuiltinLayouts()
	if cfg.LayoutsFile != "" {
		fromFile, err := crawl.LoadLayoutsFile(cfg.LayoutsFile)
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, fromFile...)
	}

	registry, err := crawl.NewRegistry(layouts, p.fetcherFunc(ctx, cfg))
	if err != nil {
		p.Close()
		return nil, err
	}

	locker, err := p.locker(ctx, cfg)
	if err != nil {
		p.Close()
		return nil, err
	}

	sender := notify.NewSMTP(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		Timeout:  cfg.SMTPTimeout,
	})
	if cfg.SMTPUsername == "" || cfg.SMTPPassword == "" {
		slog.WarnContext(ctx, "smtp credentials missing, notifications will fail")
	}

	p.Dispatcher = notify.NewDispatcher(sender, p.Repo, notify.DispatcherConfig{
		MarkOnFailure: cfg.MarkOnSendFailure,
	})
	p.Runner = crawl.NewRunner(crawl.Params{
		Repo:       p.Repo,
		Registry:   registry,
		Dedup:      dedup.NewStore(p.Repo, nil),
		Matcher:    match.NewEngine(p.Repo),
		Dispatcher: p.Dispatcher,
		Locker:     locker,
		MaxPages:   cfg.MaxPages,
	})

	return p, nil
}

// Browser layouts share one headless Chrome. With browser fetching turned
// off every layout is fetched over plain HTTP.
func (p *Pipeline) fetcherFunc(ctx context.Context, cfg Config) crawl.FetcherFunc {
	return func(l crawl.Layout) (fetch.Fetcher, error) {
		switch {
		case l.Fetcher == crawl.FetcherBrowser && cfg.BrowserFetch:
			f, err := fetch.NewBrowser(ctx, fetch.BrowserConfig{
				WaitSelector: l.Item,
				Timeout:      cfg.FetchTimeout,
				Rate:         cfg.FetchRate,
			})
			if err != nil {
				return nil, err
			}
			p.closers = append(p.closers, f.Close)
			return f, nil
		case l.Fetcher == crawl.FetcherBrowser, l.Fetcher == crawl.FetcherHTTP, l.Fetcher == "":
			return fetch.NewHTTP(fetch.HTTPConfig{
				Timeout: cfg.FetchTimeout,
				Rate:    cfg.FetchRate,
			}), nil
		default:
			return nil, fmt.Errorf("unknown fetcher %q", l.Fetcher)
		}
	}
}

func (p *Pipeline) locker(ctx context.Context, cfg Config) (lock.Locker, error) {
	if cfg.RedisURL == "" {
		return lock.NewLocal(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis url: %s", err)
	}
	rdb := redis.NewClient(opts)
	p.closers = append(p.closers, func() { rdb.Close() })

	b := retry.WithMaxRetries(5, retry.NewFibonacci(time.Second))
	if err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("error pinging redis: %s", err)
	}
	slog.InfoContext(ctx, "using redis run lock")

	return lock.NewRedis(rdb, 0), nil
}
