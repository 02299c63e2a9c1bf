package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
	"github.com/jdholdren/aptwatch/internal/crawl"
	apperrs "github.com/jdholdren/aptwatch/internal/errors"
	"github.com/jdholdren/aptwatch/internal/notify"
	"github.com/jdholdren/aptwatch/internal/serverutil"
)

type (
	// Checker triggers pipeline runs, either in process or through the worker.
	Checker interface {
		RunAll(ctx context.Context) map[string]string
		RunSource(ctx context.Context, sourceID string) (crawl.Result, error)
	}

	// Tester sends sample alerts for a subscription.
	Tester interface {
		SendTest(ctx context.Context, subscriptionID string) error
	}

	Repo interface {
		Source(ctx context.Context, id string) (aptwatch.Source, error)
		Sources(ctx context.Context) ([]aptwatch.Source, error)
		SourceListings(ctx context.Context, sourceID string, args aptwatch.ListingsArgs) ([]aptwatch.Listing, error)
	}

	// Server is the manual trigger surface: it lists what is being watched and
	// lets an operator kick off checks and test notifications.
	Server struct {
		*http.Server

		repo    Repo
		checker Checker
		tester  Tester
	}

	ServerConfig struct {
		Port       int
		CorsHeader string
		// A full check can take minutes, so writes get their own timeout.
		WriteTimeout time.Duration
	}
)

func NewServer(config ServerConfig, repo Repo, checker Checker, tester Tester) *Server {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Minute
	}

	r := serverutil.ErrRouter{Router: mux.NewRouter()}

	var handler http.Handler = r
	if config.CorsHeader != "" {
		handler = handlers.CORS(
			handlers.AllowedOrigins([]string{config.CorsHeader}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"content-type"}),
		)(handler)
	}

	srvr := Server{
		repo:    repo,
		checker: checker,
		tester:  tester,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: config.WriteTimeout,
			Handler:      handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(handler),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.HandleFuncE("/api/health", srvr.getHealth).Methods(http.MethodGet)

	r.HandleFuncE("/api/sources", srvr.getSources).Methods(http.MethodGet)
	r.HandleFuncE("/api/sources/{sourceID}/listings", srvr.getSourceListings).Methods(http.MethodGet)

	// Manual triggers
	r.HandleFuncE("/api/check", srvr.postCheck).Methods(http.MethodPost)
	r.HandleFuncE("/api/sources/{sourceID}/check", srvr.postSourceCheck).Methods(http.MethodPost)
	r.HandleFuncE("/api/subscriptions/{subscriptionID}/test-notification", srvr.postTestNotification).Methods(http.MethodPost)

	slog.Debug("configured aptwatch server", "port", config.Port)

	return &srvr
}

func (s Server) getHealth(w http.ResponseWriter, r *http.Request) error {
	return serverutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s Server) getSources(w http.ResponseWriter, r *http.Request) error {
	srcs, err := s.repo.Sources(r.Context())
	if err != nil {
		return err
	}
	if srcs == nil {
		srcs = []aptwatch.Source{}
	}

	return serverutil.WriteJSON(w, http.StatusOK, struct {
		Sources []aptwatch.Source `json:"sources"`
	}{
		Sources: srcs,
	})
}

type listingsResp struct {
	Listings   []aptwatch.Listing `json:"listings"`
	Pagination paginationMeta     `json:"pagination"`
}

func (s Server) getSourceListings(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx           = r.Context()
		sourceID      = mux.Vars(r)["sourceID"]
		limit, offset = parsePaginationParams(r, 50, 200)
	)

	if _, err := s.repo.Source(ctx, sourceID); err != nil {
		return apperrs.E(err, apperrs.Status(err))
	}

	listings, err := s.repo.SourceListings(ctx, sourceID, aptwatch.ListingsArgs{
		Limit:  uint64(limit),
		Offset: uint64(offset),
	})
	if err != nil {
		return err
	}
	if listings == nil {
		listings = []aptwatch.Listing{}
	}

	return serverutil.WriteJSON(w, http.StatusOK, listingsResp{
		Listings:   listings,
		Pagination: calculatePaginationMeta(limit, offset, len(listings)),
	})
}

func (s Server) postCheck(w http.ResponseWriter, r *http.Request) error {
	summary := s.checker.RunAll(r.Context())

	return serverutil.WriteJSON(w, http.StatusOK, struct {
		Summary map[string]string `json:"summary"`
	}{
		Summary: summary,
	})
}

func (s Server) postSourceCheck(w http.ResponseWriter, r *http.Request) error {
	res, err := s.checker.RunSource(r.Context(), mux.Vars(r)["sourceID"])
	appErr := &apperrs.Error{}
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, crawl.ErrSourceInactive):
		return apperrs.E(err, http.StatusConflict)
	case err != nil:
		return apperrs.E(err, apperrs.Status(err))
	}

	return serverutil.WriteJSON(w, http.StatusOK, res)
}

func (s Server) postTestNotification(w http.ResponseWriter, r *http.Request) error {
	err := s.tester.SendTest(r.Context(), mux.Vars(r)["subscriptionID"])
	switch {
	case errors.Is(err, notify.ErrSubscriptionInactive):
		return apperrs.E(err, http.StatusConflict)
	case errors.Is(err, notify.ErrNotConfigured):
		return apperrs.E(err, http.StatusServiceUnavailable)
	case errors.Is(err, aptwatch.ErrNotFound):
		return apperrs.E(err, http.StatusNotFound)
	case err != nil:
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, map[string]bool{"sent": true})
}
