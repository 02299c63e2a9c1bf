// Package seed loads sources, and optionally subscriptions, into the store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
)

type (
	// File is the seed file layout.
	File struct {
		Sources       []Source       `yaml:"sources"`
		Subscriptions []Subscription `yaml:"subscriptions"`
	}

	Source struct {
		Name    string `yaml:"name"`
		URLName string `yaml:"url_name"`
		// Defaults to the city's pararius search page.
		BaseURL string `yaml:"base_url"`
		Layout  string `yaml:"layout"`
		// Defaults to true.
		Active *bool `yaml:"active"`
	}

	Subscription struct {
		Email string `yaml:"email"`
		// Source is a source's url_name.
		Source      string `yaml:"source"`
		MinPrice    int    `yaml:"min_price"`
		MaxPrice    int    `yaml:"max_price"`
		MinBedrooms int    `yaml:"min_bedrooms"`
		MaxBedrooms int    `yaml:"max_bedrooms"`
	}

	Repo interface {
		Sources(ctx context.Context) ([]aptwatch.Source, error)
		InsertSource(ctx context.Context, src aptwatch.Source) (aptwatch.Source, error)
		EnsureUser(ctx context.Context, email string) (aptwatch.User, error)
		InsertSubscription(ctx context.Context, sub aptwatch.Subscription) (aptwatch.Subscription, error)
	}

	// Report counts what a seed did.
	Report struct {
		SourcesCreated       int
		SourcesSkipped       int
		SubscriptionsCreated int
	}
)

// Defaults is used when no seed file is given.
func Defaults() File {
	return File{
		Sources: []Source{
			{Name: "Eindhoven", URLName: "eindhoven"},
			{Name: "Rotterdam", URLName: "rotterdam"},
		},
	}
}

func Load(r io.Reader) (File, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return File{}, fmt.Errorf("error decoding seed file: %w", err)
	}

	return f, nil
}

func LoadFile(path string) (File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("error opening seed file: %w", err)
	}
	defer fd.Close()

	return Load(fd)
}

func (s Source) source() (aptwatch.Source, error) {
	if s.Name == "" {
		return aptwatch.Source{}, errors.New("source name is required")
	}

	src := aptwatch.Source{
		Name:    s.Name,
		URLName: s.URLName,
		BaseURL: s.BaseURL,
		Layout:  s.Layout,
		Active:  s.Active == nil || *s.Active,
	}
	if src.URLName == "" {
		src.URLName = strings.ToLower(strings.ReplaceAll(s.Name, " ", "-"))
	}
	if src.BaseURL == "" {
		src.BaseURL = "https://www.pararius.com/apartments/" + src.URLName
	}

	return src, nil
}

// Apply inserts every source that does not exist yet, then the subscriptions.
// Existing sources are left untouched.
func Apply(ctx context.Context, repo Repo, f File) (Report, error) {
	var report Report
	for _, s := range f.Sources {
		src, err := s.source()
		if err != nil {
			return report, err
		}

		_, err = repo.InsertSource(ctx, src)
		if errors.Is(err, aptwatch.ErrConflict) {
			slog.InfoContext(ctx, "source already exists, skipping", "source", src.Name)
			report.SourcesSkipped++
			continue
		}
		if err != nil {
			return report, err
		}
		slog.InfoContext(ctx, "created source", "source", src.Name, "url", src.BaseURL)
		report.SourcesCreated++
	}

	if len(f.Subscriptions) == 0 {
		return report, nil
	}

	srcs, err := repo.Sources(ctx)
	if err != nil {
		return report, err
	}
	byURLName := make(map[string]aptwatch.Source, len(srcs))
	for _, src := range srcs {
		byURLName[src.URLName] = src
	}

	for _, s := range f.Subscriptions {
		src, ok := byURLName[s.Source]
		if !ok {
			return report, fmt.Errorf("subscription for %s: unknown source %q", s.Email, s.Source)
		}
		if s.MinPrice > s.MaxPrice || s.MinBedrooms > s.MaxBedrooms {
			return report, fmt.Errorf("subscription for %s: minimums must not exceed maximums", s.Email)
		}

		user, err := repo.EnsureUser(ctx, s.Email)
		if err != nil {
			return report, err
		}
		if _, err := repo.InsertSubscription(ctx, aptwatch.Subscription{
			UserID:      user.ID,
			SourceID:    src.ID,
			MinPrice:    s.MinPrice,
			MaxPrice:    s.MaxPrice,
			MinBedrooms: s.MinBedrooms,
			MaxBedrooms: s.MaxBedrooms,
			Active:      true,
		}); err != nil {
			return report, err
		}
		report.SubscriptionsCreated++
	}

	return report, nil
}
