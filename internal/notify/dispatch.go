// Package notify composes alert emails for matched listings, sends them and
// records which listings have been notified.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
	"github.com/jdholdren/aptwatch/internal/logger"
)

// ErrSubscriptionInactive is returned when a test is requested for a disabled
// subscription.
var ErrSubscriptionInactive = errors.New("subscription is not active")

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Repo is what the dispatcher reads and writes.
type Repo interface {
	MarkNotified(ctx context.Context, ids []string) error
	Subscription(ctx context.Context, id string) (aptwatch.Subscription, error)
	User(ctx context.Context, id string) (aptwatch.User, error)
	Source(ctx context.Context, id string) (aptwatch.Source, error)
}

type DispatcherConfig struct {
	// MarkOnFailure marks listings notified even when the send failed, so a
	// broken mailbox is not retried on every run.
	MarkOnFailure bool
	Now           func() time.Time
}

type Dispatcher struct {
	sender        Sender
	repo          Repo
	markOnFailure bool
	now           func() time.Time
}

func NewDispatcher(sender Sender, repo Repo, cfg DispatcherConfig) *Dispatcher {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Dispatcher{
		sender:        sender,
		repo:          repo,
		markOnFailure: cfg.MarkOnFailure,
		now:           cfg.Now,
	}
}

// Report tallies one dispatch.
type Report struct {
	Users  int `json:"users"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Marked int `json:"marked"`
}

// Dispatch sends one message per user and then marks that user's listings
// notified. A failure for one user never stops the others.
func (d *Dispatcher) Dispatch(ctx context.Context, sourceName string, matches []aptwatch.MatchResult) Report {
	var report Report
	for _, m := range matches {
		if len(m.Listings) == 0 {
			continue
		}
		report.Users++

		ctx := logger.Ctx(ctx, slog.String("user_id", m.User.ID))
		sendErr := d.send(ctx, m.User.Email, sourceName, m.Listings)
		if sendErr != nil {
			report.Failed++
			slog.ErrorContext(ctx, "error sending notification", "err", sendErr)
			if !d.markOnFailure {
				continue
			}
		} else {
			report.Sent++
			slog.InfoContext(ctx, "sent notification", "listings", len(m.Listings))
		}

		ids := make([]string, 0, len(m.Listings))
		for _, l := range m.Listings {
			ids = append(ids, l.ID)
		}
		if err := d.repo.MarkNotified(ctx, ids); err != nil {
			slog.ErrorContext(ctx, "error marking listings notified", "err", err)
			continue
		}
		report.Marked += len(ids)
	}

	return report
}

func (d *Dispatcher) send(ctx context.Context, to, sourceName string, listings []aptwatch.Listing) error {
	msg, err := Compose(to, sourceName, listings, d.now())
	if err != nil {
		return err
	}

	return d.sender.Send(ctx, msg)
}

// SendTest delivers a sample alert for a subscription to its owner. Nothing is
// persisted.
func (d *Dispatcher) SendTest(ctx context.Context, subscriptionID string) error {
	sub, err := d.repo.Subscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("error fetching subscription: %w", err)
	}
	if !sub.Active {
		return ErrSubscriptionInactive
	}
	user, err := d.repo.User(ctx, sub.UserID)
	if err != nil {
		return fmt.Errorf("error fetching user: %w", err)
	}
	src, err := d.repo.Source(ctx, sub.SourceID)
	if err != nil {
		return fmt.Errorf("error fetching source: %w", err)
	}

	var (
		beds    = 2
		area    = 75
		address = "Test Address, " + src.Name
	)
	sample := aptwatch.Listing{
		Title:        "TEST LISTING - Please ignore",
		Price:        1500,
		PriceText:    "€ 1.500 per month",
		URL:          src.BaseURL,
		Address:      &address,
		Bedrooms:     &beds,
		Area:         &area,
		DiscoveredAt: d.now(),
	}

	return d.send(ctx, user.Email, src.Name, []aptwatch.Listing{sample})
}
