package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
)

func (r Repo) User(ctx context.Context, id string) (aptwatch.User, error) {
	var u aptwatch.User
	err := r.db.GetContext(ctx, &u, r.q(`SELECT * FROM users WHERE id = ?;`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return aptwatch.User{}, aptwatch.ErrNotFound
	}
	if err != nil {
		return aptwatch.User{}, fmt.Errorf("error fetching user: %s", err)
	}

	return u, nil
}

// EnsureUser returns the user with the given email, creating them if needed.
func (r Repo) EnsureUser(ctx context.Context, email string) (aptwatch.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var u aptwatch.User
	err := r.db.GetContext(ctx, &u, r.q(`SELECT * FROM users WHERE email = ?;`), email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return aptwatch.User{}, fmt.Errorf("error fetching user by email: %s", err)
	}

	id := fmt.Sprintf("%s%s", uuid.NewString(), userNamespace)
	_, err = r.db.ExecContext(ctx, r.q(`INSERT INTO users (id, email) VALUES (?, ?);`), id, email)
	if isUniqueViolation(err) {
		return aptwatch.User{}, fmt.Errorf("user already exists: %w", aptwatch.ErrConflict)
	}
	if err != nil {
		return aptwatch.User{}, fmt.Errorf("error inserting user: %s", err)
	}

	return r.User(ctx, id)
}

func (r Repo) Subscription(ctx context.Context, id string) (aptwatch.Subscription, error) {
	var sub aptwatch.Subscription
	err := r.db.GetContext(ctx, &sub, r.q(`SELECT * FROM subscriptions WHERE id = ?;`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return aptwatch.Subscription{}, aptwatch.ErrNotFound
	}
	if err != nil {
		return aptwatch.Subscription{}, fmt.Errorf("error fetching subscription: %s", err)
	}

	return sub, nil
}

func (r Repo) InsertSubscription(ctx context.Context, sub aptwatch.Subscription) (aptwatch.Subscription, error) {
	const q = `INSERT INTO subscriptions (id, user_id, source_id, min_price, max_price, min_bedrooms, max_bedrooms, active)
		VALUES (:id, :user_id, :source_id, :min_price, :max_price, :min_bedrooms, :max_bedrooms, :active);`

	sub.ID = fmt.Sprintf("%s%s", uuid.NewString(), subscriptionNamespace)
	if _, err := r.db.NamedExecContext(ctx, q, sub); err != nil {
		return aptwatch.Subscription{}, fmt.Errorf("error inserting subscription: %s", err)
	}

	return r.Subscription(ctx, sub.ID)
}

// ActiveSubscriptions lists the active subscriptions on a source with their
// owner's email, grouped by user.
func (r Repo) ActiveSubscriptions(ctx context.Context, sourceID string) ([]aptwatch.UserSubscription, error) {
	query, args, err := r.sb.Select("s.*", "u.email").
		From("subscriptions s").
		Join("users u ON u.id = s.user_id").
		Where("s.source_id = ?", sourceID).
		Where("s.active = ?", true).
		OrderBy("s.user_id", "s.created_at", "s.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var subs []aptwatch.UserSubscription
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("error selecting active subscriptions: %s", err)
	}

	return subs, nil
}

// StampLastChecked records a completed check on every active subscription of
// the source.
func (r Repo) StampLastChecked(ctx context.Context, sourceID string, at time.Time) error {
	query, args, err := r.sb.Update("subscriptions").
		Set("last_checked_at", at.UTC()).
		Where("source_id = ?", sourceID).
		Where("active = ?", true).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error stamping last checked: %s", err)
	}

	return nil
}
