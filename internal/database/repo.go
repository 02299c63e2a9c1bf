// Package database is the sqlx backed store for sources, listings and
// subscriptions. It speaks both sqlite and postgres.
package database

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
)

// Ensure Repo implements the Repository interface
var _ aptwatch.Repository = (*Repo)(nil)

const (
	sourceNamespace       = "-src"
	listingNamespace      = "-lst"
	userNamespace         = "-usr"
	subscriptionNamespace = "-sub"
)

type Repo struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func New(db *sqlx.DB) Repo {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if db.DriverName() == "pgx" || db.DriverName() == "postgres" {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	return Repo{db: db, sb: sb}
}

// Queries are written with '?' and rebound for the connected driver.
func (r Repo) q(query string) string {
	return r.db.Rebind(query)
}

func isUniqueViolation(err error) bool {
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) && sqliteErr.Code() == 2067 {
		return true
	}
	if pgErr := (&pgconn.PgError{}); errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}

	return false
}
