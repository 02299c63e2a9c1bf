package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jdholdren/aptwatch/internal/aptwatch"
)

func (r Repo) Source(ctx context.Context, id string) (aptwatch.Source, error) {
	var src aptwatch.Source
	err := r.db.GetContext(ctx, &src, r.q(`SELECT * FROM sources WHERE id = ?;`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return aptwatch.Source{}, aptwatch.ErrNotFound
	}
	if err != nil {
		return aptwatch.Source{}, fmt.Errorf("error fetching source: %s", err)
	}

	return src, nil
}

// Sources retrieves _all_ sources, active or not.
func (r Repo) Sources(ctx context.Context) ([]aptwatch.Source, error) {
	const q = "SELECT * FROM sources ORDER BY name;"

	var srcs []aptwatch.Source
	if err := r.db.SelectContext(ctx, &srcs, q); err != nil {
		return nil, fmt.Errorf("error selecting sources: %s", err)
	}

	return srcs, nil
}

func (r Repo) ActiveSources(ctx context.Context) ([]aptwatch.Source, error) {
	query, args, err := r.sb.Select("*").From("sources").Where("active = ?", true).OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var srcs []aptwatch.Source
	if err := r.db.SelectContext(ctx, &srcs, query, args...); err != nil {
		return nil, fmt.Errorf("error selecting active sources: %s", err)
	}

	return srcs, nil
}

func (r Repo) InsertSource(ctx context.Context, src aptwatch.Source) (aptwatch.Source, error) {
	const q = `INSERT INTO sources (id, name, url_name, base_url, layout, active)
		VALUES (:id, :name, :url_name, :base_url, :layout, :active);`

	src.ID = fmt.Sprintf("%s%s", uuid.NewString(), sourceNamespace)
	_, err := r.db.NamedExecContext(ctx, q, src)
	if isUniqueViolation(err) {
		return aptwatch.Source{}, fmt.Errorf("source already exists: %w", aptwatch.ErrConflict)
	}
	if err != nil {
		return aptwatch.Source{}, fmt.Errorf("error inserting source: %s", err)
	}

	return r.Source(ctx, src.ID)
}
