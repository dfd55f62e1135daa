// Package catalog records which model runs have been published. The catalog
// is what makes publish cycles idempotent: a run already recorded for a
// model is not fetched or rendered again.
package catalog

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/model-imagery-service/internal/domain"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/insert-run.sql
var insertRunSQL string

//go:embed sql/was-published.sql
var wasPublishedSQL string

//go:embed sql/latest-by-model.sql
var latestByModelSQL string

//go:embed sql/list-recent.sql
var listRecentSQL string

// Entry is one published run as stored in the catalog.
type Entry struct {
	Model       string    `json:"model"`
	Cycle       time.Time `json:"cycle"`
	ImagePath   string    `json:"image_path"`
	ImageSHA256 string    `json:"image_sha256"`
	PublishedAt time.Time `json:"published_at"`
}

// Catalog is a sqlite-backed record of published runs.
type Catalog struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the catalog database at path and applies the
// schema. Callers own Close.
func Open(path string, logger *slog.Logger) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply catalog schema: %w", err)
	}
	return &Catalog{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Record stores a published run. Re-recording the same model and cycle
// overwrites the image hash, so a re-render of the same run is not an error.
func (c *Catalog) Record(run domain.Run, imagePath, imageSHA256 string, publishedAt time.Time) error {
	_, err := c.db.Exec(insertRunSQL,
		run.Model.Slug,
		run.Cycle.UTC().Format(time.RFC3339),
		imagePath,
		imageSHA256,
		publishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID(), err)
	}
	return nil
}

// WasPublished reports whether the run's model and cycle are already in the
// catalog.
func (c *Catalog) WasPublished(run domain.Run) (bool, error) {
	var n int
	err := c.db.QueryRow(wasPublishedSQL,
		run.Model.Slug,
		run.Cycle.UTC().Format(time.RFC3339),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup run %s: %w", run.ID(), err)
	}
	return n > 0, nil
}

// LatestByModel returns the newest recorded cycle for the model slug, or
// false when the model has never been published.
func (c *Catalog) LatestByModel(slug string) (Entry, bool, error) {
	row := c.db.QueryRow(latestByModelSQL, slug)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("latest run for %s: %w", slug, err)
	}
	return e, true, nil
}

// ListRecent returns up to limit entries, newest publish first.
func (c *Catalog) ListRecent(limit int) ([]Entry, error) {
	rows, err := c.db.Query(listRecentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			c.logger.Error("close catalog rows", "error", err)
		}
	}()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var cycle, published string
	if err := row.Scan(&e.Model, &cycle, &e.ImagePath, &e.ImageSHA256, &published); err != nil {
		return Entry{}, err
	}

	var err error
	if e.Cycle, err = time.Parse(time.RFC3339, cycle); err != nil {
		return Entry{}, fmt.Errorf("parse cycle %q: %w", cycle, err)
	}
	if e.PublishedAt, err = time.Parse(time.RFC3339, published); err != nil {
		return Entry{}, fmt.Errorf("parse published_at %q: %w", published, err)
	}
	return e, nil
}
