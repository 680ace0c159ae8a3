package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"review-scraper/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var schemas = map[string][]string{
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS reviews (
			id             BIGSERIAL PRIMARY KEY,
			restaurant_url TEXT        NOT NULL,
			restaurant_id  TEXT        NOT NULL DEFAULT '',
			review_key     TEXT        NOT NULL,
			review_id      TEXT,
			user_id        TEXT,
			user_name      TEXT,
			rating         TEXT,
			title          TEXT,
			content        TEXT,
			created_at     TEXT,
			created_at_ts  BIGINT,
			scraped_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (restaurant_url, review_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_restaurant ON reviews(restaurant_id)`,
	},
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS reviews (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			restaurant_url TEXT    NOT NULL,
			restaurant_id  TEXT    NOT NULL DEFAULT '',
			review_key     TEXT    NOT NULL,
			review_id      TEXT,
			user_id        TEXT,
			user_name      TEXT,
			rating         TEXT,
			title          TEXT,
			content        TEXT,
			created_at     TEXT,
			created_at_ts  INTEGER,
			scraped_at     TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (restaurant_url, review_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_restaurant ON reviews(restaurant_id)`,
	},
}

const reviewColumns = 11

var _ ResultSink = (*SQLWriter)(nil)

// SQLWriter persists reviews to PostgreSQL or SQLite. Inserts are idempotent
// per (restaurant_url, review_key), so re-writing a resumed run's full result
// set does not duplicate rows.
type SQLWriter struct {
	db     *sql.DB
	driver string
}

// NewSQLWriter opens the database, waits for it to answer, and migrates the
// schema.
func NewSQLWriter(ctx context.Context, driver, dsn string) (*SQLWriter, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, fmt.Errorf("sql: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping failed after retries: %w", driver, err)
	}

	w := &SQLWriter{db: db, driver: driver}
	if err := w.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	return w, nil
}

func (w *SQLWriter) migrate(ctx context.Context) error {
	for _, stmt := range schemas[w.driver] {
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Write batch-inserts every review of every result inside one transaction.
func (w *SQLWriter) Write(ctx context.Context, results []*models.RestaurantResult) error {
	type row struct {
		url string
		r   *models.ReviewRecord
	}
	var rows []row
	for _, res := range results {
		for _, r := range res.Reviews {
			rows = append(rows, row{res.URL, r})
		}
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", w.driver, err)
	}
	defer func() { _ = tx.Rollback() }()

	const batchSize = 50
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		valueStrings := make([]string, 0, end-i)
		valueArgs := make([]any, 0, (end-i)*reviewColumns)
		for idx, rw := range rows[i:end] {
			valueStrings = append(valueStrings, w.tuple(idx*reviewColumns))
			r := rw.r
			valueArgs = append(valueArgs,
				rw.url, r.RestaurantID, r.Key(),
				nullable(r.ID), nullable(r.UserID), nullable(r.UserName),
				models.RatingText(r.Rating), nullable(r.Title), nullable(r.Content),
				nullable(r.CreatedAt), nullableInt(r.CreatedAtTimestamp))
		}

		query := fmt.Sprintf(`
			INSERT INTO reviews (restaurant_url, restaurant_id, review_key, review_id, user_id,
				user_name, rating, title, content, created_at, created_at_ts)
			VALUES %s
			ON CONFLICT (restaurant_url, review_key) DO NOTHING
		`, strings.Join(valueStrings, ","))

		if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
			return fmt.Errorf("%s: insert batch: %w", w.driver, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", w.driver, err)
	}
	return nil
}

// tuple renders one VALUES group; postgres numbers its placeholders from
// base+1, sqlite uses plain ?.
func (w *SQLWriter) tuple(base int) string {
	ph := make([]string, reviewColumns)
	for i := range ph {
		if w.driver == DriverPostgres {
			ph[i] = fmt.Sprintf("$%d", base+i+1)
		} else {
			ph[i] = "?"
		}
	}
	return "(" + strings.Join(ph, ",") + ")"
}

// Count returns the number of stored reviews.
func (w *SQLWriter) Count(ctx context.Context) (int, error) {
	var n int
	if err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews").Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: count: %w", w.driver, err)
	}
	return n, nil
}

func (w *SQLWriter) Close() error {
	return w.db.Close()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}
