package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/lodgescout/resolver-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id         TEXT PRIMARY KEY,
	locality   TEXT NOT NULL,
	name       TEXT NOT NULL,
	website    TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	address    TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (locality, name)
);

CREATE TABLE IF NOT EXISTS run_log (
	id         TEXT PRIMARY KEY,
	locality   TEXT NOT NULL,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL,
	detail     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS crawl_cache (
	id         TEXT PRIMARY KEY,
	seed_url   TEXT NOT NULL,
	pages      TEXT NOT NULL,
	crawled_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_organizations_locality ON organizations(locality);
CREATE INDEX IF NOT EXISTS idx_run_log_locality ON run_log(locality);
CREATE INDEX IF NOT EXISTS idx_crawl_cache_seed_url ON crawl_cache(seed_url);
CREATE INDEX IF NOT EXISTS idx_crawl_cache_expires_at ON crawl_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertOrganizations(ctx context.Context, locality string, orgs []model.Organization) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, org := range orgs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO organizations (id, locality, name, website, email, phone, address, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (locality, name) DO UPDATE SET
			   website    = CASE WHEN excluded.website != '' THEN excluded.website ELSE website END,
			   email      = CASE WHEN excluded.email   != '' THEN excluded.email   ELSE email   END,
			   phone      = CASE WHEN excluded.phone   != '' THEN excluded.phone   ELSE phone   END,
			   address    = CASE WHEN excluded.address != '' THEN excluded.address ELSE address END,
			   updated_at = excluded.updated_at`,
			uuid.New().String(), locality, org.Name, org.Website, org.Email, org.Phone, org.Address, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert organization %s", org.Name)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit upsert")
}

func (s *SQLiteStore) ListOrganizations(ctx context.Context, locality string) ([]model.Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, website, email, phone, address FROM organizations
		 WHERE locality = ? ORDER BY name`,
		locality,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list organizations")
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		var o model.Organization
		if err := rows.Scan(&o.Name, &o.Website, &o.Email, &o.Phone, &o.Address); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan organization")
		}
		orgs = append(orgs, o)
	}
	return orgs, eris.Wrap(rows.Err(), "sqlite: iterate organizations")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, rec RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_log (id, locality, stage, status, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Locality, string(rec.Stage), string(rec.Status), rec.Detail, rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert run record")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, locality string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, locality, stage, status, detail, created_at FROM run_log
		 WHERE locality = ? ORDER BY created_at DESC LIMIT ?`,
		locality, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var r RunRecord
		var detail sql.NullString
		if err := rows.Scan(&r.ID, &r.Locality, &r.Stage, &r.Status, &detail, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run record")
		}
		r.Detail = detail.String
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) GetCachedCrawl(ctx context.Context, seedURL string) (*model.PageCache, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, seed_url, pages, crawled_at, expires_at FROM crawl_cache
		 WHERE seed_url = ? AND expires_at > datetime('now')
		 ORDER BY crawled_at DESC LIMIT 1`,
		seedURL,
	)

	var pc model.PageCache
	var pagesJSON string
	err := row.Scan(&pc.ID, &pc.SeedURL, &pagesJSON, &pc.CrawledAt, &pc.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached crawl")
	}
	if err := json.Unmarshal([]byte(pagesJSON), &pc.Pages); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached pages")
	}
	return &pc, nil
}

func (s *SQLiteStore) SetCachedCrawl(ctx context.Context, seedURL string, pages []model.FetchedPage, ttl time.Duration) error {
	now := time.Now().UTC()

	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pages")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO crawl_cache (id, seed_url, pages, crawled_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), seedURL, string(pagesJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached crawl")
}

func (s *SQLiteStore) DeleteExpiredCrawls(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM crawl_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired crawls")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
