package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/lodgescout/resolver-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies
// it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id         UUID PRIMARY KEY,
	locality   TEXT NOT NULL,
	name       TEXT NOT NULL,
	website    TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	address    TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (locality, name)
);

CREATE TABLE IF NOT EXISTS run_log (
	id         UUID PRIMARY KEY,
	locality   TEXT NOT NULL,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL,
	detail     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS crawl_cache (
	id         UUID PRIMARY KEY,
	seed_url   TEXT NOT NULL,
	pages      JSONB NOT NULL,
	crawled_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_organizations_locality ON organizations(locality);
CREATE INDEX IF NOT EXISTS idx_run_log_locality ON run_log(locality);
CREATE INDEX IF NOT EXISTS idx_crawl_cache_seed_url ON crawl_cache(seed_url);
CREATE INDEX IF NOT EXISTS idx_crawl_cache_expires_at ON crawl_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertOrganizations(ctx context.Context, locality string, orgs []model.Organization) error {
	now := time.Now().UTC()
	for _, org := range orgs {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO organizations (id, locality, name, website, email, phone, address, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (locality, name) DO UPDATE SET
			   website    = CASE WHEN excluded.website != '' THEN excluded.website ELSE organizations.website END,
			   email      = CASE WHEN excluded.email   != '' THEN excluded.email   ELSE organizations.email   END,
			   phone      = CASE WHEN excluded.phone   != '' THEN excluded.phone   ELSE organizations.phone   END,
			   address    = CASE WHEN excluded.address != '' THEN excluded.address ELSE organizations.address END,
			   updated_at = excluded.updated_at`,
			uuid.New().String(), locality, org.Name, org.Website, org.Email, org.Phone, org.Address, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert organization %s", org.Name)
		}
	}
	return nil
}

func (s *PostgresStore) ListOrganizations(ctx context.Context, locality string) ([]model.Organization, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, website, email, phone, address FROM organizations
		 WHERE locality = $1 ORDER BY name`,
		locality,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list organizations")
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		var o model.Organization
		if err := rows.Scan(&o.Name, &o.Website, &o.Email, &o.Phone, &o.Address); err != nil {
			return nil, eris.Wrap(err, "postgres: scan organization")
		}
		orgs = append(orgs, o)
	}
	return orgs, eris.Wrap(rows.Err(), "postgres: iterate organizations")
}

func (s *PostgresStore) RecordRun(ctx context.Context, rec RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_log (id, locality, stage, status, detail, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Locality, string(rec.Stage), string(rec.Status), rec.Detail, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert run record")
}

func (s *PostgresStore) ListRuns(ctx context.Context, locality string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, locality, stage, status, detail, created_at FROM run_log
		 WHERE locality = $1 ORDER BY created_at DESC LIMIT $2`,
		locality, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var r RunRecord
		var detail *string
		if err := rows.Scan(&r.ID, &r.Locality, &r.Stage, &r.Status, &detail, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run record")
		}
		if detail != nil {
			r.Detail = *detail
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) GetCachedCrawl(ctx context.Context, seedURL string) (*model.PageCache, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, seed_url, pages, crawled_at, expires_at FROM crawl_cache
		 WHERE seed_url = $1 AND expires_at > now()
		 ORDER BY crawled_at DESC LIMIT 1`,
		seedURL,
	)

	var pc model.PageCache
	var pagesJSON []byte
	err := row.Scan(&pc.ID, &pc.SeedURL, &pagesJSON, &pc.CrawledAt, &pc.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached crawl")
	}
	if err := json.Unmarshal(pagesJSON, &pc.Pages); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached pages")
	}
	return &pc, nil
}

func (s *PostgresStore) SetCachedCrawl(ctx context.Context, seedURL string, pages []model.FetchedPage, ttl time.Duration) error {
	now := time.Now().UTC()

	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal pages")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO crawl_cache (id, seed_url, pages, crawled_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), seedURL, pagesJSON, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached crawl")
}

func (s *PostgresStore) DeleteExpiredCrawls(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM crawl_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired crawls")
	}
	return int(tag.RowsAffected()), nil
}
