// Package store persists resolved organizations, the per-stage run log,
// and the TTL'd crawl page cache. Two backends exist: SQLite for local
// single-binary use and Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/lodgescout/resolver-cli/internal/model"
)

// RunRecord is one row of the stage run log.
type RunRecord struct {
	ID        string            `json:"id"`
	Locality  string            `json:"locality"`
	Stage     model.Stage       `json:"stage"`
	Status    model.StageStatus `json:"status"`
	Detail    string            `json:"detail,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Store defines persistence for the resolution pipeline.
type Store interface {
	// Organizations
	UpsertOrganizations(ctx context.Context, locality string, orgs []model.Organization) error
	ListOrganizations(ctx context.Context, locality string) ([]model.Organization, error)

	// Run log
	RecordRun(ctx context.Context, rec RunRecord) error
	ListRuns(ctx context.Context, locality string, limit int) ([]RunRecord, error)

	// Crawl cache
	GetCachedCrawl(ctx context.Context, seedURL string) (*model.PageCache, error)
	SetCachedCrawl(ctx context.Context, seedURL string, pages []model.FetchedPage, ttl time.Duration) error
	DeleteExpiredCrawls(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
