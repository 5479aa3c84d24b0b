package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgescout/resolver-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgres_GetCachedCrawl_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, seed_url, pages, crawled_at, expires_at FROM crawl_cache`).
		WithArgs("https://unknown.ru").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetCachedCrawl(context.Background(), "https://unknown.ru")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetCachedCrawl(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO crawl_cache`).
		WithArgs(pgxmock.AnyArg(), "https://hotel.ru", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetCachedCrawl(context.Background(), "https://hotel.ru",
		[]model.FetchedPage{{URL: "https://hotel.ru/"}}, 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO run_log`).
		WithArgs(pgxmock.AnyArg(), "сочи", "names", "completed", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordRun(context.Background(), RunRecord{
		Locality: "сочи",
		Stage:    model.StageNames,
		Status:   model.StageStatusCompleted,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertOrganizations(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO organizations`).
		WithArgs(pgxmock.AnyArg(), "сочи", "Приморская", "https://hotel.ru", "", "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertOrganizations(context.Background(), "сочи",
		[]model.Organization{{Name: "Приморская", Website: "https://hotel.ru"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListOrganizations(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"name", "website", "email", "phone", "address"}).
		AddRow("Приморская", "https://hotel.ru", "info@hotel.ru", "", "г. Сочи, ул. Морская, д. 5")
	mock.ExpectQuery(`SELECT name, website, email, phone, address FROM organizations`).
		WithArgs("сочи").
		WillReturnRows(rows)

	got, err := s.ListOrganizations(context.Background(), "сочи")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "info@hotel.ru", got[0].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}
