package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgescout/resolver-cli/internal/cache"
	"github.com/lodgescout/resolver-cli/internal/config"
	"github.com/lodgescout/resolver-cli/internal/crawl"
	"github.com/lodgescout/resolver-cli/internal/extract"
	"github.com/lodgescout/resolver-cli/internal/model"
	"github.com/lodgescout/resolver-cli/internal/rank"
	"github.com/lodgescout/resolver-cli/internal/store"
	"github.com/lodgescout/resolver-cli/pkg/websearch"
)

// fakeGeodata returns canned organization names.
type fakeGeodata struct {
	names []string
	err   error
	calls int
}

func (f *fakeGeodata) OrganizationNames(context.Context, string) ([]string, error) {
	f.calls++
	return f.names, f.err
}

// emptySearch yields no results, so website resolution finds nothing and
// the contacts stage has nothing to crawl.
type emptySearch struct{}

func (emptySearch) Search(context.Context, string, int) ([]websearch.Result, error) {
	return nil, nil
}

func newTestPipeline(t *testing.T, geo *fakeGeodata) *Pipeline {
	t.Helper()

	cm, err := cache.NewManager(t.TempDir())
	require.NoError(t, err)

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	fetcher := crawl.NewFetcher(2*time.Second, "test-agent", 0)
	engine := rank.NewEngine(emptySearch{}, nil, fetcher, nil, rank.DefaultWordLists(), config.RankConfig{})
	crawler := crawl.NewCrawler(fetcher, 2, 1)
	consensus := extract.NewConsensus(nil)

	return New(cm, st, geo, engine, crawler, consensus, nil,
		config.PipelineConfig{MaxConcurrentOrgs: 2}, time.Hour)
}

func TestRun_AllStagesComplete(t *testing.T) {
	geo := &fakeGeodata{names: []string{"Приморская", "Лагуна"}}
	p := newTestPipeline(t, geo)

	data, err := p.Run(context.Background(), "Сочи")
	require.NoError(t, err)
	require.NotNil(t, data)

	assert.Equal(t, model.StageCompleted, data.NextStage())
	assert.Equal(t, model.StageStatusCompleted, data.ProcessStatus.LastStageStatus)
	assert.Len(t, data.Organizations, 2)
	assert.Equal(t, 1, geo.calls)
}

func TestRun_NamesFailureInterrupts(t *testing.T) {
	geo := &fakeGeodata{err: eris.New("overpass unavailable")}
	p := newTestPipeline(t, geo)

	data, err := p.Run(context.Background(), "Сочи")
	require.Error(t, err)
	require.NotNil(t, data)

	assert.Equal(t, model.StageStatusInterrupted, data.ProcessStatus.LastStageStatus)
	assert.Equal(t, model.StageNames, data.NextStage())
}

func TestRun_ResumesFromCachedStage(t *testing.T) {
	geo := &fakeGeodata{err: eris.New("overpass unavailable")}
	p := newTestPipeline(t, geo)

	_, err := p.Run(context.Background(), "Сочи")
	require.Error(t, err)

	// Next run retries the names stage against the same cache.
	geo.err = nil
	geo.names = []string{"Приморская"}
	data, err := p.Run(context.Background(), "Сочи")
	require.NoError(t, err)

	assert.Equal(t, model.StageCompleted, data.NextStage())
	assert.Equal(t, 2, geo.calls)
}

func TestRun_CompletedLocalityDoesNotRediscover(t *testing.T) {
	geo := &fakeGeodata{names: []string{"Приморская"}}
	p := newTestPipeline(t, geo)

	_, err := p.Run(context.Background(), "Сочи")
	require.NoError(t, err)

	_, err = p.Run(context.Background(), "Сочи")
	require.NoError(t, err)
	assert.Equal(t, 1, geo.calls, "a completed locality must not hit the geodata service again")
}

func TestStatus_NoCacheForLocality(t *testing.T) {
	p := newTestPipeline(t, &fakeGeodata{names: []string{"Приморская"}})

	data, err := p.Status("Сочи")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestValidateLocality(t *testing.T) {
	assert.Error(t, ValidateLocality(""))
	assert.Error(t, ValidateLocality(" а "))
	assert.NoError(t, ValidateLocality("Ош"))
	assert.NoError(t, ValidateLocality("Сочи"))
}
