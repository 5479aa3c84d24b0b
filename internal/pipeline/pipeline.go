// Package pipeline drives the staged resolution for one locality:
// names discovery, website selection, contact extraction. Each stage
// persists its outcome so an interrupted run resumes where it stopped.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lodgescout/resolver-cli/internal/cache"
	"github.com/lodgescout/resolver-cli/internal/config"
	"github.com/lodgescout/resolver-cli/internal/crawl"
	"github.com/lodgescout/resolver-cli/internal/extract"
	"github.com/lodgescout/resolver-cli/internal/model"
	"github.com/lodgescout/resolver-cli/internal/rank"
	"github.com/lodgescout/resolver-cli/internal/store"
	"github.com/lodgescout/resolver-cli/pkg/directory"
	"github.com/lodgescout/resolver-cli/pkg/geodata"
)

// Pipeline owns the stage machine and its collaborators.
type Pipeline struct {
	cache     *cache.Manager
	store     store.Store
	geodata   geodata.Client
	engine    *rank.Engine
	crawler   *crawl.Crawler
	consensus *extract.Consensus
	directory directory.Client
	cfg       config.PipelineConfig
	crawlTTL  time.Duration
}

// New creates a Pipeline. store may be nil (no persistence beyond the
// JSON cache); directory may be nil or disabled.
func New(
	cm *cache.Manager,
	st store.Store,
	geo geodata.Client,
	engine *rank.Engine,
	crawler *crawl.Crawler,
	consensus *extract.Consensus,
	dir directory.Client,
	cfg config.PipelineConfig,
	crawlTTL time.Duration,
) *Pipeline {
	if cfg.MaxConcurrentOrgs <= 0 {
		cfg.MaxConcurrentOrgs = 4
	}
	return &Pipeline{
		cache:     cm,
		store:     st,
		geodata:   geo,
		engine:    engine,
		crawler:   crawler,
		consensus: consensus,
		directory: dir,
		cfg:       cfg,
		crawlTTL:  crawlTTL,
	}
}

// Run resolves the locality end to end, resuming from the cached stage
// if one exists. It returns the final cache state; partial results are
// saved even when a stage is interrupted.
func (p *Pipeline) Run(ctx context.Context, locality string) (*model.CacheData, error) {
	if err := ValidateLocality(locality); err != nil {
		return nil, err
	}

	data, err := p.cache.CheckLocation(locality)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = cache.NewFor(locality)
		if err := p.cache.Save(data); err != nil {
			return nil, err
		}
	}

	for {
		stage := data.NextStage()
		if stage == model.StageCompleted {
			zap.L().Info("pipeline: locality completed",
				zap.String("locality", data.CurrentLocation),
				zap.Int("organizations", len(data.Organizations)))
			return data, nil
		}

		zap.L().Info("pipeline: stage starting",
			zap.String("locality", data.CurrentLocation),
			zap.String("stage", string(stage)))

		status, stageErr := p.runStage(ctx, data, stage)
		data.UpdateStage(stage, status)
		if err := p.cache.Save(data); err != nil {
			return data, err
		}
		p.record(ctx, data, stage, status, stageErr)

		if status != model.StageStatusCompleted {
			if stageErr != nil {
				return data, eris.Wrapf(stageErr, "pipeline: stage %s", stage)
			}
			return data, eris.Errorf("pipeline: stage %s interrupted", stage)
		}
	}
}

func (p *Pipeline) runStage(ctx context.Context, data *model.CacheData, stage model.Stage) (model.StageStatus, error) {
	var budget context.CancelFunc
	if p.cfg.StageBudgetSecs > 0 {
		ctx, budget = context.WithTimeout(ctx, time.Duration(p.cfg.StageBudgetSecs)*time.Second)
		defer budget()
	}

	switch stage {
	case model.StageNames:
		return p.runNames(ctx, data)
	case model.StageWebsites:
		return p.runWebsites(ctx, data)
	case model.StageContacts:
		return p.runContacts(ctx, data)
	default:
		return model.StageStatusInterrupted, eris.Errorf("pipeline: unknown stage %q", stage)
	}
}

// runNames fills the organization list from the geodata collaborator.
func (p *Pipeline) runNames(ctx context.Context, data *model.CacheData) (model.StageStatus, error) {
	names, err := p.geodata.OrganizationNames(ctx, data.CurrentLocation)
	if err != nil && len(names) == 0 {
		return model.StageStatusInterrupted, err
	}

	existing := make(map[string]bool, len(data.Organizations))
	for _, org := range data.Organizations {
		existing[org.Name] = true
	}
	for _, name := range names {
		if !existing[name] {
			data.Organizations = append(data.Organizations, model.Organization{Name: name})
		}
	}
	if len(data.Organizations) == 0 {
		return model.StageStatusInterrupted, eris.Errorf("pipeline: no organizations for %q", data.CurrentLocation)
	}
	return model.StageStatusCompleted, nil
}

// runWebsites resolves a website per organization. Organizations run in
// parallel; a failure for one never aborts the others.
func (p *Pipeline) runWebsites(ctx context.Context, data *model.CacheData) (model.StageStatus, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrentOrgs)

	var mu sync.Mutex
	for i := range data.Organizations {
		if data.Organizations[i].Website != "" {
			continue
		}
		i := i
		name := data.Organizations[i].Name
		g.Go(func() error {
			website, err := p.engine.Resolve(gctx, name, data.CurrentLocation)
			if err != nil {
				zap.L().Warn("pipeline: website resolution failed",
					zap.String("org", name), zap.Error(err))
				return nil
			}
			if website != "" {
				mu.Lock()
				data.Organizations[i].Website = website
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return model.StageStatusInterrupted, nil
	}
	p.persistOrgs(ctx, data)
	return model.StageStatusCompleted, nil
}

// runContacts crawls each resolved website and extracts contact fields.
func (p *Pipeline) runContacts(ctx context.Context, data *model.CacheData) (model.StageStatus, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrentOrgs)

	var mu sync.Mutex
	for i := range data.Organizations {
		org := data.Organizations[i]
		if org.Website == "" || (org.Email != "" && org.Address != "") {
			continue
		}
		i := i
		g.Go(func() error {
			info := p.resolveContacts(gctx, org, data.CurrentLocation)
			mu.Lock()
			data.Organizations[i].Merge(model.Organization{
				Email:   info.Email,
				Phone:   info.Phone,
				Address: info.Address,
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return model.StageStatusInterrupted, nil
	}
	p.persistOrgs(ctx, data)
	return model.StageStatusCompleted, nil
}

// resolveContacts runs the crawl plus extraction consensus for one
// organization, reusing a cached crawl when one is fresh.
func (p *Pipeline) resolveContacts(ctx context.Context, org model.Organization, locality string) model.ContactInfo {
	var dirInfo *model.ContactInfo
	if p.directory != nil && p.directory.Enabled() {
		info, err := p.directory.Lookup(ctx, org.Name, locality)
		if err != nil {
			zap.L().Warn("pipeline: directory lookup failed",
				zap.String("org", org.Name), zap.Error(err))
		} else {
			dirInfo = info
		}
	}

	pages := p.crawlCached(ctx, org.Website)
	return p.consensus.Resolve(ctx, dirInfo, pages)
}

func (p *Pipeline) crawlCached(ctx context.Context, seedURL string) []model.FetchedPage {
	if p.store != nil {
		cached, err := p.store.GetCachedCrawl(ctx, seedURL)
		if err != nil {
			zap.L().Warn("pipeline: crawl cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached.Pages
		}
	}

	pages := p.crawler.Crawl(ctx, seedURL)

	if p.store != nil && len(pages) > 0 {
		if err := p.store.SetCachedCrawl(ctx, seedURL, pages, p.crawlTTL); err != nil {
			zap.L().Warn("pipeline: crawl cache write failed", zap.Error(err))
		}
	}
	return pages
}

func (p *Pipeline) persistOrgs(ctx context.Context, data *model.CacheData) {
	if p.store == nil {
		return
	}
	if err := p.store.UpsertOrganizations(ctx, data.CurrentLocation, data.Organizations); err != nil {
		zap.L().Warn("pipeline: organization persist failed", zap.Error(err))
	}
}

func (p *Pipeline) record(ctx context.Context, data *model.CacheData, stage model.Stage, status model.StageStatus, stageErr error) {
	if p.store == nil {
		return
	}
	rec := store.RunRecord{
		Locality: data.CurrentLocation,
		Stage:    stage,
		Status:   status,
	}
	if stageErr != nil {
		rec.Detail = stageErr.Error()
	}
	if err := p.store.RecordRun(ctx, rec); err != nil {
		zap.L().Warn("pipeline: run record failed", zap.Error(err))
	}
}

// Status reports the cached resolution state for a locality, or nil
// when no cache matches it.
func (p *Pipeline) Status(locality string) (*model.CacheData, error) {
	if err := ValidateLocality(locality); err != nil {
		return nil, err
	}
	return p.cache.CheckLocation(locality)
}

// ValidateLocality rejects inputs too short to be a place name before
// they reach any collaborator.
func ValidateLocality(locality string) error {
	runes := []rune(cache.NormalizeLocality(locality))
	if len(runes) < 2 {
		return eris.Errorf("locality %q too short: need at least 2 characters", locality)
	}
	return nil
}
