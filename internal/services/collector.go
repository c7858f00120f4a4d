package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rankowl/rank-tracker/internal/clients"
	"github.com/rankowl/rank-tracker/internal/clients/shopping"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/rankowl/rank-tracker/internal/metrics"
	"github.com/rankowl/rank-tracker/internal/ranking"
	log "github.com/sirupsen/logrus"
	"strings"
)

type shoppingClient interface {
	Search(ctx context.Context, params shopping.SearchParameters) ([]clients.Item, int, error)
}

type marketplaceClient interface {
	Search(ctx context.Context, keyword string, page, perPage int) ([]clients.Item, int, error)
}

type collectorKeywordStore interface {
	UpdateLastCollected(ctx context.Context, id int, at time.Time) error
}

type adSlotStore interface {
	GetByID(ctx context.Context, id int) (*models.AdSlotTarget, error)
	SetPriceBaseline(ctx context.Context, id int, rank int) error
	SetStoreBaseline(ctx context.Context, id int, rank int) error
	SaveResult(ctx context.Context, result models.AdSlotResult) error
}

type rawRankingStore interface {
	BatchInsert(ctx context.Context, rankings []models.RawRanking) error
}

// Collector executes one collection job: fetch the keyword's result pages in
// order, resolve ranks, persist.
type Collector struct {
	shopping    shoppingClient
	marketplace marketplaceClient
	keywords    collectorKeywordStore
	adSlots     adSlotStore
	rankings    rawRankingStore
	maxPages    int
	perPage     int
}

func NewCollector(shoppingClient shoppingClient, marketplaceClient marketplaceClient,
	keywords collectorKeywordStore, adSlots adSlotStore, rankings rawRankingStore,
	maxPages, perPage int) *Collector {

	return &Collector{
		shopping:    shoppingClient,
		marketplace: marketplaceClient,
		keywords:    keywords,
		adSlots:     adSlots,
		rankings:    rankings,
		maxPages:    maxPages,
		perPage:     perPage,
	}
}

func (c *Collector) Run(ctx context.Context, job *models.CollectionJob) error {

	if job.Type == models.AdSlotKeyword {
		return c.runAdSlot(ctx, job)
	}
	return c.runKeyword(ctx, job)
}

func (c *Collector) runKeyword(ctx context.Context, job *models.CollectionJob) error {

	c.progress(job, 10)

	items, err := c.collectPages(ctx, job)
	if err != nil {
		return err
	}

	collectedAt := time.Now().UTC()
	rankings := make([]models.RawRanking, 0, len(items))
	for i, item := range items {
		rankings = append(rankings, models.RawRanking{
			KeywordID:   job.KeywordID,
			ProductID:   item.ProductID,
			Title:       item.Title,
			Rank:        i + 1,
			Price:       item.Price,
			Seller:      item.Seller,
			Category:    strings.Join(item.Categories, ">"),
			CollectedAt: collectedAt,
		})
	}

	start := time.Now()
	if err = c.rankings.BatchInsert(ctx, rankings); err != nil {
		return fmt.Errorf("failed to persist rankings for %q: %w", job.KeywordText, err)
	}
	metrics.JobStepDuration.WithLabelValues("persist").Observe(time.Since(start).Seconds())

	if err = c.keywords.UpdateLastCollected(ctx, job.KeywordID, collectedAt); err != nil {
		log.Errorf("failed to update last collected time for keyword %d: %v", job.KeywordID, err)
	}

	c.progress(job, 100)
	log.Infof("collected %d rankings for keyword %q", len(rankings), job.KeywordText)
	return nil
}

func (c *Collector) runAdSlot(ctx context.Context, job *models.CollectionJob) error {

	c.progress(job, 10)

	target, err := c.adSlots.GetByID(ctx, job.AdSlotID)
	if err != nil {
		return fmt.Errorf("failed to load ad slot %d: %w", job.AdSlotID, err)
	}

	items, err := c.collectPages(ctx, job)
	if err != nil {
		return err
	}

	resolution := ranking.Resolve(items, *target)

	// the first successfully resolved rank becomes the baseline; the store
	// guard keeps an existing baseline untouched
	if resolution.PriceRank != nil && target.PriceBaseline == nil {
		if err = c.adSlots.SetPriceBaseline(ctx, target.ID, *resolution.PriceRank); err != nil {
			return err
		}
		target.PriceBaseline = resolution.PriceRank
		resolution.PriceDiff = ranking.Diff(target.PriceBaseline, resolution.PriceRank)
	}
	if resolution.StoreRank != nil && target.StoreBaseline == nil {
		if err = c.adSlots.SetStoreBaseline(ctx, target.ID, *resolution.StoreRank); err != nil {
			return err
		}
		target.StoreBaseline = resolution.StoreRank
		resolution.StoreDiff = ranking.Diff(target.StoreBaseline, resolution.StoreRank)
	}

	result := models.AdSlotResult{
		AdSlotID:    target.ID,
		PriceRank:   resolution.PriceRank,
		StoreRank:   resolution.StoreRank,
		PriceDiff:   resolution.PriceDiff,
		StoreDiff:   resolution.StoreDiff,
		Found:       resolution.Found(),
		CollectedAt: time.Now().UTC(),
	}

	if err = c.adSlots.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("failed to save ad slot result: %w", err)
	}

	c.progress(job, 100)
	if !result.Found {
		log.Infof("ad slot %d not found within %d pages for %q", target.ID, c.maxPages, job.KeywordText)
	}
	return nil
}

// collectPages fetches pages strictly in order; a short page means the
// provider ran out of results, so later pages are skipped.
func (c *Collector) collectPages(ctx context.Context, job *models.CollectionJob) ([]clients.Item, error) {

	var all []clients.Item

	for page := 1; page <= c.maxPages; page++ {

		start := time.Now()
		items, _, err := c.searchPage(ctx, job, page)
		metrics.JobStepDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())

		if err != nil {
			return nil, fmt.Errorf("failed to search page %d for %q: %w", page, job.KeywordText, err)
		}

		all = append(all, items...)

		if page == 1 {
			c.progress(job, 20)
		}
		if len(items) < c.perPage {
			break
		}
	}

	return all, nil
}

func (c *Collector) searchPage(ctx context.Context, job *models.CollectionJob, page int) ([]clients.Item, int, error) {

	if job.Type == models.MarketplaceKeyword {
		return c.marketplace.Search(ctx, job.KeywordText, page, c.perPage)
	}

	return c.shopping.Search(ctx, shopping.SearchParameters{
		Keyword: job.KeywordText,
		Page:    page,
		PerPage: c.perPage,
	})
}

func (c *Collector) progress(job *models.CollectionJob, percent int) {
	log.Debugf("job %d (%q) progress: %d%%", job.ID, job.KeywordText, percent)
}
