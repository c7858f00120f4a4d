package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/rankowl/rank-tracker/internal/api"
	"github.com/rankowl/rank-tracker/internal/clients/marketplace"
	"github.com/rankowl/rank-tracker/internal/clients/shopping"
	"github.com/rankowl/rank-tracker/internal/config"
	"github.com/rankowl/rank-tracker/internal/credentials"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/rankowl/rank-tracker/internal/logger"
	"github.com/rankowl/rank-tracker/internal/metrics"
	"github.com/rankowl/rank-tracker/internal/queue"
	"github.com/rankowl/rank-tracker/internal/repositories"
	"github.com/rankowl/rank-tracker/internal/services"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg := config.Get()

	logger.Setup(cfg.Logger)
	defer logger.Cleanup()

	if cfg.Logger.LokiURL != "" {
		if err := logger.EnableLoki(ctx, cfg.Logger); err != nil {
			log.Errorf("can't enable loki logging: %v", err)
		}
	}

	metrics.StartMetricsServer(cfg.API.MetricsPort)

	dbContext, err := repositories.NewDbContext(cfg.DB.ConnectionString)
	if err != nil {
		log.Fatalf("can't create db context: %v", err)
	}
	defer dbContext.Close()

	if err = dbContext.Migrate(); err != nil {
		log.Fatalf("can't migrate db context: %v", err)
	}

	keywords := repositories.NewKeywordsRepository(dbContext.DB)
	credentialRepo := repositories.NewCredentialsRepository(dbContext.DB)
	rankings := repositories.NewRankingsRepository(dbContext.DB)
	adSlots := repositories.NewAdSlotsRepository(dbContext.DB)
	tiers := repositories.NewTiersRepository(dbContext.DB)
	jobs := repositories.NewJobsRepository(dbContext.DB)

	location := cfg.Collector.Location()

	shoppingPool, err := credentials.NewPool(credentialRepo, "shopping",
		cfg.Providers.CredentialRefreshTTL, cfg.Providers.RateLimitWindow, location)
	if err != nil {
		log.Fatalf("can't create shopping credential pool: %v", err)
	}

	marketplacePool, err := credentials.NewPool(credentialRepo, "marketplace",
		cfg.Providers.CredentialRefreshTTL, cfg.Providers.RateLimitWindow, location)
	if err != nil {
		log.Fatalf("can't create marketplace credential pool: %v", err)
	}

	shoppingClient := shopping.NewClient(cfg.Providers.Shopping.BaseURL, shoppingPool)
	shoppingClient.SetRateLimit(cfg.Providers.Shopping.MaxRequestsPerSecond)

	marketplaceClient := marketplace.NewClient(cfg.Providers.Marketplace.BaseURL,
		marketplacePool, cfg.Providers.Marketplace.RequestTimeout)
	marketplaceClient.SetPacing(cfg.Collector.PacingMin, cfg.Collector.PacingMax)

	collector := services.NewCollector(shoppingClient, marketplaceClient,
		keywords, adSlots, rankings, cfg.Collector.MaxPages, cfg.Collector.ItemsPerPage)

	bus := EventBus.New()
	jobQueue := queue.NewQueue(jobs)

	keywordPool := queue.NewPool(jobQueue, collector, bus, queue.PoolOptions{
		Types:             []models.KeywordType{models.GeneralKeyword, models.MarketplaceKeyword},
		Concurrency:       cfg.Collector.KeywordConcurrency,
		PollInterval:      cfg.Collector.PollInterval,
		MaxAttempts:       cfg.Collector.MaxAttempts,
		BlockedRetryCap:   cfg.Collector.BlockedRetryCap,
		BlockedRetryDelay: cfg.Collector.BlockedRetryDelay,
	})

	adSlotPool := queue.NewPool(jobQueue, collector, bus, queue.PoolOptions{
		Types:           []models.KeywordType{models.AdSlotKeyword},
		Concurrency:     cfg.Collector.AdSlotConcurrency,
		PollInterval:    cfg.Collector.PollInterval,
		MaxAttempts:     cfg.Collector.MaxAttempts,
		BlockedRetryCap: cfg.Collector.BlockedRetryCap,
	})

	topN := cfg.Collector.MaxPages * cfg.Collector.ItemsPerPage
	syncer := services.NewSyncer(rankings, tiers, topN, location)

	orchestrator, err := services.NewOrchestrator(bus, jobQueue,
		repositories.NewCachedKeywords(keywords), adSlots, syncer,
		services.OrchestratorOptions{
			CronExpression:   cfg.Collector.CronExpression,
			Location:         location,
			BacklogThreshold: cfg.Collector.BacklogThreshold,
		})
	if err != nil {
		log.Fatalf("can't create orchestrator: %v", err)
	}

	cleaner, err := services.NewCleaner(rankings, jobQueue,
		cfg.Collector.RawRetentionDays, cfg.Collector.FinishedJobsKept)
	if err != nil {
		log.Fatalf("can't create cleaner: %v", err)
	}

	apiServer := api.NewServer(cfg.API.Port, jobQueue, keywords, adSlots, tiers,
		map[string]*credentials.Pool{
			"shopping":    shoppingPool,
			"marketplace": marketplacePool,
		}, orchestrator.Tracker())

	keywordPool.Start()
	adSlotPool.Start()
	orchestrator.Start()
	apiServer.Run()

	<-ctx.Done()

	log.Info("Shutting down services...")

	orchestrator.Stop()
	cleaner.Stop()
	keywordPool.Stop()
	adSlotPool.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	apiServer.Stop(shutdownCtx)

	log.Info("Services stopped.")
}
