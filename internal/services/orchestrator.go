package services

import (
	"context"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/rankowl/rank-tracker/internal/events"
	"github.com/rankowl/rank-tracker/internal/logger"
)

type keywordSource interface {
	Active(ctx context.Context, keywordType models.KeywordType) ([]models.Keyword, error)
	GetByID(ctx context.Context, id int) (*models.Keyword, error)
}

type adSlotSource interface {
	Active(ctx context.Context) ([]models.AdSlotTarget, error)
}

type orchestratorQueue interface {
	EnqueueKeyword(ctx context.Context, keyword models.Keyword) (bool, error)
	EnqueueAdSlot(ctx context.Context, target models.AdSlotTarget, keywordText string) (bool, error)
	Depth(ctx context.Context) (int64, error)
}

type OrchestratorOptions struct {
	CronExpression   string
	Location         *time.Location
	BacklogThreshold int
}

// Orchestrator drives collection cycles: on each cron tick it enqueues every
// active keyword of both types plus the active ad slots, then waits for the
// cycle tracker to confirm completion before syncing the tiers.
type Orchestrator struct {
	cron     *cron.Cron
	queue    orchestratorQueue
	keywords keywordSource
	adSlots  adSlotSource
	syncer   *Syncer
	tracker  *CycleTracker
	opts     OrchestratorOptions

	mu            sync.Mutex
	cycleKeywords []int
}

func NewOrchestrator(bus EventBus.Bus, queue orchestratorQueue, keywords keywordSource,
	adSlots adSlotSource, syncer *Syncer, opts OrchestratorOptions) (*Orchestrator, error) {

	o := &Orchestrator{
		cron:     cron.New(cron.WithLocation(opts.Location)),
		queue:    queue,
		keywords: keywords,
		adSlots:  adSlots,
		syncer:   syncer,
		opts:     opts,
	}
	o.tracker = NewCycleTracker(queue, o.onCycleComplete)

	if err := bus.Subscribe(events.JobFinishedTopic, o.tracker.OnJobFinished); err != nil {
		return nil, err
	}

	if _, err := o.cron.AddFunc(opts.CronExpression, o.tick); err != nil {
		return nil, err
	}

	// fold the finished local day shortly after its midnight
	if _, err := o.cron.AddFunc("5 0 * * *", o.runDaily); err != nil {
		return nil, err
	}

	return o, nil
}

func (o *Orchestrator) Start() {
	o.cron.Start()
	log.Infof("orchestrator started with schedule %q in %v", o.opts.CronExpression, o.opts.Location)
}

func (o *Orchestrator) Stop() {
	o.cron.Stop()
}

// Tracker is exposed for the ops API's cycle status endpoint.
func (o *Orchestrator) Tracker() *CycleTracker {
	return o.tracker
}

func (o *Orchestrator) tick() {

	if o.tracker.Running() {
		// a failed depth read on the final job event leaves the cycle
		// draining with no further event to retry the completion check
		o.tracker.Recheck()
		log.Info("skipping collection tick: previous cycle still running")
		return
	}

	ctx := context.Background()

	depth, err := o.queue.Depth(ctx)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
			Errorf("failed to read queue depth: %v", err)
		return
	}
	if depth > int64(o.opts.BacklogThreshold) {
		log.Warnf("skipping collection tick: queue backlog %d exceeds threshold %d", depth, o.opts.BacklogThreshold)
		return
	}

	enqueued, keywordIDs := o.enqueueAll(ctx)
	if enqueued == 0 {
		log.Info("collection tick enqueued nothing")
		return
	}

	o.mu.Lock()
	o.cycleKeywords = keywordIDs
	o.mu.Unlock()

	o.tracker.Begin(enqueued)
	log.Infof("collection cycle started with %d jobs", enqueued)
}

func (o *Orchestrator) enqueueAll(ctx context.Context) (int, []int) {

	enqueued := 0
	var keywordIDs []int

	for _, keywordType := range []models.KeywordType{models.GeneralKeyword, models.MarketplaceKeyword} {

		keywords, err := o.keywords.Active(ctx, keywordType)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to fetch active %v keywords: %v", keywordType, err)
			continue
		}

		for _, keyword := range keywords {
			inserted, err := o.queue.EnqueueKeyword(ctx, keyword)
			if err != nil {
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
					Errorf("failed to enqueue keyword %q: %v", keyword.Text, err)
				continue
			}
			if inserted {
				enqueued++
				keywordIDs = append(keywordIDs, keyword.ID)
			}
		}
	}

	targets, err := o.adSlots.Active(ctx)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to fetch active ad slots: %v", err)
		return enqueued, keywordIDs
	}

	for _, target := range targets {
		keyword, err := o.keywords.GetByID(ctx, target.KeywordID)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to resolve keyword for ad slot %d: %v", target.ID, err)
			continue
		}

		inserted, err := o.queue.EnqueueAdSlot(ctx, target, keyword.Text)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
				Errorf("failed to enqueue ad slot %d: %v", target.ID, err)
			continue
		}
		if inserted {
			enqueued++
		}
	}

	return enqueued, keywordIDs
}

func (o *Orchestrator) onCycleComplete() {
	o.mu.Lock()
	keywordIDs := o.cycleKeywords
	o.mu.Unlock()

	o.syncer.SyncCycle(context.Background(), keywordIDs)
}

func (o *Orchestrator) runDaily() {

	ctx := context.Background()
	day := time.Now().In(o.opts.Location).AddDate(0, 0, -1)

	var keywordIDs []int
	for _, keywordType := range []models.KeywordType{models.GeneralKeyword, models.MarketplaceKeyword} {
		keywords, err := o.keywords.Active(ctx, keywordType)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to fetch %v keywords for daily sync: %v", keywordType, err)
			continue
		}
		for _, keyword := range keywords {
			keywordIDs = append(keywordIDs, keyword.ID)
		}
	}

	o.syncer.SyncDaily(ctx, keywordIDs, day)
}
