package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"github.com/rankowl/rank-tracker/internal/clients"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/rankowl/rank-tracker/internal/events"
	"github.com/rankowl/rank-tracker/internal/logger"
	"github.com/rankowl/rank-tracker/internal/metrics"
	log "github.com/sirupsen/logrus"
)

type Collector interface {
	Run(ctx context.Context, job *models.CollectionJob) error
}

type PoolOptions struct {
	Types             []models.KeywordType
	Concurrency       int
	PollInterval      time.Duration
	MaxAttempts       int
	BlockedRetryCap   int
	BlockedRetryDelay time.Duration
}

// Pool pulls jobs of its partition's types from the queue and runs them on a
// fixed number of workers.
type Pool struct {
	queue     *Queue
	collector Collector
	bus       EventBus.Bus
	opts      PoolOptions
	quit      chan struct{}
	wg        sync.WaitGroup
}

func NewPool(queue *Queue, collector Collector, bus EventBus.Bus, opts PoolOptions) *Pool {

	if opts.PollInterval == 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.BlockedRetryCap == 0 {
		opts.BlockedRetryCap = 3
	}
	if opts.BlockedRetryDelay == 0 {
		opts.BlockedRetryDelay = 5 * time.Minute
	}

	return &Pool{
		queue:     queue,
		collector: collector,
		bus:       bus,
		opts:      opts,
		quit:      make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.opts.Concurrency; i++ {
		p.wg.Add(1)
		go p.work()
	}
	log.Infof("worker pool started for %v with concurrency %d", p.opts.Types, p.opts.Concurrency)
}

// Stop lets in-flight jobs finish; no new jobs are claimed after it is
// called.
func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

func (p *Pool) work() {
	defer p.wg.Done()

	for {
		select {
		case <-p.quit:
			return
		default:
		}

		job, err := p.queue.Claim(context.Background(), p.opts.Types)
		if err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
				Errorf("failed to claim job: %v", err)
			p.sleep()
			continue
		}

		if job == nil {
			p.sleep()
			continue
		}

		p.handle(job)
	}
}

func (p *Pool) sleep() {
	select {
	case <-p.quit:
	case <-time.After(p.opts.PollInterval):
	}
}

func (p *Pool) handle(job *models.CollectionJob) {

	start := time.Now()
	err := p.collector.Run(context.Background(), job)
	metrics.JobStepDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())

	ctx := context.Background()

	if err == nil {
		if err = p.queue.Complete(ctx, job); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
				Errorf("failed to complete job %d: %v", job.ID, err)
		}
		metrics.JobsCounter.WithLabelValues(string(job.Type), "completed").Inc()
		p.publish(job, events.OutcomeCompleted, 0)
		return
	}

	if p.isBlocked(job, err) {
		p.handleBlocked(ctx, job, err)
		return
	}

	if job.Attempts < p.opts.MaxAttempts {
		backoff := time.Duration(job.Attempts) * 30 * time.Second
		log.Warnf("job %d for %q failed (attempt %d/%d), retrying in %v: %v",
			job.ID, job.KeywordText, job.Attempts, p.opts.MaxAttempts, backoff, err)
		if err = p.queue.Fail(ctx, job, err.Error(), true, backoff); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
				Errorf("failed to requeue job %d: %v", job.ID, err)
		}
		return
	}

	log.WithField(logger.ErrorTypeField, errorType(job.Type)).
		Errorf("job %d for %q failed after %d attempts: %v", job.ID, job.KeywordText, job.Attempts, err)
	if err = p.queue.Fail(ctx, job, err.Error(), false, 0); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
			Errorf("failed to finalize job %d: %v", job.ID, err)
	}
	metrics.JobsCounter.WithLabelValues(string(job.Type), "failed").Inc()
	p.publish(job, events.OutcomeFailed, 0)
}

// only marketplace access can be network blocked; for other types a blocked
// error falls through to the generic attempt policy
func (p *Pool) isBlocked(job *models.CollectionJob, err error) bool {
	return errors.Is(err, clients.ErrBlocked) && job.Type == models.MarketplaceKeyword
}

// A blocked marketplace job is not left to the generic backoff: the original
// job is reported as a soft failure and an explicit delayed replacement with
// the bumped retry counter is enqueued, up to the cap.
func (p *Pool) handleBlocked(ctx context.Context, job *models.CollectionJob, cause error) {

	if job.RetryCount >= p.opts.BlockedRetryCap {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeMarketplaceApi).
			Errorf("job for %q blocked %d times, giving up", job.KeywordText, job.RetryCount+1)
		if err := p.queue.Fail(ctx, job, cause.Error(), false, 0); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
				Errorf("failed to finalize blocked job %d: %v", job.ID, err)
		}
		metrics.JobsCounter.WithLabelValues(string(job.Type), "blocked").Inc()
		p.publish(job, events.OutcomeFailed, job.RetryCount)
		return
	}

	retryNumber := job.RetryCount + 1
	softFailure := fmt.Sprintf("blockedRetry: %d, cause: %v", retryNumber, cause)
	if err := p.queue.Fail(ctx, job, softFailure, false, 0); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
			Errorf("failed to finalize blocked job %d: %v", job.ID, err)
	}

	if _, err := p.queue.EnqueueRetry(ctx, *job, p.opts.BlockedRetryDelay); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
			Errorf("failed to enqueue blocked retry for %q: %v", job.KeywordText, err)
	}

	log.Warnf("marketplace access blocked for %q, retry %d/%d scheduled in %v",
		job.KeywordText, retryNumber, p.opts.BlockedRetryCap, p.opts.BlockedRetryDelay)
	metrics.JobsCounter.WithLabelValues(string(job.Type), "blocked_retry").Inc()
	p.publish(job, events.OutcomeBlockedRetry, retryNumber)
}

func (p *Pool) publish(job *models.CollectionJob, outcome events.JobOutcome, blockedRetry int) {
	p.bus.Publish(events.JobFinishedTopic, events.JobFinished{
		JobID:        job.ID,
		KeywordID:    job.KeywordID,
		KeywordText:  job.KeywordText,
		Type:         job.Type,
		Outcome:      outcome,
		BlockedRetry: blockedRetry,
	})
}

func errorType(keywordType models.KeywordType) string {
	if keywordType == models.MarketplaceKeyword {
		return logger.ErrorTypeMarketplaceApi
	}
	return logger.ErrorTypeShoppingApi
}
