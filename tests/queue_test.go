package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/rankowl/rank-tracker/internal/clients"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/rankowl/rank-tracker/internal/events"
	"github.com/rankowl/rank-tracker/internal/queue"
	"github.com/rankowl/rank-tracker/internal/repositories"
	"github.com/stretchr/testify/assert"
)

func clearJobs() {
	dbCtx.DB.Exec("DELETE from collection_jobs WHERE TRUE")
}

func Test_Queue_DuplicateEnqueueIsDropped(t *testing.T) {

	defer clearJobs()
	ctx := context.Background()

	q := queue.NewQueue(repositories.NewJobsRepository(dbCtx.DB))

	inserted, err := q.EnqueueKeyword(ctx, *keyword)
	assert.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = q.EnqueueKeyword(ctx, *keyword)
	assert.NoError(t, err)
	assert.False(t, inserted)

	depth, err := q.Depth(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	//same text under another provider is a distinct job
	marketplace := models.NewKeyword(keyword.Text, models.MarketplaceKeyword, 0)
	inserted, err = q.EnqueueKeyword(ctx, *marketplace)
	assert.NoError(t, err)
	assert.True(t, inserted)
}

func Test_Queue_ClaimPrefersHigherPriority(t *testing.T) {

	defer clearJobs()
	ctx := context.Background()

	q := queue.NewQueue(repositories.NewJobsRepository(dbCtx.DB))

	_, err := q.EnqueueKeyword(ctx, *models.NewKeyword("low priority", models.GeneralKeyword, 1))
	assert.NoError(t, err)
	_, err = q.EnqueueKeyword(ctx, *models.NewKeyword("high priority", models.GeneralKeyword, 9))
	assert.NoError(t, err)

	job, err := q.Claim(ctx, []models.KeywordType{models.GeneralKeyword})
	assert.NoError(t, err)
	if assert.NotNil(t, job) {
		assert.Equal(t, "high priority", job.KeywordText)
		assert.Equal(t, models.JobActive, job.Status)
		assert.Equal(t, 1, job.Attempts)
	}
}

func Test_Queue_ClaimHonorsPartitionAndDelay(t *testing.T) {

	defer clearJobs()
	ctx := context.Background()

	q := queue.NewQueue(repositories.NewJobsRepository(dbCtx.DB))

	_, err := q.EnqueueKeyword(ctx, *models.NewKeyword("marketplace only", models.MarketplaceKeyword, 0))
	assert.NoError(t, err)

	//the general partition must not see marketplace jobs
	job, err := q.Claim(ctx, []models.KeywordType{models.GeneralKeyword, models.AdSlotKeyword})
	assert.NoError(t, err)
	assert.Nil(t, job)

	//a delayed replacement stays invisible until its time comes
	delayed := models.CollectionJob{KeywordText: "delayed retry", Type: models.GeneralKeyword}
	_, err = q.EnqueueRetry(ctx, delayed, time.Hour)
	assert.NoError(t, err)

	job, err = q.Claim(ctx, []models.KeywordType{models.GeneralKeyword})
	assert.NoError(t, err)
	assert.Nil(t, job)
}

func Test_Queue_BlockedMarketplaceJobRetriesUpToCap(t *testing.T) {

	defer clearJobs()
	ctx := context.Background()

	q := queue.NewQueue(repositories.NewJobsRepository(dbCtx.DB))
	collector := &mockCollector{err: clients.ErrBlocked}

	var mu sync.Mutex
	var outcomes []events.JobOutcome
	terminal := make(chan struct{})

	bus := EventBus.New()
	err := bus.Subscribe(events.JobFinishedTopic, func(event events.JobFinished) {
		mu.Lock()
		outcomes = append(outcomes, event.Outcome)
		mu.Unlock()
		if event.Outcome == events.OutcomeFailed {
			close(terminal)
		}
	})
	assert.NoError(t, err)

	pool := queue.NewPool(q, collector, bus, queue.PoolOptions{
		Types:             []models.KeywordType{models.MarketplaceKeyword},
		Concurrency:       1,
		PollInterval:      10 * time.Millisecond,
		MaxAttempts:       3,
		BlockedRetryCap:   3,
		BlockedRetryDelay: 20 * time.Millisecond,
	})

	_, err = q.EnqueueKeyword(ctx, *models.NewKeyword("blocked keyword", models.MarketplaceKeyword, 0))
	assert.NoError(t, err)

	pool.Start()
	select {
	case <-terminal:
	case <-time.After(10 * time.Second):
		assert.Fail(t, "timed out waiting for the blocked job to give up")
	}
	pool.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []events.JobOutcome{
		events.OutcomeBlockedRetry,
		events.OutcomeBlockedRetry,
		events.OutcomeBlockedRetry,
		events.OutcomeFailed,
	}, outcomes)
	assert.Equal(t, 4, collector.runCount())

	depth, err := q.Depth(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), depth)

	counts, err := q.CountByStatus(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), counts[models.JobFailed])
}

func Test_Queue_SuccessfulJobIsCompletedAndTrimmed(t *testing.T) {

	defer clearJobs()
	ctx := context.Background()

	q := queue.NewQueue(repositories.NewJobsRepository(dbCtx.DB))
	collector := &mockCollector{}

	done := make(chan struct{})
	bus := EventBus.New()
	err := bus.Subscribe(events.JobFinishedTopic, func(event events.JobFinished) {
		if event.Outcome == events.OutcomeCompleted {
			close(done)
		}
	})
	assert.NoError(t, err)

	pool := queue.NewPool(q, collector, bus, queue.PoolOptions{
		Types:        []models.KeywordType{models.GeneralKeyword},
		Concurrency:  1,
		PollInterval: 10 * time.Millisecond,
	})

	_, err = q.EnqueueKeyword(ctx, *models.NewKeyword("happy keyword", models.GeneralKeyword, 0))
	assert.NoError(t, err)

	pool.Start()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		assert.Fail(t, "timed out waiting for job completion")
	}
	pool.Stop()

	counts, err := q.CountByStatus(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.JobCompleted])

	removed, err := q.TrimFinished(ctx, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
