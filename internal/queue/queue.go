package queue

import (
	"context"
	"time"

	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/rankowl/rank-tracker/internal/metrics"
	"github.com/rankowl/rank-tracker/internal/repositories"
	log "github.com/sirupsen/logrus"
)

// Queue is the durable collection-job queue. Jobs live in the store, so
// waiting and delayed-retry jobs survive a process restart. Enqueueing
// dedups against waiting/active jobs for the same (keyword text, type).
type Queue struct {
	jobs *repositories.Jobs
}

func NewQueue(jobs *repositories.Jobs) *Queue {
	return &Queue{jobs: jobs}
}

func (q *Queue) EnqueueKeyword(ctx context.Context, keyword models.Keyword) (bool, error) {

	job := &models.CollectionJob{
		KeywordID:   keyword.ID,
		KeywordText: keyword.Text,
		Type:        keyword.Type,
		Priority:    keyword.Priority,
	}

	inserted, err := q.jobs.Insert(ctx, job)
	if err != nil {
		return false, err
	}
	if !inserted {
		log.Debugf("dropped duplicate job for keyword %q (%v)", keyword.Text, keyword.Type)
	}
	q.observeDepth(ctx)
	return inserted, nil
}

func (q *Queue) EnqueueAdSlot(ctx context.Context, target models.AdSlotTarget, keywordText string) (bool, error) {

	job := &models.CollectionJob{
		KeywordID:   target.KeywordID,
		KeywordText: keywordText,
		Type:        models.AdSlotKeyword,
		AdSlotID:    target.ID,
	}

	inserted, err := q.jobs.Insert(ctx, job)
	if err != nil {
		return false, err
	}
	if !inserted {
		log.Debugf("dropped duplicate ad-slot job for %q", keywordText)
	}
	q.observeDepth(ctx)
	return inserted, nil
}

// EnqueueRetry adds a delayed replacement for a blocked job, carrying the
// incremented blocked-retry counter. The original job must already be
// finalized or the dedup check would drop the replacement.
func (q *Queue) EnqueueRetry(ctx context.Context, failed models.CollectionJob, delay time.Duration) (bool, error) {

	job := &models.CollectionJob{
		KeywordID:   failed.KeywordID,
		KeywordText: failed.KeywordText,
		Type:        failed.Type,
		AdSlotID:    failed.AdSlotID,
		Priority:    failed.Priority,
		RetryCount:  failed.RetryCount + 1,
		NotBefore:   time.Now().UTC().Add(delay),
	}

	return q.jobs.Insert(ctx, job)
}

func (q *Queue) Claim(ctx context.Context, types []models.KeywordType) (*models.CollectionJob, error) {
	return q.jobs.Claim(ctx, types)
}

func (q *Queue) Complete(ctx context.Context, job *models.CollectionJob) error {
	defer q.observeDepth(ctx)
	return q.jobs.Complete(ctx, job)
}

func (q *Queue) Fail(ctx context.Context, job *models.CollectionJob, cause string,
	retry bool, backoff time.Duration) error {
	defer q.observeDepth(ctx)
	return q.jobs.Fail(ctx, job, cause, retry, backoff)
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.jobs.Depth(ctx)
}

func (q *Queue) CountByStatus(ctx context.Context) (map[models.JobStatus]int64, error) {
	return q.jobs.CountByStatus(ctx)
}

func (q *Queue) TrimFinished(ctx context.Context, keep int) (int64, error) {
	return q.jobs.TrimFinished(ctx, keep)
}

func (q *Queue) RequeueStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	return q.jobs.RequeueStuck(ctx, olderThan)
}

func (q *Queue) observeDepth(ctx context.Context) {
	if depth, err := q.jobs.Depth(ctx); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}
}
