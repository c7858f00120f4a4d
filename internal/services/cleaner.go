package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type rankingCleanupRepository interface {
	RemoveOlderThan(ctx context.Context, expirationTime time.Time) (int64, error)
}

type jobCleanupQueue interface {
	TrimFinished(ctx context.Context, keep int) (int64, error)
	RequeueStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Cleaner prunes raw rankings past their retention window and trims finished
// job records down to the observability cap.
type Cleaner struct {
	rankings         rankingCleanupRepository
	queue            jobCleanupQueue
	cron             *cron.Cron
	retentionInDays  int
	finishedJobsKept int
}

func NewCleaner(rankings rankingCleanupRepository, queue jobCleanupQueue,
	retentionInDays, finishedJobsKept int) (*Cleaner, error) {

	if retentionInDays <= 0 {
		return nil, errors.New("retention in days must be greater than zero")
	}

	c := &Cleaner{
		rankings:         rankings,
		queue:            queue,
		cron:             cron.New(),
		retentionInDays:  retentionInDays,
		finishedJobsKept: finishedJobsKept,
	}

	if _, err := c.cron.AddFunc("30 * * * *", c.clean); err != nil {
		return nil, err
	}

	c.cron.Start()
	log.Infof("cleaner started, raw retention in days: %d", c.retentionInDays)
	return c, nil
}

func (c *Cleaner) Stop() {
	c.cron.Stop()
}

func (c *Cleaner) clean() {

	ctx := context.Background()
	expirationTime := time.Now().Add(-time.Duration(c.retentionInDays) * 24 * time.Hour)

	if rowsAffected, err := c.rankings.RemoveOlderThan(ctx, expirationTime); err != nil {
		log.Errorf("Failed to clean old rankings: %v", err)
	} else if rowsAffected > 0 {
		log.Infof("Old rankings cleaned, affected rows: %v", rowsAffected)
	}

	if rowsAffected, err := c.queue.TrimFinished(ctx, c.finishedJobsKept); err != nil {
		log.Errorf("Failed to trim finished jobs: %v", err)
	} else if rowsAffected > 0 {
		log.Infof("Finished job records trimmed, affected rows: %v", rowsAffected)
	}

	if rowsAffected, err := c.queue.RequeueStuck(ctx, time.Hour); err != nil {
		log.Errorf("Failed to requeue stuck jobs: %v", err)
	} else if rowsAffected > 0 {
		log.Warnf("Requeued %v stuck jobs", rowsAffected)
	}
}
