package repositories

import (
	"context"
	"github.com/pkg/errors"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"gorm.io/gorm"
	"time"
)

type Jobs struct {
	db *gorm.DB
}

func NewJobsRepository(db *gorm.DB) *Jobs {
	return &Jobs{db: db}
}

// Insert adds the job unless a waiting or active job for the same
// (keyword text, type) exists; the duplicate is silently dropped.
func (repo *Jobs) Insert(ctx context.Context, job *models.CollectionJob) (bool, error) {

	inserted := false
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		var count int64
		if err := tx.Model(&models.CollectionJob{}).
			Where("keyword_text = ? AND type = ? AND status IN ?",
				job.KeywordText, job.Type, []models.JobStatus{models.JobWaiting, models.JobActive}).
			Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			return nil
		}

		job.Status = models.JobWaiting
		job.EnqueuedAt = time.Now().UTC()
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})

	return inserted, err
}

// Claim atomically takes the highest-priority due waiting job of one of the
// given types and marks it active.
func (repo *Jobs) Claim(ctx context.Context, types []models.KeywordType) (*models.CollectionJob, error) {

	var claimed *models.CollectionJob
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		var job models.CollectionJob
		err := tx.Where("status = ? AND type IN ? AND not_before <= ?",
			models.JobWaiting, types, time.Now().UTC()).
			Order("priority DESC, enqueued_at").
			First(&job).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		job.Status = models.JobActive
		job.Attempts++
		job.StartedAt = &now

		if err = tx.Save(&job).Error; err != nil {
			return err
		}
		claimed = &job
		return nil
	})

	return claimed, err
}

func (repo *Jobs) Complete(ctx context.Context, job *models.CollectionJob) error {
	now := time.Now().UTC()
	job.Status = models.JobCompleted
	job.FinishedAt = &now
	return repo.db.WithContext(ctx).Save(job).Error
}

// Fail finalizes the job, or returns it to waiting with a delay when retry
// is set.
func (repo *Jobs) Fail(ctx context.Context, job *models.CollectionJob, cause string,
	retry bool, backoff time.Duration) error {

	job.LastError = cause
	if retry {
		job.Status = models.JobWaiting
		job.NotBefore = time.Now().UTC().Add(backoff)
		job.StartedAt = nil
	} else {
		now := time.Now().UTC()
		job.Status = models.JobFailed
		job.FinishedAt = &now
	}
	return repo.db.WithContext(ctx).Save(job).Error
}

// Depth counts waiting and active jobs across both partitions.
func (repo *Jobs) Depth(ctx context.Context) (int64, error) {

	var count int64
	err := repo.db.WithContext(ctx).Model(&models.CollectionJob{}).
		Where("status IN ?", []models.JobStatus{models.JobWaiting, models.JobActive}).
		Count(&count).Error
	return count, err
}

func (repo *Jobs) CountByStatus(ctx context.Context) (map[models.JobStatus]int64, error) {

	var rows []struct {
		Status models.JobStatus
		Count  int64
	}
	err := repo.db.WithContext(ctx).Model(&models.CollectionJob{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.JobStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// TrimFinished keeps only the newest keep finished job rows for
// observability and removes the rest.
func (repo *Jobs) TrimFinished(ctx context.Context, keep int) (int64, error) {

	res := repo.db.WithContext(ctx).
		Where("status IN ? AND id NOT IN (?)",
			[]models.JobStatus{models.JobCompleted, models.JobFailed},
			repo.db.Model(&models.CollectionJob{}).
				Select("id").
				Where("status IN ?", []models.JobStatus{models.JobCompleted, models.JobFailed}).
				Order("finished_at DESC").
				Limit(keep)).
		Delete(&models.CollectionJob{})
	return res.RowsAffected, res.Error
}

// RequeueStuck returns active jobs older than the threshold to waiting;
// recovery path for a worker process killed mid-job.
func (repo *Jobs) RequeueStuck(ctx context.Context, olderThan time.Duration) (int64, error) {

	res := repo.db.WithContext(ctx).Model(&models.CollectionJob{}).
		Where("status = ? AND started_at < ?", models.JobActive, time.Now().UTC().Add(-olderThan)).
		Updates(map[string]any{
			"status":     models.JobWaiting,
			"started_at": nil,
		})
	return res.RowsAffected, res.Error
}
