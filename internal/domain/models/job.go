package models

import "time"

type JobStatus string

const (
	JobWaiting   JobStatus = "waiting"
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

type CollectionJob struct {
	ID          int
	KeywordID   int
	KeywordText string
	Type        KeywordType
	AdSlotID    int
	Priority    int
	Status      JobStatus `gorm:"default:waiting;index"`
	Attempts    int
	RetryCount  int //blocked re-enqueues, not generic attempts
	NotBefore   time.Time
	LastError   string
	EnqueuedAt  time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
}
