package events

import "github.com/rankowl/rank-tracker/internal/domain/models"

var JobFinishedTopic = "JobFinishedEvent"

type JobOutcome string

const (
	OutcomeCompleted JobOutcome = "completed"
	//OutcomeBlockedRetry marks a soft failure with a delayed replacement job
	//already enqueued.
	OutcomeBlockedRetry JobOutcome = "blocked_retry"
	OutcomeFailed       JobOutcome = "failed"
)

type JobFinished struct {
	JobID        int
	KeywordID    int
	KeywordText  string
	Type         models.KeywordType
	Outcome      JobOutcome
	BlockedRetry int
}
