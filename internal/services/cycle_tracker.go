package services

import (
	"context"
	"sync"
	"time"

	"github.com/rankowl/rank-tracker/internal/events"
	"github.com/rankowl/rank-tracker/internal/logger"
	"github.com/rankowl/rank-tracker/internal/metrics"
	log "github.com/sirupsen/logrus"
)

type cycleState int

const (
	stateIdle cycleState = iota
	stateCollecting
	stateDraining
	stateSyncing
)

type queueDepthSource interface {
	Depth(ctx context.Context) (int64, error)
}

// CycleTracker detects completion of a collection cycle. A cycle is complete
// when finished-job events have covered the enqueued total AND the queue
// reports no waiting or active jobs; the second check keeps delayed blocked
// retries inside the cycle.
type CycleTracker struct {
	mu         sync.Mutex
	state      cycleState
	expected   int
	done       int
	startedAt  time.Time
	queue      queueDepthSource
	onComplete func()
}

func NewCycleTracker(queue queueDepthSource, onComplete func()) *CycleTracker {
	return &CycleTracker{queue: queue, onComplete: onComplete}
}

// Begin starts tracking a cycle of the given size. Returns false when a
// cycle is already in progress.
func (t *CycleTracker) Begin(expected int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != stateIdle || expected == 0 {
		return false
	}

	t.state = stateCollecting
	t.expected = expected
	t.done = 0
	t.startedAt = time.Now()
	return true
}

func (t *CycleTracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != stateIdle
}

// CycleStatus is a point-in-time snapshot of the current cycle.
type CycleStatus struct {
	Running  bool `json:"running"`
	Expected int  `json:"expected"`
	Done     int  `json:"done"`
}

func (t *CycleTracker) Status() CycleStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return CycleStatus{
		Running:  t.state != stateIdle,
		Expected: t.expected,
		Done:     t.done,
	}
}

func (t *CycleTracker) OnJobFinished(event events.JobFinished) {
	t.mu.Lock()

	if t.state == stateIdle {
		t.mu.Unlock()
		return
	}

	t.done++
	if t.state == stateCollecting && t.done >= t.expected {
		t.state = stateDraining
	}

	shouldCheck := t.state == stateDraining
	t.mu.Unlock()

	if shouldCheck {
		t.checkDrained()
	}
}

// Recheck re-runs the completion check of a draining cycle. The depth read
// in OnJobFinished can fail on the final event, after which no further event
// arrives to trigger it again.
func (t *CycleTracker) Recheck() {
	t.mu.Lock()
	draining := t.state == stateDraining
	t.mu.Unlock()

	if draining {
		t.checkDrained()
	}
}

func (t *CycleTracker) checkDrained() {

	depth, err := t.queue.Depth(context.Background())
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
			Errorf("failed to check queue depth: %v", err)
		return
	}
	if depth > 0 {
		return
	}

	t.mu.Lock()
	if t.state != stateDraining {
		t.mu.Unlock()
		return
	}
	t.state = stateSyncing
	duration := time.Since(t.startedAt)
	done := t.done
	t.mu.Unlock()

	metrics.CycleDuration.Observe(duration.Seconds())
	log.Infof("collection cycle completed after %v (%d jobs)", duration, done)

	// the sync runs off the worker goroutine; the tracker stays out of Idle
	// until it finishes so no new cycle overlaps the sync
	go func() {
		if t.onComplete != nil {
			t.onComplete()
		}
		t.reset()
	}()
}

func (t *CycleTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = stateIdle
	t.expected = 0
	t.done = 0
}
