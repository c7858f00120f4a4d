package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rankowl/rank-tracker/internal/events"
	"github.com/stretchr/testify/assert"
)

type stubDepthSource struct {
	depth atomic.Int64
}

func (s *stubDepthSource) Depth(ctx context.Context) (int64, error) {
	return s.depth.Load(), nil
}

func finishedEvent() events.JobFinished {
	return events.JobFinished{Outcome: events.OutcomeCompleted}
}

func Test_CycleTracker_Begin_RejectsOverlappingCycle(t *testing.T) {

	assert := assert.New(t)
	tracker := NewCycleTracker(&stubDepthSource{}, nil)

	assert.True(tracker.Begin(3))
	assert.False(tracker.Begin(3))
	assert.True(tracker.Running())
}

func Test_CycleTracker_Begin_RejectsEmptyCycle(t *testing.T) {

	assert := assert.New(t)
	tracker := NewCycleTracker(&stubDepthSource{}, nil)

	assert.False(tracker.Begin(0))
	assert.False(tracker.Running())
}

func Test_CycleTracker_CompletesWhenEventsCoveredAndQueueEmpty(t *testing.T) {

	assert := assert.New(t)

	queue := &stubDepthSource{}
	complete := make(chan struct{})

	var tracker *CycleTracker
	tracker = NewCycleTracker(queue, func() {
		//the tracker must stay busy while the sync runs
		assert.True(tracker.Running())
		complete <- struct{}{}
	})

	tracker.Begin(2)
	queue.depth.Store(1)

	tracker.OnJobFinished(finishedEvent())
	select {
	case <-complete:
		assert.Fail("cycle completed before all jobs finished")
	case <-time.After(50 * time.Millisecond):
	}

	queue.depth.Store(0)
	tracker.OnJobFinished(finishedEvent())

	select {
	case <-complete:
	case <-time.After(time.Second):
		assert.Fail("timed out waiting for cycle completion")
	}

	//reset runs right after the callback
	assert.Eventually(func() bool { return !tracker.Running() }, time.Second, 10*time.Millisecond)
}

func Test_CycleTracker_DrainsDelayedRetriesBeforeCompleting(t *testing.T) {

	assert := assert.New(t)

	queue := &stubDepthSource{}
	complete := make(chan struct{})

	tracker := NewCycleTracker(queue, func() {
		complete <- struct{}{}
	})

	tracker.Begin(2)

	//a blocked job finished but its delayed replacement is still queued
	queue.depth.Store(1)
	tracker.OnJobFinished(finishedEvent())
	tracker.OnJobFinished(events.JobFinished{Outcome: events.OutcomeBlockedRetry, BlockedRetry: 1})

	select {
	case <-complete:
		assert.Fail("cycle completed while a retry was still queued")
	case <-time.After(50 * time.Millisecond):
	}

	//the replacement ran and the queue drained
	queue.depth.Store(0)
	tracker.OnJobFinished(finishedEvent())

	select {
	case <-complete:
	case <-time.After(time.Second):
		assert.Fail("timed out waiting for cycle completion")
	}
}

type flakyDepthSource struct {
	failures atomic.Int64
}

func (s *flakyDepthSource) Depth(ctx context.Context) (int64, error) {
	if s.failures.Add(-1) >= 0 {
		return 0, errors.New("database is locked")
	}
	return 0, nil
}

func Test_CycleTracker_RecheckCompletesCycleAfterDepthReadFailure(t *testing.T) {

	assert := assert.New(t)

	queue := &flakyDepthSource{}
	queue.failures.Store(1)
	complete := make(chan struct{})

	tracker := NewCycleTracker(queue, func() {
		complete <- struct{}{}
	})

	tracker.Begin(1)

	//the depth read fails on the final event and no further event arrives
	tracker.OnJobFinished(finishedEvent())

	select {
	case <-complete:
		assert.Fail("cycle completed despite the failed depth read")
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(tracker.Running())

	tracker.Recheck()

	select {
	case <-complete:
	case <-time.After(time.Second):
		assert.Fail("timed out waiting for cycle completion")
	}
	assert.Eventually(func() bool { return !tracker.Running() }, time.Second, 10*time.Millisecond)
}

func Test_CycleTracker_IgnoresEventsWhileIdle(t *testing.T) {

	assert := assert.New(t)

	tracker := NewCycleTracker(&stubDepthSource{}, func() {
		assert.Fail("no cycle was started")
	})

	tracker.OnJobFinished(finishedEvent())
	assert.False(tracker.Running())
}
