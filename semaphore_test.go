// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLowestPriority = 1000.0

// releasedJob builds a job attached to the given queues, as Release leaves
// it, so semaphore hand-offs can move it between them.
func releasedJob(t *testing.T, taskID int, deadline float64, ss *SemaphoreSet, ready, waiting *jobQueue) *Job {
	t.Helper()
	task := &Task{ID: taskID, Period: deadline, WCET: 1, RelativeDeadline: deadline, Sections: []Section{{ResourceID: 1, Duration: 1}}}
	job, ok := task.SpawnJob(0)
	require.True(t, ok)
	job.Release(ss, ready, waiting)
	return job
}

// block mimics the transition Execute performs when Wait returns -1.
func block(job *Job, ready, waiting *jobQueue) {
	job.State = JobBlocked
	ready.remove(job)
	waiting.insert(job)
}

func TestSemaphore_WaitAcquireAndBlock(t *testing.T) {
	ready, waiting := &jobQueue{}, &jobQueue{}
	ss := NewSemaphoreSet([]int{1}, ProtocolSimple, testLowestPriority, nil, nil, nil)

	low := releasedJob(t, 1, 20, ss, ready, waiting)
	high := releasedJob(t, 2, 5, ss, ready, waiting)

	assert.Equal(t, 0, ss.Wait(1, low))
	assert.True(t, ss.IsTaken(1))

	assert.Equal(t, -1, ss.Wait(1, high))
	assert.True(t, ss.IsTaken(1))
}

func TestSemaphore_SignalHandsOffToHighestPriorityWaiter(t *testing.T) {
	ready, waiting := &jobQueue{}, &jobQueue{}
	ss := NewSemaphoreSet([]int{1}, ProtocolSimple, testLowestPriority, nil, nil, nil)

	low := releasedJob(t, 1, 20, ss, ready, waiting)
	mid := releasedJob(t, 2, 10, ss, ready, waiting)
	high := releasedJob(t, 3, 5, ss, ready, waiting)

	require.Equal(t, 0, ss.Wait(1, low))
	require.Equal(t, -1, ss.Wait(1, mid))
	block(mid, ready, waiting)
	require.Equal(t, -1, ss.Wait(1, high))
	block(high, ready, waiting)

	// The hand-off goes to the highest-priority waiter, not FIFO order.
	assert.Equal(t, 1, ss.Signal(1, low))
	assert.Equal(t, JobReady, high.State)
	assert.True(t, high.GotLock)
	assert.Equal(t, JobBlocked, mid.State)
	assert.True(t, ready.contains(high))
	assert.False(t, waiting.contains(high))
}

func TestSemaphore_SignalByNonOwnerIsCallerError(t *testing.T) {
	ready, waiting := &jobQueue{}, &jobQueue{}
	ss := NewSemaphoreSet([]int{1}, ProtocolSimple, testLowestPriority, nil, nil, nil)

	owner := releasedJob(t, 1, 20, ss, ready, waiting)
	waiter := releasedJob(t, 2, 5, ss, ready, waiting)

	require.Equal(t, 0, ss.Wait(1, owner))
	require.Equal(t, -1, ss.Wait(1, waiter))

	assert.Equal(t, -1, ss.Signal(1, waiter))
	assert.True(t, ss.IsTaken(1), "a non-owner signal must not free the semaphore")
}

func TestSemaphore_SignalFreesWhenQueueEmpties(t *testing.T) {
	ready, waiting := &jobQueue{}, &jobQueue{}
	ss := NewSemaphoreSet([]int{1}, ProtocolSimple, testLowestPriority, nil, nil, nil)

	owner := releasedJob(t, 1, 20, ss, ready, waiting)
	require.Equal(t, 0, ss.Wait(1, owner))

	assert.Equal(t, 0, ss.Signal(1, owner))
	assert.False(t, ss.IsTaken(1))
}

func TestSemaphore_AbandonWaiterLeavesOwnerIntact(t *testing.T) {
	ready, waiting := &jobQueue{}, &jobQueue{}
	ss := NewSemaphoreSet([]int{1}, ProtocolSimple, testLowestPriority, nil, nil, nil)

	owner := releasedJob(t, 1, 20, ss, ready, waiting)
	waiter := releasedJob(t, 2, 5, ss, ready, waiting)

	require.Equal(t, 0, ss.Wait(1, owner))
	require.Equal(t, -1, ss.Wait(1, waiter))
	block(waiter, ready, waiting)

	assert.Equal(t, 1, ss.Abandon(1, waiter))
	assert.True(t, ss.IsTaken(1))
	assert.Equal(t, JobBlocked, waiter.State, "abandoning a waiter must not unblock it")
}

func TestSemaphore_AbandonOwnerHandsOff(t *testing.T) {
	ready, waiting := &jobQueue{}, &jobQueue{}
	ss := NewSemaphoreSet([]int{1}, ProtocolSimple, testLowestPriority, nil, nil, nil)

	owner := releasedJob(t, 1, 20, ss, ready, waiting)
	waiter := releasedJob(t, 2, 5, ss, ready, waiting)

	require.Equal(t, 0, ss.Wait(1, owner))
	require.Equal(t, -1, ss.Wait(1, waiter))
	block(waiter, ready, waiting)

	assert.Equal(t, 1, ss.Abandon(1, owner))
	assert.Equal(t, JobReady, waiter.State)
	assert.True(t, waiter.GotLock)
}

func TestJobEnd_AbortedHolderReleasesItsLock(t *testing.T) {
	ready, waiting := &jobQueue{}, &jobQueue{}
	ss := NewSemaphoreSet([]int{1}, ProtocolSimple, testLowestPriority, nil, nil, nil)

	holder := releasedJob(t, 1, 20, ss, ready, waiting)
	waiter := releasedJob(t, 2, 5, ss, ready, waiting)

	// The holder acquires the resource mid-section, as Execute would.
	require.Equal(t, 0, ss.Wait(1, holder))
	holder.GotLock = true
	require.Equal(t, -1, ss.Wait(1, waiter))
	block(waiter, ready, waiting)

	// Aborted at its deadline while preempted (READY, lock held): the lock
	// must hand off rather than stay taken forever.
	holder.End()

	assert.Equal(t, JobAborted, holder.State)
	assert.False(t, holder.GotLock)
	assert.Equal(t, JobReady, waiter.State)
	assert.True(t, waiter.GotLock)
}

func TestSemaphoreSet_ResourceZeroIsIdentity(t *testing.T) {
	ss := NewSemaphoreSet([]int{1}, ProtocolPIP, testLowestPriority, nil, nil, nil)

	job := &Job{Task: &Task{ID: 1}, ID: 1}
	assert.Equal(t, 0, ss.Wait(0, job))
	assert.Equal(t, 0, ss.Signal(0, job))
	assert.Equal(t, 0, ss.Abandon(0, job))
	assert.False(t, ss.IsTaken(0))
}

func TestSemaphoreSet_UnregisteredResourceActsAsNullLock(t *testing.T) {
	ss := NewSemaphoreSet([]int{1}, ProtocolPIP, testLowestPriority, nil, nil, nil)

	job := &Job{Task: &Task{ID: 1}, ID: 1}
	assert.Equal(t, 0, ss.Wait(7, job), "an unknown resource id must not block the job")
	assert.NotEmpty(t, ss.Warnings)
}

func TestSemaphoreSet_HLPElevatesCallerToCeiling(t *testing.T) {
	ready, waiting := &jobQueue{}, &jobQueue{}
	ceilings := map[int]float64{1: 5}
	ss := NewSemaphoreSet([]int{1}, ProtocolHLP, testLowestPriority, ceilings, nil, nil)

	low := releasedJob(t, 1, 20, ss, ready, waiting)

	// Elevation is unconditional under HLP: it applies even with no
	// contention at all.
	require.Equal(t, 0, ss.Wait(1, low))
	assert.Equal(t, 5.0, low.Priority)
	assert.Equal(t, 20.0, low.OriginalPriority)

	require.Equal(t, 0, ss.Signal(1, low))
	assert.Equal(t, 20.0, low.Priority)
}

func TestSemaphoreSet_PIPElevatesOnlyOnContention(t *testing.T) {
	ready, waiting := &jobQueue{}, &jobQueue{}
	ss := NewSemaphoreSet([]int{1}, ProtocolPIP, testLowestPriority, nil, nil, nil)

	low := releasedJob(t, 1, 20, ss, ready, waiting)
	high := releasedJob(t, 2, 5, ss, ready, waiting)

	require.Equal(t, 0, ss.Wait(1, low))
	assert.Equal(t, 20.0, low.Priority, "no elevation before anyone blocks")

	require.Equal(t, -1, ss.Wait(1, high))
	assert.Equal(t, 5.0, low.Priority, "the owner inherits the blocker's priority")
	block(high, ready, waiting)

	require.Equal(t, 1, ss.Signal(1, low))
	assert.Equal(t, 20.0, low.Priority, "release reverts the inherited priority")
	assert.Equal(t, 5.0, high.Priority)
}

func TestSemaphoreSet_PIPElevationReordersReadyQueue(t *testing.T) {
	ready, waiting := &jobQueue{}, &jobQueue{}
	ss := NewSemaphoreSet([]int{1}, ProtocolPIP, testLowestPriority, nil, nil, nil)

	low := releasedJob(t, 1, 20, ss, ready, waiting)
	releasedJob(t, 2, 10, ss, ready, waiting)
	high := releasedJob(t, 3, 5, ss, ready, waiting)

	require.Equal(t, 0, ss.Wait(1, low))
	require.Equal(t, -1, ss.Wait(1, high))
	block(high, ready, waiting)

	// With high blocked, low has inherited its priority and must now sort
	// ahead of the middle task in the ready queue.
	assert.Same(t, low, ready.head())
}
