// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"github.com/mohae/deepcopy"
)

// JobState is a job's position in its lifecycle. RUNNING and READY are not
// distinguished by this package: the scheduler elides the distinction by
// always treating the head of the ready queue as "the running job" for the
// instant it is selected.
type JobState int

const (
	JobCreated JobState = iota
	JobReady
	JobBlocked
	JobEnded
	JobAborted
)

func (s JobState) String() string {
	switch s {
	case JobCreated:
		return "CREATED"
	case JobReady:
		return "READY"
	case JobBlocked:
		return "BLOCKED"
	case JobEnded:
		return "ENDED"
	case JobAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Job is one release of a Task: the unit of scheduling.
type Job struct {
	Task             *Task
	ID               int
	ReleaseTime      float64
	AbsoluteDeadline float64

	RemainingExecutionTime float64
	Sections               []Section
	CurrentSectionIndex    int

	State JobState

	OriginalPriority float64
	Priority         float64

	GotLock bool

	readyQueue   *jobQueue
	waitingQueue *jobQueue
	semaphores   *SemaphoreSet
}

func newJob(task *Task, id int, releaseTime float64) *Job {
	// A job owns an independent, mutable copy of its task's section list:
	// durations are decremented in place as the job executes, while the
	// task's own list is only ever a template.
	sections := deepcopy.Copy(task.Sections).([]Section)

	return &Job{
		Task:                   task,
		ID:                     id,
		ReleaseTime:            releaseTime,
		AbsoluteDeadline:       releaseTime + task.RelativeDeadline,
		RemainingExecutionTime: task.WCET,
		Sections:               sections,
		State:                  JobCreated,
		OriginalPriority:       task.Priority(),
		Priority:               task.Priority(),
	}
}

// ResourceHeld returns the resource id this job currently holds, or 0 if it
// holds none (it is not in a state where holding is meaningful, or its
// current section is non-critical).
func (j *Job) ResourceHeld() int {
	if j.State != JobReady && j.State != JobBlocked {
		return 0
	}
	if !j.GotLock {
		return 0
	}
	return j.currentSection().ResourceID
}

func (j *Job) currentSection() *Section {
	return &j.Sections[j.CurrentSectionIndex]
}

// Release transitions a CREATED job to READY, attaching it to the ready and
// waiting queues it will use for the rest of its life and the semaphore set
// it will lock resources through.
func (j *Job) Release(semaphores *SemaphoreSet, ready, waiting *jobQueue) {
	j.semaphores = semaphores
	j.readyQueue = ready
	j.waitingQueue = waiting
	j.State = JobReady
	ready.insert(j)
}

// End terminates a job, either because it finished its work (ENDED) or
// because it was forcibly ended with work remaining, typically at its
// absolute deadline (ABORTED). It removes the job from whichever queue it
// currently occupies and, if it was blocked, abandons its pending lock
// request.
func (j *Job) End() {
	switch j.State {
	case JobReady:
		j.readyQueue.remove(j)
		// A job aborted while preempted mid-critical-section still owns its
		// lock; abandon it so the resource does not stay taken forever.
		if j.GotLock && j.CurrentSectionIndex < len(j.Sections) {
			j.semaphores.Abandon(j.currentSection().ResourceID, j)
			j.GotLock = false
		}
	case JobBlocked:
		j.waitingQueue.remove(j)
		j.semaphores.Abandon(j.currentSection().ResourceID, j)
	}

	if j.RemainingExecutionTime > 0 {
		j.State = JobAborted
	} else {
		j.State = JobEnded
	}

	j.readyQueue = nil
	j.waitingQueue = nil
	j.semaphores = nil
}

// Unblock moves a BLOCKED job back to READY. It is called by a semaphore
// hand-off (Semaphore.Signal), which is why the job arrives already holding
// the lock it was waiting for.
func (j *Job) Unblock() {
	j.waitingQueue.remove(j)
	j.State = JobReady
	j.readyQueue.insert(j)
	j.GotLock = true
}

// ElevatePriority lowers (improves) this job's effective priority to p, if
// p is actually better than its current priority. A job's priority is only
// ever elevated downward and later restored upward by RevertPriority, never
// raised past OriginalPriority. It reports whether the
// priority actually changed.
func (j *Job) ElevatePriority(p float64) bool {
	if p < j.Priority {
		j.Priority = p
		j.resort()
		return true
	}
	return false
}

// RevertPriority restores this job's effective priority to its original,
// un-elevated value. It reports whether the priority actually changed.
func (j *Job) RevertPriority() bool {
	if j.Priority != j.OriginalPriority {
		j.Priority = j.OriginalPriority
		j.resort()
		return true
	}
	return false
}

// resort re-sorts whichever of the ready/waiting queues this job currently
// occupies, since a priority change can reorder its position. This must
// happen before the scheduler next selects a job to dispatch.
func (j *Job) resort() {
	switch j.State {
	case JobReady:
		if j.readyQueue != nil {
			j.readyQueue.resort()
		}
	case JobBlocked:
		if j.waitingQueue != nil {
			j.waitingQueue.resort()
		}
	}
}

// executeOutcome is returned by Execute: how much simulated time actually
// passed, and which resource (0 for none) the job was occupying.
type executeOutcome struct {
	Progression float64
	Resource    int
}

// Execute advances this job by up to budget units of simulated time within
// its current section. If the section's resource is already held, or can be
// acquired immediately, the job progresses; otherwise it blocks and
// Progression is 0. When the section completes, the job advances to the
// next one and releases the resource; when all sections are consumed the
// job ends.
func (j *Job) Execute(budget float64) executeOutcome {
	if j.CurrentSectionIndex >= len(j.Sections) {
		j.End()
		return executeOutcome{}
	}

	sec := j.currentSection()
	progression := sec.Duration
	if budget < progression {
		progression = budget
	}
	resource := sec.ResourceID

	if j.GotLock || j.semaphores.Wait(resource, j) == 0 {
		j.GotLock = true
		j.RemainingExecutionTime -= progression
		sec.Duration -= progression

		if sec.Duration == 0 {
			j.CurrentSectionIndex++
			if j.semaphores.Signal(resource, j) >= 0 {
				j.GotLock = false
			}
		}
	} else {
		j.State = JobBlocked
		j.readyQueue.remove(j)
		j.waitingQueue.insert(j)
		progression = 0
	}

	if j.RemainingExecutionTime == 0 {
		j.End()
	}

	return executeOutcome{Progression: progression, Resource: resource}
}
