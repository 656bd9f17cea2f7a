// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package sim

import "sort"

// Semaphore is a single binary mutex over one resource id. It holds a
// FIFO-by-priority wait queue, the current owner, and the effective priority
// of the head of that queue — used by the HLP/PIP protocols to know who to
// elevate and by how much.
type Semaphore struct {
	ResourceID       int
	lowestPriority   float64
	Priority         float64
	ElevatedPriority float64
	queue            []*Job
	owner            *Job
	taken            bool
}

func newSemaphore(resourceID int, lowestPriority float64) *Semaphore {
	return &Semaphore{
		ResourceID:       resourceID,
		lowestPriority:   lowestPriority,
		Priority:         lowestPriority,
		ElevatedPriority: lowestPriority,
	}
}

// Wait appends job to the semaphore's queue and re-sorts it by priority. It
// returns 0 if the semaphore was free and job now owns it, or -1 if job must
// block behind the current owner.
func (s *Semaphore) Wait(job *Job) int {
	s.queue = append(s.queue, job)
	s.sortQueue()
	s.Priority = s.queue[0].Priority

	if s.taken {
		return -1
	}
	s.owner = job
	s.taken = true
	return 0
}

// Signal releases job's claim on the semaphore. If job was the owner and
// other jobs are waiting, ownership hands off to the new head of the queue,
// which is unblocked. Returns 1 on a hand-off, 0 if the semaphore is now
// free, or -1 if job was not the owner (a caller error — the simulation
// continues regardless).
func (s *Semaphore) Signal(job *Job) int {
	s.removeFromQueue(job)

	if s.owner != job {
		return -1
	}

	if len(s.queue) > 0 {
		s.owner = s.queue[0]
		s.Priority = s.owner.Priority
		s.owner.Unblock()
		return 1
	}

	s.owner = nil
	s.Priority = s.lowestPriority
	s.taken = false
	return 0
}

// Abandon is used when a job ends while still queued on this semaphore. If
// job was the owner this delegates to Signal and returns its result (1 on a
// hand-off, 0 if the semaphore is now free); otherwise it is simply removed
// from the queue and 1 is returned, or -1 if job was not present.
func (s *Semaphore) Abandon(job *Job) int {
	if s.owner == job {
		return s.Signal(job)
	}
	if !s.queueContains(job) {
		return -1
	}
	s.removeFromQueue(job)
	if len(s.queue) > 0 {
		s.Priority = s.queue[0].Priority
	}
	return 1
}

// ElevatePriorities lowers (improves) every queued job's priority to the
// semaphore's current Priority when that floor has dropped since the last
// elevation — used by PIP so the owner inherits a blocker's priority. It
// reports whether any job's priority actually changed.
func (s *Semaphore) ElevatePriorities() bool {
	if s.Priority >= s.ElevatedPriority {
		return false
	}
	s.ElevatedPriority = s.Priority
	changed := false
	for _, j := range s.queue {
		if j.ElevatePriority(s.Priority) {
			changed = true
		}
	}
	return changed
}

// RevertPriorities is the symmetric counterpart of ElevatePriorities: when
// the floor has since risen (the highest-priority waiter left, or the owner
// changed), every queued job's priority is reverted. It reports whether any
// job's priority actually changed.
func (s *Semaphore) RevertPriorities() bool {
	if s.ElevatedPriority >= s.Priority {
		return false
	}
	s.ElevatedPriority = s.Priority
	changed := false
	for _, j := range s.queue {
		if j.RevertPriority() {
			changed = true
		}
	}
	return changed
}

// IsTaken reports whether this semaphore is currently held.
func (s *Semaphore) IsTaken() bool {
	return s.taken
}

func (s *Semaphore) sortQueue() {
	sort.SliceStable(s.queue, func(i, k int) bool {
		return s.queue[i].Priority < s.queue[k].Priority
	})
}

func (s *Semaphore) removeFromQueue(job *Job) {
	for i, other := range s.queue {
		if other == job {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (s *Semaphore) queueContains(job *Job) bool {
	for _, other := range s.queue {
		if other == job {
			return true
		}
	}
	return false
}
