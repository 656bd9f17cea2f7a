// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"fmt"

	"github.com/edfkernel/edfkernel/pkg/logging"
	"github.com/edfkernel/edfkernel/pkg/metrics"
)

// AccessProtocol selects how a SemaphoreSet propagates priority across a
// lock's owner and waiters.
type AccessProtocol int

const (
	// ProtocolSimple performs no priority elevation at all: a job blocks at
	// its own priority and waits its turn.
	ProtocolSimple AccessProtocol = iota
	// ProtocolHLP (Highest-Locker Priority) elevates the calling job to the
	// resource's static ceiling on every wait, and reverts it on every
	// signal/abandon, unconditionally of whether the wait actually blocked.
	ProtocolHLP
	// ProtocolPIP (Priority Inheritance) elevates the whole wait queue only
	// when a wait actually blocks the caller, and reverts it — plus the
	// caller itself — only when a signal/abandon actually succeeds in
	// releasing ownership.
	ProtocolPIP
)

func (p AccessProtocol) String() string {
	switch p {
	case ProtocolSimple:
		return "SIMPLE"
	case ProtocolHLP:
		return "HLP"
	case ProtocolPIP:
		return "PIP"
	default:
		return "UNKNOWN"
	}
}

// SemaphoreSet owns one Semaphore per resource id referenced anywhere in a
// task set, plus the access protocol governing all of them. Resource id 0
// is never backed by a Semaphore: it is the reserved "no resource" id, and
// every operation on it is a no-op success.
type SemaphoreSet struct {
	protocol       AccessProtocol
	semaphores     map[int]*Semaphore
	ceilings       map[int]float64
	lowestPriority float64
	metrics        metrics.Collector
	logger         logging.Logger

	// Warnings accumulates non-fatal caller errors (e.g. a section
	// referencing a resource id absent from the set) encountered during a
	// run. They are not logged here; Simulate surfaces them as
	// ValidationErrors in its Result.
	Warnings []string
}

// NewSemaphoreSet builds one Semaphore per distinct resource id and binds
// the given access protocol. lowestPriority is the value a semaphore's
// Priority field rests at while it has no owner and no waiters, and the
// fallback HLP ceiling for a resource absent from ceilings. A nil collector
// or logger falls back to a no-op implementation.
func NewSemaphoreSet(resourceIDs []int, protocol AccessProtocol, lowestPriority float64, ceilings map[int]float64, collector metrics.Collector, logger logging.Logger) *SemaphoreSet {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	ss := &SemaphoreSet{
		protocol:       protocol,
		semaphores:     make(map[int]*Semaphore, len(resourceIDs)),
		ceilings:       ceilings,
		lowestPriority: lowestPriority,
		metrics:        collector,
		logger:         logger,
	}
	for _, id := range resourceIDs {
		if id == 0 {
			continue
		}
		ss.semaphores[id] = newSemaphore(id, lowestPriority)
	}
	return ss
}

// Protocol returns the access protocol this set was constructed with.
func (ss *SemaphoreSet) Protocol() AccessProtocol {
	return ss.protocol
}

func (ss *SemaphoreSet) resolve(resource int) *Semaphore {
	sem, ok := ss.semaphores[resource]
	if !ok {
		ss.Warnings = append(ss.Warnings, fmt.Sprintf("resource id %d is not registered in this semaphore set", resource))
		return nil
	}
	return sem
}

func (ss *SemaphoreSet) ceiling(resource int) float64 {
	if ss.ceilings == nil {
		return ss.lowestPriority
	}
	if c, ok := ss.ceilings[resource]; ok {
		return c
	}
	return ss.lowestPriority
}

// Wait attempts to acquire resource on behalf of job. Resource id 0, and any
// id this set has no Semaphore for, is treated as the null lock: the call
// always succeeds and returns 0 without blocking the job. A
// registered resource returns 0 on immediate acquisition or -1 if job must
// block.
func (ss *SemaphoreSet) Wait(resource int, job *Job) int {
	if resource == 0 {
		return 0
	}
	sem := ss.resolve(resource)
	if sem == nil {
		return 0
	}

	result := sem.Wait(job)

	switch ss.protocol {
	case ProtocolHLP:
		before := job.Priority
		if job.ElevatePriority(ss.ceiling(resource)) {
			ss.metrics.RecordPriorityElevation(resource)
			logging.LogElevation(ss.logger, job.Task.ID, job.ID, resource, before, job.Priority)
		}
	case ProtocolPIP:
		if result == -1 && sem.ElevatePriorities() {
			ss.metrics.RecordPriorityElevation(resource)
			logging.LogElevation(ss.logger, job.Task.ID, job.ID, resource, job.Priority, sem.Priority)
		}
	}

	return result
}

// Signal releases job's claim on resource. See Semaphore.Signal for the
// return-value contract; resource id 0 is always a trivial no-op success.
func (ss *SemaphoreSet) Signal(resource int, job *Job) int {
	if resource == 0 {
		return 0
	}
	sem := ss.resolve(resource)
	if sem == nil {
		return 0
	}

	result := sem.Signal(job)
	if result == -1 {
		ss.logger.Warn("signal on a semaphore the job does not own",
			"task_id", job.Task.ID, "job_id", job.ID, "resource_id", resource)
	}
	if result == 1 {
		ss.metrics.RecordUnblock(resource)
	}
	ss.onRelease(resource, job, result, sem)
	return result
}

// Abandon is Signal's counterpart for a job ending while still queued on
// resource, whether as owner or as a waiter.
func (ss *SemaphoreSet) Abandon(resource int, job *Job) int {
	if resource == 0 {
		return 0
	}
	sem := ss.resolve(resource)
	if sem == nil {
		return 0
	}

	wasOwner := sem.owner == job
	result := sem.Abandon(job)
	if wasOwner && result == 1 {
		ss.metrics.RecordUnblock(resource)
	}
	ss.onRelease(resource, job, result, sem)
	return result
}

func (ss *SemaphoreSet) onRelease(resource int, job *Job, result int, sem *Semaphore) {
	switch ss.protocol {
	case ProtocolHLP:
		before := job.Priority
		if job.RevertPriority() {
			ss.metrics.RecordPriorityRevert(resource)
			logging.LogElevation(ss.logger, job.Task.ID, job.ID, resource, before, job.Priority)
		}
	case ProtocolPIP:
		if result >= 0 {
			before := job.Priority
			reverted := job.RevertPriority()
			if sem.RevertPriorities() || reverted {
				ss.metrics.RecordPriorityRevert(resource)
				logging.LogElevation(ss.logger, job.Task.ID, job.ID, resource, before, job.Priority)
			}
		}
	}
}

// IsTaken reports whether resource is currently held by anyone. An
// unregistered or null resource id is never taken.
func (ss *SemaphoreSet) IsTaken(resource int) bool {
	if resource == 0 {
		return false
	}
	sem, ok := ss.semaphores[resource]
	if !ok {
		return false
	}
	return sem.IsTaken()
}
