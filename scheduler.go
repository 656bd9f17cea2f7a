// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"time"

	"github.com/edfkernel/edfkernel/pkg/logging"
	"github.com/edfkernel/edfkernel/pkg/metrics"
)

// Scheduler drives the discrete-event time-advance loop: it walks the
// sorted event index one pair of instants at a time,
// applies every RELEASE/DEADLINE event due at the first instant, then lets
// the head of the ready queue run (or idles) until the second.
type Scheduler struct {
	taskSet    *TaskSet
	semaphores *SemaphoreSet
	ready      *jobQueue
	waiting    *jobQueue
	logger     logging.Logger
	metrics    metrics.Collector
}

// NewScheduler builds a Scheduler over taskSet using semaphores for
// resource arbitration. A nil logger or collector falls back to a no-op
// implementation.
func NewScheduler(taskSet *TaskSet, semaphores *SemaphoreSet, logger logging.Logger, collector metrics.Collector) *Scheduler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Scheduler{
		taskSet:    taskSet,
		semaphores: semaphores,
		ready:      &jobQueue{},
		waiting:    &jobQueue{},
		logger:     logger,
		metrics:    collector,
	}
}

// Run simulates the task set from its first event up to scheduleEnd and
// returns the resulting schedule trace.
func (s *Scheduler) Run(scheduleEnd float64) []TraceRecord {
	idx := buildEventIndex(s.taskSet.Jobs(), scheduleEnd)
	var trace traceBuilder

	for i := 0; i < len(idx.times)-1; i++ {
		eventTime := idx.times[i]
		nextEventTime := idx.times[i+1]

		for _, ev := range idx.atTime[eventTime] {
			s.applyEvent(ev, eventTime)
		}

		currTime := eventTime
		for currTime < nextEventTime {
			if s.ready.empty() {
				idleEnd := nextEventTime
				trace.add(currTime, idleEnd, 0, 0, 0)
				s.metrics.RecordIdle(durationOf(idleEnd - currTime))
				currTime = idleEnd
				continue
			}

			selected := s.ready.head()
			outcome := selected.Execute(nextEventTime - currTime)

			if outcome.Progression > 0 {
				trace.add(currTime, currTime+outcome.Progression, selected.Task.ID, selected.ID, outcome.Resource)
				s.metrics.RecordDispatch(selected.Task.ID, selected.ID)
			} else if selected.State == JobBlocked {
				s.metrics.RecordBlock(outcome.Resource)
				logging.LogTransition(s.logger, selected.Task.ID, selected.ID, "BLOCKED", currTime, "resource", outcome.Resource)
			}
			s.reportTerminal(selected)

			currTime += outcome.Progression
		}
	}

	return trace.trace()
}

func (s *Scheduler) applyEvent(ev Event, eventTime float64) {
	switch ev.Kind {
	case EventRelease:
		ev.Job.Release(s.semaphores, s.ready, s.waiting)
		logging.LogTransition(s.logger, ev.Job.Task.ID, ev.Job.ID, "READY", eventTime)
	case EventDeadline:
		// A job that already ran to completion was reported when it ended;
		// its deadline event is then a no-op.
		if ev.Job.State == JobEnded || ev.Job.State == JobAborted {
			return
		}
		ev.Job.End()
		s.reportTerminal(ev.Job)
	}
}

func (s *Scheduler) reportTerminal(j *Job) {
	switch j.State {
	case JobEnded:
		s.metrics.RecordEnd(j.Task.ID, j.ID)
	case JobAborted:
		s.metrics.RecordAbort(j.Task.ID, j.ID)
		logging.LogTransition(s.logger, j.Task.ID, j.ID, "ABORTED", j.AbsoluteDeadline, "remaining", j.RemainingExecutionTime)
		s.logger.Warn("job aborted at deadline", "task", j.Task.ID, "job", j.ID, "deadline", j.AbsoluteDeadline)
	}
}

func durationOf(simUnits float64) time.Duration {
	return time.Duration(simUnits * float64(time.Second))
}
