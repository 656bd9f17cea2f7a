// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"sort"

	edferrors "github.com/edfkernel/edfkernel/pkg/errors"
)

// TaskSet is a parsed, expanded collection of tasks: the tasks themselves,
// every job release generated for the schedule window, and the union of
// resource ids any task's sections reference. It is built once by
// NewTaskSet and then handed to a Scheduler.
type TaskSet struct {
	tasks     map[int]*Task
	taskOrder []int
	jobs      []*Job
	resources []int

	// Warnings accumulates non-fatal problems found while parsing or
	// expanding the task set (duplicate ids, non-monotonic releases,
	// invalid resource ids) — the run continues regardless.
	Warnings []*edferrors.ValidationError
}

// NewTaskSet parses input into a TaskSet and expands every task's job
// releases across [input.StartTime, input.EndTime), or from the explicit
// input.ReleaseTimes table when present.
func NewTaskSet(input TaskSetInput) *TaskSet {
	ts := &TaskSet{tasks: make(map[int]*Task)}
	ts.parseTasks(input)
	ts.collectResources()
	ts.buildJobReleases(input)
	return ts
}

func (ts *TaskSet) parseTasks(input TaskSetInput) {
	for _, taskInput := range input.Tasks {
		if _, exists := ts.tasks[taskInput.ID]; exists {
			ts.warn(edferrors.ErrorCodeDuplicateTaskID, "duplicate task id, later definition ignored", "taskId", taskInput.ID)
			continue
		}

		if taskInput.Period < 0 && taskInput.relativeDeadline() < 0 {
			ts.warn(edferrors.ErrorCodeInvalidTaskSet, "aperiodic task must not have a negative relative deadline", "taskId", taskInput.ID)
			continue
		}

		task := &Task{
			ID:               taskInput.ID,
			Period:           taskInput.Period,
			WCET:             taskInput.WCET,
			RelativeDeadline: taskInput.relativeDeadline(),
			Offset:           taskInput.Offset,
			Sections:         taskInput.sections(),
		}

		negativeResource := false
		for _, id := range task.Resources() {
			if id < 0 {
				ts.warn(edferrors.ErrorCodeInvalidResourceID, "negative resource id", "taskId", taskInput.ID)
				negativeResource = true
				break
			}
		}
		if negativeResource {
			continue
		}

		var sectionSum float64
		for _, s := range task.Sections {
			sectionSum += s.Duration
		}
		if diff := sectionSum - task.WCET; diff > 1e-9 || diff < -1e-9 {
			ts.warn(edferrors.ErrorCodeInvalidTaskSet, "section durations must sum to the task's WCET", "taskId", taskInput.ID)
			continue
		}

		ts.tasks[task.ID] = task
		ts.taskOrder = append(ts.taskOrder, task.ID)
	}
}

func (ts *TaskSet) collectResources() {
	seen := make(map[int]struct{})
	for _, id := range ts.taskOrder {
		for _, r := range ts.tasks[id].Resources() {
			seen[r] = struct{}{}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ts.resources = ids
}

func (ts *TaskSet) buildJobReleases(input TaskSetInput) {
	var jobs []*Job

	if len(input.ReleaseTimes) > 0 {
		for _, rt := range input.ReleaseTimes {
			task, ok := ts.tasks[rt.TaskID]
			if !ok {
				ts.warn(edferrors.ErrorCodeInvalidTaskSet, "release time references unknown task id", "taskId", rt.TaskID)
				continue
			}
			// Releases before the schedule window are discarded, not errors.
			if rt.TimeInstant < input.StartTime {
				continue
			}
			job, ok := task.SpawnJob(rt.TimeInstant)
			if !ok {
				ts.warn(edferrors.ErrorCodeNonMonotonicJob, "release time is not monotonic or violates the task's period", "taskId", rt.TaskID)
				continue
			}
			jobs = append(jobs, job)
		}
	} else {
		for _, id := range ts.taskOrder {
			task := ts.tasks[id]
			t := task.Offset
			if input.StartTime > t {
				t = input.StartTime
			}
			for t < input.EndTime {
				job, ok := task.SpawnJob(t)
				if ok {
					jobs = append(jobs, job)
				}

				if task.Period >= 0 {
					t += task.Period
				} else {
					t = input.EndTime
				}
			}
		}
	}

	ts.jobs = jobs
}

func (ts *TaskSet) warn(code edferrors.ErrorCode, message, field string, value interface{}) {
	ts.Warnings = append(ts.Warnings, edferrors.NewValidationError(code, message, field, value))
}

// Tasks returns every task in the set, in the order first seen in the input.
func (ts *TaskSet) Tasks() []*Task {
	out := make([]*Task, 0, len(ts.taskOrder))
	for _, id := range ts.taskOrder {
		out = append(out, ts.tasks[id])
	}
	return out
}

// TaskByID returns the task with the given id, or nil if none exists.
func (ts *TaskSet) TaskByID(id int) *Task {
	return ts.tasks[id]
}

// Jobs returns every job release generated for this task set. Periodic
// expansion groups them by task, in task order, each task's jobs in release
// order; with an explicit release table they follow the table's order.
func (ts *TaskSet) Jobs() []*Job {
	return ts.jobs
}

// Resources returns the sorted, distinct, non-zero resource ids referenced
// anywhere in this task set.
func (ts *TaskSet) Resources() []int {
	return ts.resources
}

// ResourceCeilings returns, for every resource id in the set, the best
// (numerically smallest) priority among tasks whose sections ever lock it
// — the ceiling HLP elevates a locker to for the duration it holds that
// resource. A resource with no locking task (unreachable in practice, since
// every registered resource comes from some task's sections) rests at
// lowestPriority.
func (ts *TaskSet) ResourceCeilings(lowestPriority float64) map[int]float64 {
	ceilings := make(map[int]float64, len(ts.resources))
	for _, r := range ts.resources {
		ceilings[r] = lowestPriority
	}
	for _, id := range ts.taskOrder {
		task := ts.tasks[id]
		for _, r := range task.Resources() {
			if task.Priority() < ceilings[r] {
				ceilings[r] = task.Priority()
			}
		}
	}
	return ceilings
}
