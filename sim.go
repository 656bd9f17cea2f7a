// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"math"
	"time"

	"github.com/google/uuid"

	edferrors "github.com/edfkernel/edfkernel/pkg/errors"
	"github.com/edfkernel/edfkernel/pkg/logging"
	"github.com/edfkernel/edfkernel/pkg/metrics"
)

// RunOptions configures a single call to Simulate.
type RunOptions struct {
	// Protocol selects the resource-access protocol governing every
	// semaphore in the run.
	Protocol AccessProtocol

	// LowestPriority is the sentinel priority a semaphore rests at while
	// unheld, and the fallback HLP ceiling for a resource with no locking
	// task. It must be worse than any task's relative deadline.
	LowestPriority float64

	Logger  logging.Logger
	Metrics metrics.Collector
}

// DefaultRunOptions returns the options Simulate uses if none are given:
// PIP (the protocol the reference driver exercises), an always-worse-than-
// any-deadline priority sentinel, and no-op logging/metrics.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Protocol:       ProtocolPIP,
		LowestPriority: defaultLowestPriority,
		Logger:         logging.NoOpLogger{},
		Metrics:        metrics.NoOpCollector{},
	}
}

// defaultLowestPriority is the sentinel a semaphore rests at while unheld.
// MaxFloat64 is worse than any real deadline regardless of the task set's
// time scale.
const defaultLowestPriority = math.MaxFloat64

// Result is everything a simulation run produces: the schedule trace,
// every job release generated, and any non-fatal problems found along the
// way.
type Result struct {
	RunID     string
	Trace     []TraceRecord
	TaskSet   *TaskSet
	Scheduler *Scheduler
	Warnings  []error
}

// Simulate parses and expands input into a task set, builds its semaphore
// set under the configured access protocol, and runs the scheduler across
// [input.StartTime, input.EndTime). It never returns an error for a
// malformed-but-recoverable task set (a bad task, a dropped job release, an
// unknown resource id) — those are reported as non-fatal Warnings — and
// returns an error only for structurally invalid input.
func Simulate(input TaskSetInput, opts RunOptions) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOpCollector{}
	}
	if opts.LowestPriority <= 0 {
		opts.LowestPriority = defaultLowestPriority
	}

	if input.EndTime < input.StartTime {
		return nil, edferrors.NewInternalError(edferrors.ErrorCodeInvalidTaskSet, "endTime must not precede startTime", nil)
	}

	runID := uuid.NewString()
	logger := opts.Logger.With("run_id", runID)
	defer logging.LogDuration(logger, time.Now(), "simulate")

	taskSet := NewTaskSet(input)
	logger.Info("task set expanded", "tasks", len(taskSet.Tasks()), "jobs", len(taskSet.Jobs()), "resources", len(taskSet.Resources()))

	ceilings := taskSet.ResourceCeilings(opts.LowestPriority)
	semaphores := NewSemaphoreSet(taskSet.Resources(), opts.Protocol, opts.LowestPriority, ceilings, opts.Metrics, logger)

	scheduler := NewScheduler(taskSet, semaphores, logger, opts.Metrics)
	trace := scheduler.Run(input.EndTime)

	warnings := make([]error, 0, len(taskSet.Warnings)+len(semaphores.Warnings))
	for _, w := range taskSet.Warnings {
		warnings = append(warnings, w)
	}
	for _, w := range semaphores.Warnings {
		warnings = append(warnings, edferrors.NewValidationError(edferrors.ErrorCodeUnregisteredLock, w, "resource", nil))
	}

	return &Result{
		RunID:     runID,
		Trace:     trace,
		TaskSet:   taskSet,
		Scheduler: scheduler,
		Warnings:  warnings,
	}, nil
}
