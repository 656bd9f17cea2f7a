// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

/*
Package sim implements a discrete-event simulator for uniprocessor real-time
task scheduling under Earliest-Deadline-First dispatching with shared-resource
locking governed by a pluggable resource-access protocol.

# Overview

Given a task set with periodic or sporadic release patterns and per-task
critical-section structure, Simulate produces a ground-truth schedule trace:
an ordered list of (start, end, task, job, resource) records describing
exactly what ran on the single processor and when.

Three resource-access protocols are supported:

  - ProtocolSimple — plain blocking, no priority elevation; a released lock
    is handed to the highest-priority waiter.
  - ProtocolHLP — Highest-Locker Priority: a job's priority is raised to the
    best priority of any task that ever locks a resource, for the duration
    it holds that resource.
  - ProtocolPIP — Priority Inheritance: a blocked job's priority is donated
    to the current lock holder for as long as the block persists.

# Basic usage

	input := sim.TaskSetInput{
	    Tasks: []sim.TaskInput{
	        {ID: 1, Period: 10, WCET: 3, Sections: [][2]float64{{0, 3}}},
	    },
	    StartTime: 0,
	    EndTime:   10,
	}
	result, err := sim.Simulate(input, sim.DefaultRunOptions())
	if err != nil {
	    log.Fatal(err)
	}
	for _, rec := range result.Trace {
	    fmt.Println(rec)
	}

# Scope

This package implements the scheduling kernel only: task/job expansion, the
semaphore and protocol layer, the job state machine, and the time-advance
loop. JSON parsing of task-set files (pkg/taskfile), the CLI entry point
(cmd/edfsim), and any human-readable or graphical presentation of the trace
are external collaborators, not part of this package.

# Non-goals

Multiprocessor scheduling, preemption thresholds or ceilings spanning
multiple locks, deadlock detection, schedulability analysis, and interactive
control are out of scope.
*/
package sim
