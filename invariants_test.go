// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertMutualExclusion checks that for the given resource,
// no two trace records overlap in time.
func assertMutualExclusion(t *testing.T, trace []TraceRecord, resource int) {
	t.Helper()

	var spans []TraceRecord
	for _, r := range trace {
		if r.Resource == resource {
			spans = append(spans, r)
		}
	}

	for i := 0; i < len(spans); i++ {
		for k := i + 1; k < len(spans); k++ {
			overlap := spans[i].Start < spans[k].End && spans[k].Start < spans[i].End
			assert.False(t, overlap, "resource %d: spans %v and %v overlap", resource, spans[i], spans[k])
		}
	}
}

// assertNoDoubleBooking checks that at any instant, at most
// one job's trace record is open (the processor is uniprocessor).
func assertNoDoubleBooking(t *testing.T, trace []TraceRecord) {
	t.Helper()

	var jobSpans []TraceRecord
	for _, r := range trace {
		if r.TaskID != 0 {
			jobSpans = append(jobSpans, r)
		}
	}

	for i := 0; i < len(jobSpans); i++ {
		for k := i + 1; k < len(jobSpans); k++ {
			a, b := jobSpans[i], jobSpans[k]
			overlap := a.Start < b.End && b.Start < a.End
			assert.False(t, overlap, "job spans %v and %v overlap on the single processor", a, b)
		}
	}
}

// TestConservationOfWork verifies conservation of work: every ENDED job's
// trace contribution sums to exactly its task's WCET.
func TestConservationOfWork(t *testing.T) {
	input := TaskSetInput{
		Tasks: []TaskInput{
			{ID: 1, Period: 20, WCET: 4, Sections: [][2]float64{{0, 1}, {1, 2}, {0, 1}}},
			{ID: 2, Period: 5, WCET: 1, Sections: [][2]float64{{1, 1}}},
		},
		StartTime: 0,
		EndTime:   20,
	}

	result, err := Simulate(input, DefaultRunOptions())
	require.NoError(t, err)

	totals := make(map[[2]int]float64)
	for _, r := range result.Trace {
		if r.TaskID == 0 {
			continue
		}
		totals[[2]int{r.TaskID, r.JobID}] += r.End - r.Start
	}

	for _, task := range result.TaskSet.Tasks() {
		for _, job := range task.Jobs() {
			if job.State != JobEnded {
				continue
			}
			assert.InDelta(t, task.WCET, totals[[2]int{task.ID, job.ID}], 1e-9,
				"task %d job %d should have consumed its full WCET", task.ID, job.ID)
		}
	}
}

// TestDeadlineDiscipline verifies deadline discipline: no ENDED job's last
// trace record ends after its absolute deadline, and any job short of its
// WCET at its deadline is ABORTED.
func TestDeadlineDiscipline(t *testing.T) {
	input := TaskSetInput{
		Tasks: []TaskInput{
			{ID: 1, Period: 4, WCET: 5, Deadline: deadlinePtr(4), Sections: [][2]float64{{0, 5}}},
			{ID: 2, Period: 6, WCET: 2, Sections: [][2]float64{{0, 2}}},
		},
		StartTime: 0,
		EndTime:   12,
	}

	result, err := Simulate(input, DefaultRunOptions())
	require.NoError(t, err)

	lastEnd := make(map[[2]int]float64)
	for _, r := range result.Trace {
		if r.TaskID == 0 {
			continue
		}
		key := [2]int{r.TaskID, r.JobID}
		if r.End > lastEnd[key] {
			lastEnd[key] = r.End
		}
	}

	for _, task := range result.TaskSet.Tasks() {
		for _, job := range task.Jobs() {
			switch job.State {
			case JobEnded:
				assert.LessOrEqual(t, lastEnd[[2]int{task.ID, job.ID}], job.AbsoluteDeadline)
			case JobAborted:
				assert.Greater(t, job.RemainingExecutionTime, 0.0)
			}
		}
	}
}

// TestSectionStructure verifies section structure: a job's section list,
// as consumed, is a deep copy that never mutates its task's template.
func TestSectionStructure(t *testing.T) {
	input := TaskSetInput{
		Tasks: []TaskInput{
			{ID: 1, Period: 20, WCET: 4, Sections: [][2]float64{{0, 1}, {1, 2}, {0, 1}}},
			{ID: 2, Period: 5, WCET: 1, Sections: [][2]float64{{1, 1}}},
		},
		StartTime: 0,
		EndTime:   20,
	}

	result, err := Simulate(input, DefaultRunOptions())
	require.NoError(t, err)

	task := result.TaskSet.TaskByID(1)
	want := []Section{{ResourceID: 0, Duration: 1}, {ResourceID: 1, Duration: 2}, {ResourceID: 0, Duration: 1}}
	assert.Equal(t, want, task.Sections, "task's template sections must not be mutated by job execution")

	for _, job := range task.Jobs() {
		require.Len(t, job.Sections, len(want))
		for i, s := range job.Sections {
			assert.Equal(t, want[i].ResourceID, s.ResourceID)
		}
	}
}

// TestPriorityElevationMonotonicity verifies elevation monotonicity: no job's
// priority is left elevated past its original value once a run completes.
func TestPriorityElevationMonotonicity(t *testing.T) {
	input := TaskSetInput{
		Tasks: []TaskInput{
			{ID: 1, Period: 20, WCET: 4, Sections: [][2]float64{{0, 1}, {1, 2}, {0, 1}}},
			{ID: 2, Period: 5, WCET: 1, Sections: [][2]float64{{1, 1}}},
		},
		StartTime: 0,
		EndTime:   20,
	}

	opts := DefaultRunOptions()
	opts.Protocol = ProtocolPIP

	result, err := Simulate(input, opts)
	require.NoError(t, err)

	for _, task := range result.TaskSet.Tasks() {
		for _, job := range task.Jobs() {
			assert.GreaterOrEqual(t, job.Priority, job.OriginalPriority,
				"task %d job %d priority must never rise above its original", task.ID, job.ID)
			if job.State == JobEnded || job.State == JobAborted {
				assert.Equal(t, job.OriginalPriority, job.Priority,
					"task %d job %d priority must revert to original by the time it ends", task.ID, job.ID)
			}
		}
	}
}
