// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package sim

// TraceRecord is one contiguous span of simulated time during which a
// single job ran (Resource == 0 meaning outside any critical section) or,
// for idle spans, no job ran at all (TaskID == 0, JobID == 0).
type TraceRecord struct {
	Start    float64
	End      float64
	TaskID   int
	JobID    int
	Resource int
}

// traceBuilder accumulates TraceRecords, merging a new span into the
// previous one when they are contiguous and describe the same
// (task, job, resource) — mirroring the reference driver's DataFrame
// row-extension logic rather than emitting one record per scheduler tick.
type traceBuilder struct {
	records []TraceRecord
}

func (b *traceBuilder) add(start, end float64, taskID, jobID, resource int) {
	if n := len(b.records); n > 0 {
		last := &b.records[n-1]
		if last.TaskID == taskID && last.JobID == jobID && last.Resource == resource && last.End == start {
			last.End = end
			return
		}
	}

	b.records = append(b.records, TraceRecord{
		Start:    start,
		End:      end,
		TaskID:   taskID,
		JobID:    jobID,
		Resource: resource,
	})
}

func (b *traceBuilder) trace() []TraceRecord {
	return b.records
}
