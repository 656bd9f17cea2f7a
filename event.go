// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package sim

import "sort"

// EventKind distinguishes the two instants a job's lifecycle can schedule
// work for: its release and its absolute deadline.
type EventKind int

const (
	EventRelease EventKind = iota
	EventDeadline
)

func (k EventKind) String() string {
	if k == EventDeadline {
		return "DEADLINE"
	}
	return "RELEASE"
}

// Event pairs a job with the lifecycle transition to apply to it at its
// scheduled instant.
type Event struct {
	Kind EventKind
	Job  *Job
}

// eventIndex is the sorted, deduplicated list of time instants the
// scheduler must stop at, plus the events due at each one.
type eventIndex struct {
	times  []float64
	atTime map[float64][]Event
}

// buildEventIndex derives the event index for jobs across a schedule window
// ending at scheduleEnd. Every job contributes a RELEASE event at its
// release time, and a DEADLINE event at its absolute deadline only when that
// deadline falls at or before scheduleEnd; scheduleEnd is always
// included as a time instant even if no job's deadline lands there, since it
// is where the time-advance loop must stop.
//
// When a RELEASE and a DEADLINE land on the same instant, RELEASE is
// ordered first: a job that both completes its predecessor's deadline and
// releases at the same tick must be visible to the scheduler in the same
// pass its predecessor is reaped.
func buildEventIndex(jobs []*Job, scheduleEnd float64) *eventIndex {
	idx := &eventIndex{atTime: make(map[float64][]Event)}

	// Dedup on a separate set: atTime is populated before addTime runs, so
	// it cannot double as the "already seen" check.
	seen := make(map[float64]bool)
	addTime := func(t float64) {
		if !seen[t] {
			seen[t] = true
			idx.times = append(idx.times, t)
		}
	}

	for _, j := range jobs {
		idx.atTime[j.ReleaseTime] = append(idx.atTime[j.ReleaseTime], Event{Kind: EventRelease, Job: j})
		addTime(j.ReleaseTime)

		if j.AbsoluteDeadline <= scheduleEnd {
			idx.atTime[j.AbsoluteDeadline] = append(idx.atTime[j.AbsoluteDeadline], Event{Kind: EventDeadline, Job: j})
			addTime(j.AbsoluteDeadline)
		}
	}

	addTime(scheduleEnd)

	sort.Float64s(idx.times)

	for _, t := range idx.times {
		events := idx.atTime[t]
		sort.SliceStable(events, func(i, k int) bool {
			return events[i].Kind < events[k].Kind
		})
		idx.atTime[t] = events
	}

	return idx
}
