package ranktime

import (
	"fmt"
	"math"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// EventData aggregates every occurrence of one event name within one
// rank: count, total and extreme durations, concatenated samples, and
// concatenated state changes. A duration histogram feeds the local
// report's percentile columns; it is never transported.
type EventData struct {
	name  string
	rank  int
	count int64

	total time.Duration
	max   time.Duration
	min   time.Duration

	data         []int64
	stateChanges []StateChange

	hist *hdrhistogram.Histogram
}

// NewEventData creates an empty aggregate owned by the given rank. Min
// and max are seeded to the duration extremes so the first Put always
// updates both.
func NewEventData(name string, rank int) *EventData {
	return &EventData{
		name: name,
		rank: rank,
		min:  time.Duration(math.MaxInt64),
		max:  time.Duration(math.MinInt64),
		// Track durations from 1µs up to 60s with 3 significant figures.
		hist: hdrhistogram.New(1, 60_000_000, 3),
	}
}

// RestoreEventData rebuilds an aggregate from values received off the
// wire. The histogram is not reconstructed: percentiles are a
// local-report feature and individual durations do not travel.
func RestoreEventData(name string, rank int, count int64, total, max, min time.Duration,
	data []int64, stateChanges []StateChange) *EventData {
	return &EventData{
		name:         name,
		rank:         rank,
		count:        count,
		total:        total,
		max:          max,
		min:          min,
		data:         data,
		stateChanges: stateChanges,
	}
}

// Put folds one finished event into the aggregate.
func (d *EventData) Put(ev *Event) {
	duration := ev.Duration()
	d.count++
	d.total += duration
	if duration < d.min {
		d.min = duration
	}
	if duration > d.max {
		d.max = duration
	}
	d.data = append(d.data, ev.Data()...)
	d.stateChanges = append(d.stateChanges, ev.StateChanges()...)

	if d.hist != nil {
		us := duration.Microseconds()
		if us < d.hist.LowestTrackableValue() {
			us = d.hist.LowestTrackableValue()
		}
		if us > d.hist.HighestTrackableValue() {
			us = d.hist.HighestTrackableValue()
		}
		_ = d.hist.RecordValue(us)
	}
}

// Name returns the event name.
func (d *EventData) Name() string { return d.name }

// Rank returns the owning rank.
func (d *EventData) Rank() int { return d.rank }

// Count returns the number of Put calls folded in.
func (d *EventData) Count() int64 { return d.count }

// Total returns the summed duration.
func (d *EventData) Total() time.Duration { return d.total }

// Max returns the largest single duration.
func (d *EventData) Max() time.Duration { return d.max }

// Min returns the smallest single duration.
func (d *EventData) Min() time.Duration { return d.min }

// Avg returns the mean duration. Calling it with a zero count is a
// caller error.
func (d *EventData) Avg() time.Duration {
	if d.count == 0 {
		panic(fmt.Sprintf("ranktime: Avg on event %q with zero count", d.name))
	}
	return d.total / time.Duration(d.count)
}

// Data returns the accumulated samples in arrival order.
func (d *EventData) Data() []int64 { return d.data }

// StateChanges returns the accumulated state transitions in arrival
// order.
func (d *EventData) StateChanges() []StateChange { return d.stateChanges }

// TimePercentage returns this event's share of the whole-run duration,
// rounded to the nearest percent. Computed on untruncated nanoseconds.
func (d *EventData) TimePercentage(global time.Duration) int {
	if global <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(d.total) / float64(global)))
}

// Percentile returns the duration at quantile q (0-100) from the local
// histogram, or 0 for aggregates restored off the wire.
func (d *EventData) Percentile(q float64) time.Duration {
	if d.hist == nil || d.hist.TotalCount() == 0 {
		return 0
	}
	return time.Duration(d.hist.ValueAtQuantile(q)) * time.Microsecond
}
