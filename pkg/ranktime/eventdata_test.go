package ranktime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func putCompleted(d *EventData, duration time.Duration) {
	d.Put(NewCompletedEvent(d.Name(), duration))
}

func TestEventDataAccumulation(t *testing.T) {
	d := NewEventData("solve", 2)
	putCompleted(d, 100*time.Millisecond)
	putCompleted(d, 300*time.Millisecond)
	putCompleted(d, 200*time.Millisecond)

	assert.Equal(t, "solve", d.Name())
	assert.Equal(t, 2, d.Rank())
	assert.Equal(t, int64(3), d.Count())
	assert.Equal(t, 600*time.Millisecond, d.Total())
	assert.Equal(t, 300*time.Millisecond, d.Max())
	assert.Equal(t, 100*time.Millisecond, d.Min())
	assert.Equal(t, 200*time.Millisecond, d.Avg())
}

func TestEventDataFirstPutSetsBothExtremes(t *testing.T) {
	d := NewEventData("once", 0)
	putCompleted(d, 42*time.Millisecond)

	assert.Equal(t, 42*time.Millisecond, d.Min())
	assert.Equal(t, 42*time.Millisecond, d.Max())
}

func TestEventDataConcatenatesDataAndStates(t *testing.T) {
	d := NewEventData("solve", 0)

	ev1 := NewCompletedEvent("solve", time.Millisecond)
	ev1.AddData(1, 2)
	ev1.RecordStateAt("start", 10)
	d.Put(ev1)

	ev2 := NewCompletedEvent("solve", time.Millisecond)
	ev2.AddData(3)
	ev2.RecordStateAt("start", 20)
	d.Put(ev2)

	assert.Equal(t, []int64{1, 2, 3}, d.Data())
	assert.Equal(t, []StateChange{
		{State: "start", Timestamp: 10},
		{State: "start", Timestamp: 20},
	}, d.StateChanges())
}

func TestEventDataAvgPanicsOnZeroCount(t *testing.T) {
	d := NewEventData("empty", 0)
	assert.Panics(t, func() { d.Avg() })
}

func TestEventDataTimePercentage(t *testing.T) {
	d := NewEventData("solve", 0)
	putCompleted(d, 250*time.Millisecond)

	assert.Equal(t, 25, d.TimePercentage(time.Second))
	assert.Equal(t, 50, d.TimePercentage(500*time.Millisecond))
	assert.Equal(t, 0, d.TimePercentage(0))

	// Rounded to nearest, not truncated: 250/600 = 41.67%.
	assert.Equal(t, 42, d.TimePercentage(600*time.Millisecond))
}

func TestEventDataPercentiles(t *testing.T) {
	d := NewEventData("solve", 0)
	for i := 1; i <= 100; i++ {
		putCompleted(d, time.Duration(i)*time.Millisecond)
	}

	p50 := d.Percentile(50)
	p99 := d.Percentile(99)
	assert.Greater(t, p99, p50)
	// 3 significant figures keep values near the true quantiles.
	assert.InDelta(t, float64(50*time.Millisecond), float64(p50), float64(2*time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(p99), float64(2*time.Millisecond))
}

func TestEventDataPercentileClampsOutOfRange(t *testing.T) {
	d := NewEventData("extremes", 0)
	putCompleted(d, 100*time.Nanosecond) // below 1µs resolution
	putCompleted(d, 2*time.Minute)       // above the 60s bound

	assert.Equal(t, int64(2), d.Count())
	p100 := d.Percentile(100)
	assert.LessOrEqual(t, p100, 61*time.Second)
	assert.Greater(t, p100, time.Duration(0))
}

func TestEventDataPercentileEmpty(t *testing.T) {
	d := NewEventData("empty", 0)
	assert.Equal(t, time.Duration(0), d.Percentile(50))
}

func TestRestoreEventData(t *testing.T) {
	states := []StateChange{{State: "s", Timestamp: 5}}
	d := RestoreEventData("solve", 3, 7,
		700*time.Millisecond, 200*time.Millisecond, 50*time.Millisecond,
		[]int64{9}, states)

	assert.Equal(t, "solve", d.Name())
	assert.Equal(t, 3, d.Rank())
	assert.Equal(t, int64(7), d.Count())
	assert.Equal(t, 700*time.Millisecond, d.Total())
	assert.Equal(t, 200*time.Millisecond, d.Max())
	assert.Equal(t, 50*time.Millisecond, d.Min())
	assert.Equal(t, 100*time.Millisecond, d.Avg())
	assert.Equal(t, []int64{9}, d.Data())
	assert.Equal(t, states, d.StateChanges())

	// Individual durations did not travel, so percentiles are undefined.
	assert.Equal(t, time.Duration(0), d.Percentile(50))
}
