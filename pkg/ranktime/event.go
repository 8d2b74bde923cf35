package ranktime

import (
	"time"

	"github.com/randalmurphal/ranktime/pkg/ranktime/wire"
)

// StateChange is a named, timestamped marker within an event's lifetime,
// finer-grained than start/stop. Before normalization the timestamp is a
// rank-local monotonic tick count; afterwards it is nanoseconds since
// the run's shared zero time.
type StateChange = wire.StateChange

// Event is a single measured interval. Create events through a
// Registry (StartEvent, StoredEvent) so the active name prefix and
// submit-on-stop behavior apply, or with NewEvent for standalone use.
//
// Events are not safe for concurrent use; the registry model is
// single-threaded per rank.
type Event struct {
	name         string
	registry     *Registry
	data         []int64
	stateChanges []StateChange

	startTicks int64
	duration   time.Duration
	running    bool
	stopped    bool
}

// NewEvent creates an unstarted, unattached event.
func NewEvent(name string) *Event {
	return &Event{name: name}
}

// NewCompletedEvent wraps an interval measured by an external timer.
// The event is already stopped; attach samples with AddData and state
// transitions with RecordStateAt before handing it to Registry.Put.
func NewCompletedEvent(name string, duration time.Duration) *Event {
	return &Event{name: name, duration: duration, stopped: true}
}

// Name returns the event name, including any prefix applied at creation.
func (e *Event) Name() string {
	return e.name
}

// Start begins (or resumes) timing. Starting a running or stopped event
// is a no-op.
func (e *Event) Start() {
	if e.running || e.stopped {
		return
	}
	e.startTicks = nowTicks()
	e.running = true
}

// Pause suspends timing without finishing the event; Start resumes it.
// The accumulated duration grows across pause and resume cycles. Use it
// for long-lived events that wrap many separate code sections.
func (e *Event) Pause() {
	if !e.running {
		return
	}
	e.duration += time.Duration(nowTicks() - e.startTicks)
	e.running = false
}

// Stop ends timing and, if the event was created through a registry,
// submits it for aggregation. Stop on an already-stopped event is a
// no-op, so crash paths may stop events unconditionally.
func (e *Event) Stop() {
	if e.stopped {
		return
	}
	if e.running {
		e.duration += time.Duration(nowTicks() - e.startTicks)
		e.running = false
	}
	e.stopped = true
	if e.registry != nil {
		e.registry.Put(e)
	}
}

// RecordState appends a named state transition stamped with the current
// monotonic time.
func (e *Event) RecordState(state string) {
	e.stateChanges = append(e.stateChanges, StateChange{
		State:     state,
		Timestamp: nowTicks(),
	})
}

// RecordStateAt appends a state transition with an explicit monotonic
// timestamp, for externally measured events.
func (e *Event) RecordStateAt(state string, ticks int64) {
	e.stateChanges = append(e.stateChanges, StateChange{
		State:     state,
		Timestamp: ticks,
	})
}

// AddData attaches integer samples to the event, in call order.
func (e *Event) AddData(values ...int64) {
	e.data = append(e.data, values...)
}

// Duration returns the measured duration. While the event is running it
// returns the elapsed time so far.
func (e *Event) Duration() time.Duration {
	if e.running {
		return e.duration + time.Duration(nowTicks()-e.startTicks)
	}
	return e.duration
}

// Running reports whether the event is currently being timed.
func (e *Event) Running() bool {
	return e.running
}

// Data returns the attached samples.
func (e *Event) Data() []int64 {
	return e.data
}

// StateChanges returns the recorded state transitions.
func (e *Event) StateChanges() []StateChange {
	return e.stateChanges
}
