package ranktime

import (
	"sort"
	"time"
)

// RankData owns the per-event aggregates of a single rank together with
// that rank's process-lifetime timestamps. One instance lives in the
// local registry; the coordinator rebuilds one per rank during collect.
type RankData struct {
	rank   int
	events map[string]*EventData

	initializedAt      time.Time
	finalizedAt        time.Time
	initializedAtTicks int64
	finalizedAtTicks   int64

	isFinalized bool
	normalized  bool
}

// NewRankData creates an empty container for the given rank.
func NewRankData(rank int) *RankData {
	return &RankData{
		rank:   rank,
		events: make(map[string]*EventData),
	}
}

// Initialize stamps the wall and monotonic clocks at process start.
func (rd *RankData) Initialize() {
	rd.initializedAt = time.Now()
	rd.initializedAtTicks = nowTicks()
	rd.isFinalized = false
}

// Finalize stamps both clocks at process shutdown.
func (rd *RankData) Finalize() {
	rd.finalizedAt = time.Now()
	rd.finalizedAtTicks = nowTicks()
	rd.isFinalized = true
}

// Put folds a finished event into the aggregate for its name, creating
// the aggregate on first use.
func (rd *RankData) Put(ev *Event) {
	data, ok := rd.events[ev.Name()]
	if !ok {
		data = NewEventData(ev.Name(), rd.rank)
		rd.events[ev.Name()] = data
	}
	data.Put(ev)
}

// AddEventData inserts a reconstructed aggregate, keyed by its name.
func (rd *RankData) AddEventData(data *EventData) {
	rd.events[data.Name()] = data
}

// NormalizeTo rebases every recorded state-change timestamp onto the
// group-wide zero time t0 (epoch nanoseconds). After the shift each
// timestamp is nanoseconds since t0. The shift may run exactly once;
// a second call returns AlreadyNormalizedError rather than corrupting
// the timeline.
func (rd *RankData) NormalizeTo(t0Ns int64) error {
	if rd.normalized {
		return &AlreadyNormalizedError{Rank: rd.rank}
	}
	initNs := rd.initializedAt.UnixNano()
	if t0Ns > initNs {
		return &NormalizeOrderError{T0Ns: t0Ns, InitializedAtNs: initNs}
	}

	// How long after the first rank this rank initialized.
	delta := initNs - t0Ns
	for _, data := range rd.events {
		for i := range data.stateChanges {
			data.stateChanges[i].Timestamp += delta - rd.initializedAtTicks
		}
	}
	rd.normalized = true
	return nil
}

// Normalized reports whether NormalizeTo has already run.
func (rd *RankData) Normalized() bool {
	return rd.normalized
}

// Clear drops all accumulated event data. Lifecycle stamps and flags
// are kept.
func (rd *RankData) Clear() {
	rd.events = make(map[string]*EventData)
}

// Duration returns the rank's measured lifetime: the span between the
// monotonic initialize and finalize stamps once finalized, otherwise
// the time elapsed since initialize.
func (rd *RankData) Duration() time.Duration {
	if rd.isFinalized {
		return time.Duration(rd.finalizedAtTicks - rd.initializedAtTicks)
	}
	return time.Duration(nowTicks() - rd.initializedAtTicks)
}

// Rank returns the owning rank id.
func (rd *RankData) Rank() int { return rd.rank }

// InitializedAt returns the wall-clock initialize stamp.
func (rd *RankData) InitializedAt() time.Time { return rd.initializedAt }

// FinalizedAt returns the wall-clock finalize stamp.
func (rd *RankData) FinalizedAt() time.Time { return rd.finalizedAt }

// Finalized reports whether Finalize has run.
func (rd *RankData) Finalized() bool { return rd.isFinalized }

// Event returns the aggregate for name, if present.
func (rd *RankData) Event(name string) (*EventData, bool) {
	data, ok := rd.events[name]
	return data, ok
}

// EventNames returns all aggregated event names in ascending order.
// This is also the send order during collect.
func (rd *RankData) EventNames() []string {
	names := make([]string, 0, len(rd.events))
	for name := range rd.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of distinct event names.
func (rd *RankData) Len() int {
	return len(rd.events)
}

// setLifetime installs wall-clock stamps received off the wire.
func (rd *RankData) setLifetime(initializedNs, finalizedNs int64) {
	rd.initializedAt = time.Unix(0, initializedNs)
	rd.finalizedAt = time.Unix(0, finalizedNs)
	// Reconstructed ranks have no local monotonic stamps; derive the
	// lifetime span from the wall clocks so Duration stays meaningful.
	rd.initializedAtTicks = 0
	rd.finalizedAtTicks = finalizedNs - initializedNs
	rd.isFinalized = true
	// Received data was normalized at the sender.
	rd.normalized = true
}
