package ranktime

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/ranktime/pkg/ranktime/comm"
	"github.com/randalmurphal/ranktime/pkg/ranktime/observability"
)

// State is the registry lifecycle state.
type State int

// Registry lifecycle: Uninitialized -> Active -> Finalized.
const (
	StateUninitialized State = iota
	StateActive
	StateFinalized
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// GlobalEventName is the name of the whole-run event the registry
// starts at Initialize and stops at Finalize.
const GlobalEventName = "_GLOBAL"

// Registry coordinates event recording for one rank. Construct one per
// process with NewRegistry, hand it the group's Comm at Initialize, and
// call Finalize on every rank at shutdown.
//
// The registry is single-threaded by design: Put and StoredEvent must
// not be called concurrently from multiple goroutines of the same rank.
type Registry struct {
	state  State
	runID  string
	prefix string

	applicationName string
	runName         string

	local  *RankData
	global []*RankData
	stored map[string]*Event

	globalEvent *Event
	comm        comm.Comm
	finishedAt  time.Time

	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an uninitialized registry. Events may be recorded
// immediately; global durations, percentages, and cross-rank features
// need Initialize and Finalize.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		local:   NewRankData(0),
		stored:  make(map[string]*Event),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize records the rank's start time, starts the whole-run event,
// and stores the group handle used by all collective operations.
func (r *Registry) Initialize(applicationName, runName string, c comm.Comm) error {
	if r.state == StateActive {
		return &StateError{Op: "initialize", State: r.state}
	}

	r.applicationName = applicationName
	r.runName = runName
	r.comm = c
	r.runID = uuid.NewString()
	r.local = NewRankData(c.Rank())
	r.global = nil

	r.logger = observability.EnrichLogger(r.logger, r.runID, c.Rank(), c.Size())

	r.local.Initialize()
	r.globalEvent = r.newEvent(GlobalEventName, "")
	r.globalEvent.Start()
	r.state = StateActive

	observability.LogInitialize(r.logger, applicationName, runName)
	return nil
}

// Put folds a finished event into the local rank data. Events are
// accepted in every registry state.
func (r *Registry) Put(ev *Event) {
	r.local.Put(ev)
	r.metrics.RecordPut(context.Background(), ev.Name(), ev.Duration())
}

// StartEvent creates a started event named prefix+name that submits
// itself to this registry when stopped.
func (r *Registry) StartEvent(name string) *Event {
	ev := r.newEvent(name, r.prefix)
	ev.Start()
	return ev
}

// StoredEvent returns the long-lived event for name, creating it
// unstarted on first use. Stored events live in a flat namespace: the
// active prefix is ignored for the lookup so that a prefix set further
// up the stack cannot redirect it.
func (r *Registry) StoredEvent(name string) *Event {
	if ev, ok := r.stored[name]; ok {
		return ev
	}
	ev := r.newEvent(name, "")
	r.stored[name] = ev
	return ev
}

// SetPrefix sets the name prefix applied to newly created events. It
// has no retroactive effect.
func (r *Registry) SetPrefix(prefix string) {
	r.prefix = prefix
}

// Prefix returns the active name prefix.
func (r *Registry) Prefix() string {
	return r.prefix
}

// Finalize stops the whole-run event and every stored event, stamps the
// rank's finish time, normalizes clocks across the group, and runs the
// collect protocol. Every rank of the group must call Finalize or the
// collectives block.
//
// Finalize on an already-finalized registry returns nil, so fault paths
// may call it unconditionally.
func (r *Registry) Finalize(ctx context.Context) error {
	if r.state == StateFinalized {
		return nil
	}
	if r.state == StateUninitialized {
		return &StateError{Op: "finalize", State: r.state}
	}

	r.stopAll()
	r.finishedAt = time.Now()
	r.local.Finalize()

	if err := r.normalize(ctx); err != nil {
		return err
	}
	if err := r.collect(ctx); err != nil {
		return err
	}

	r.state = StateFinalized
	r.metrics.RecordRun(ctx, r.comm.Rank(), r.local.Duration())
	observability.LogFinalized(r.logger, r.local.Duration())
	return nil
}

// BestEffortShutdown finalizes local state without entering any
// collective operation, for fault paths where the rest of the group
// cannot cooperate. Timestamps are normalized against this rank's own
// start time; the result supports a local-only report. Write one with
// report.WriteLocal.
//
// Calling it when the registry is not active is a no-op.
func (r *Registry) BestEffortShutdown() error {
	if r.state != StateActive {
		return nil
	}
	observability.LogBestEffortShutdown(r.logger)

	r.stopAll()
	r.finishedAt = time.Now()
	r.local.Finalize()

	// Own initialization as the zero time keeps local timestamps
	// comparable without group agreement.
	if err := r.local.NormalizeTo(r.local.InitializedAt().UnixNano()); err != nil {
		return err
	}
	r.state = StateFinalized
	return nil
}

// Clear drops all locally and globally accumulated event data and the
// stored events. Lifecycle flags are untouched.
func (r *Registry) Clear() {
	r.local.Clear()
	r.global = nil
	r.stored = make(map[string]*Event)
}

// stopAll stops the whole-run event and every stored event; stopping
// submits them to the local aggregate.
func (r *Registry) stopAll() {
	if r.globalEvent != nil {
		r.globalEvent.Stop()
	}
	for _, ev := range r.stored {
		ev.Stop()
	}
}

func (r *Registry) newEvent(name, prefix string) *Event {
	ev := NewEvent(prefix + name)
	ev.registry = r
	return ev
}

// Duration returns the whole-run duration: fixed once finalized,
// otherwise the time elapsed so far.
func (r *Registry) Duration() time.Duration {
	return r.local.Duration()
}

// State returns the lifecycle state.
func (r *Registry) State() State { return r.state }

// RunID returns the identifier assigned at Initialize.
func (r *Registry) RunID() string { return r.runID }

// ApplicationName returns the name passed to Initialize.
func (r *Registry) ApplicationName() string { return r.applicationName }

// RunName returns the run name passed to Initialize.
func (r *Registry) RunName() string { return r.runName }

// FinishedAt returns the wall-clock time Finalize ran.
func (r *Registry) FinishedAt() time.Time { return r.finishedAt }

// Comm returns the group handle, nil before Initialize.
func (r *Registry) Comm() comm.Comm { return r.comm }

// LocalRankData returns this rank's own data.
func (r *Registry) LocalRankData() *RankData { return r.local }

// GlobalRankData returns the per-rank data collected at Finalize,
// indexed by rank. It is populated only on the coordinator.
func (r *Registry) GlobalRankData() []*RankData { return r.global }

// RunWindow returns the earliest initialization and latest finalization
// across the collected ranks. On ranks without collected data it falls
// back to the local lifetime.
func (r *Registry) RunWindow() (time.Time, time.Time) {
	if len(r.global) == 0 {
		return r.local.InitializedAt(), r.local.FinalizedAt()
	}
	first, last := r.global[0].InitializedAt(), r.global[0].FinalizedAt()
	for _, rd := range r.global[1:] {
		if rd.InitializedAt().Before(first) {
			first = rd.InitializedAt()
		}
		if rd.FinalizedAt().After(last) {
			last = rd.FinalizedAt()
		}
	}
	return first, last
}

// CollectRunWindow reduces the group's earliest initialization and
// latest finalization onto the coordinator. All ranks must call it
// together; the result is meaningful only on rank 0.
func (r *Registry) CollectRunWindow(ctx context.Context) (time.Time, time.Time, error) {
	if r.comm == nil {
		return time.Time{}, time.Time{}, &StateError{Op: "collect run window", State: r.state}
	}
	minNs, err := comm.ReduceMin(ctx, r.comm, r.local.InitializedAt().UnixNano(), 0)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	maxNs, err := comm.ReduceMax(ctx, r.comm, r.local.FinalizedAt().UnixNano(), 0)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return time.Unix(0, minNs), time.Unix(0, maxNs), nil
}
