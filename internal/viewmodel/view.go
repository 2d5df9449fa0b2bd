package viewmodel

import (
	"context"
	"log/slog"
	"sync"
)

// Status is the fetch state of a view.
type Status int

const (
	Idle Status = iota
	Loading
	Loaded
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// State is what a view currently shows. RequestID is the sequence number
// of the fetch that produced it. A failed fetch keeps the previous records.
type State[R any] struct {
	Status    Status
	RequestID uint64
	Records   []R
	Err       error
}

// Snapshot is a type-erased State for templates and JSON.
type Snapshot struct {
	View      string `json:"view"`
	Status    Status `json:"-"`
	State     string `json:"status"`
	RequestID uint64 `json:"request_id"`
	Records   any    `json:"records"`
	Count     int    `json:"count"`
	Err       error  `json:"-"`
	Error     string `json:"error,omitempty"`
}

// Loading reports whether a fetch is in flight.
func (s Snapshot) Loading() bool { return s.Status == Idle || s.Status == Loading }

// Mounted is a view held by the registry.
type Mounted interface {
	Name() string
	Entities() []string
	Refresh(ctx context.Context) (Snapshot, bool)
	Snapshot() Snapshot
	Close()
}

// View owns the records of one mounted page or widget. Each Refresh takes
// the next sequence number; only the response to the latest issued number
// is applied, and nothing is applied after Close.
type View[R any] struct {
	name     string
	fetcher  Fetcher[R]
	entities []string
	logger   *slog.Logger

	mu     sync.Mutex
	issued uint64
	state  State[R]
	closed bool
}

var _ Mounted = (*View[MeetingRecord])(nil)

// NewView creates an idle view over f.
func NewView[R any](name string, f Fetcher[R], logger *slog.Logger) *View[R] {
	if logger == nil {
		logger = slog.Default()
	}
	v := &View[R]{name: name, fetcher: f, logger: logger}
	switch s := f.(type) {
	case interface{ Spec() Spec }:
		v.entities = s.Spec().Entities()
	case interface{ Entities() []string }:
		v.entities = s.Entities()
	}
	return v
}

// Name returns the view name.
func (v *View[R]) Name() string { return v.name }

// Entities lists the tables whose changes make this view stale.
func (v *View[R]) Entities() []string { return v.entities }

// Begin issues the next sequence number and marks the view loading.
func (v *View[R]) Begin() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.issued++
	v.state.Status = Loading
	v.state.RequestID = v.issued
	return v.issued
}

// Apply stores the outcome of fetch id. It reports false, and changes
// nothing, when id is no longer the latest issued or the view is closed.
func (v *View[R]) Apply(id uint64, records []R, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed || id != v.issued {
		v.logger.Debug("discarding stale view response", "view", v.name, "request_id", id, "latest", v.issued)
		return false
	}
	if err != nil {
		v.logger.With("error", err).Error("view fetch failed", "view", v.name, "request_id", id)
		v.state = State[R]{Status: Failed, RequestID: id, Records: v.state.Records, Err: err}
		return true
	}
	if records == nil {
		records = []R{}
	}
	v.state = State[R]{Status: Loaded, RequestID: id, Records: records}
	return true
}

// Refetch runs the fetcher and applies its result. The returned bool is
// false when a newer fetch was issued meanwhile (or the view closed); the
// returned state is then the view's current state.
func (v *View[R]) Refetch(ctx context.Context) (State[R], bool) {
	id := v.Begin()
	records, err := v.fetcher.Fetch(ctx)
	applied := v.Apply(id, records, err)
	return v.State(), applied
}

// State returns a copy of the current state.
func (v *View[R]) State() State[R] {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := v.state
	st.Records = append([]R(nil), v.state.Records...)
	return st
}

// Refresh is Refetch for type-erased callers.
func (v *View[R]) Refresh(ctx context.Context) (Snapshot, bool) {
	st, ok := v.Refetch(ctx)
	return v.snapshot(st), ok
}

// Snapshot returns the current state type-erased.
func (v *View[R]) Snapshot() Snapshot {
	return v.snapshot(v.State())
}

func (v *View[R]) snapshot(st State[R]) Snapshot {
	records := st.Records
	if records == nil {
		records = []R{}
	}
	snap := Snapshot{
		View:      v.name,
		Status:    st.Status,
		State:     st.Status.String(),
		RequestID: st.RequestID,
		Records:   records,
		Count:     len(records),
		Err:       st.Err,
	}
	if st.Err != nil {
		snap.Error = st.Err.Error()
	}
	return snap
}

// Close detaches the view; responses arriving later are discarded.
func (v *View[R]) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
}
