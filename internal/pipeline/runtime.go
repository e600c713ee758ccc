package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/banshee-data/edgetrack/internal/edge"
	"github.com/banshee-data/edgetrack/internal/elevation"
)

// SegmentExtractor finds straight step candidates in an elevation grid.
type SegmentExtractor interface {
	Extract(g *elevation.Grid) ([]edge.Segment, error)
}

// CycleStore persists the outcome of one cycle.
type CycleStore interface {
	RecordCycle(ctx context.Context, sessionID string, snap edge.CycleSnapshot) error
}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Config holds the dependencies of a Runtime.
type Config struct {
	Tracker   *edge.Tracker
	Extractor SegmentExtractor
	Store     CycleStore // Optional
	SessionID string     // Passed to Store
}

// Stats summarises the cycles processed by a Runtime.
type Stats struct {
	Cycles        uint64
	Skipped       uint64 // observations without a usable map
	Segments      uint64
	Added         uint64
	Merged        uint64
	Dropped       uint64
	LastEdgeCount int
	Elapsed       time.Duration // time spent inside Process
}

// Runtime owns one tracker and feeds it observations.
type Runtime struct {
	cfg Config

	cycles   atomic.Uint64
	skipped  atomic.Uint64
	segments atomic.Uint64
	added    atomic.Uint64
	merged   atomic.Uint64
	dropped  atomic.Uint64
	edges    atomic.Int64
	elapsed  atomic.Int64
}

// NewRuntime validates cfg and returns a Runtime.
func NewRuntime(cfg Config) (*Runtime, error) {
	if cfg.Tracker == nil {
		return nil, errors.New("pipeline requires a tracker")
	}
	if isNilInterface(cfg.Extractor) {
		return nil, errors.New("pipeline requires a segment extractor")
	}
	if isNilInterface(cfg.Store) {
		cfg.Store = nil
	}
	return &Runtime{cfg: cfg}, nil
}

// Tracker returns the tracker driven by the runtime.
func (r *Runtime) Tracker() *edge.Tracker {
	return r.cfg.Tracker
}

// Process runs one cycle for obs. The grid is only referenced for the
// duration of the call.
func (r *Runtime) Process(ctx context.Context, obs elevation.Observation) (edge.Result, error) {
	if err := ctx.Err(); err != nil {
		return edge.Result{}, err
	}
	if obs.Map == nil {
		return edge.Result{}, fmt.Errorf("%w: observation has no map", elevation.ErrInvalidMap)
	}

	start := time.Now()
	segments, err := r.cfg.Extractor.Extract(obs.Map)
	if err != nil {
		return edge.Result{}, fmt.Errorf("segment extraction failed: %w", err)
	}

	res := r.cfg.Tracker.Advance(obs.Pose, obs.Map.Frame(), obs.Map, segments)

	r.cycles.Add(1)
	r.segments.Add(uint64(len(segments)))
	r.added.Add(uint64(res.Added))
	r.merged.Add(uint64(res.Merged))
	r.dropped.Add(uint64(res.Dropped))
	r.edges.Store(int64(res.EdgeCount))

	tracef("cycle %d: %d segments, %d edges, nearest=%d", res.Cycle, len(segments), res.EdgeCount, res.NearestIndex)

	if r.cfg.Store != nil {
		snap := edge.CycleSnapshot{
			Pose:   obs.Pose,
			Edges:  r.cfg.Tracker.Edges(),
			Result: res,
		}
		if err := r.cfg.Store.RecordCycle(ctx, r.cfg.SessionID, snap); err != nil {
			r.elapsed.Add(int64(time.Since(start)))
			return res, fmt.Errorf("failed to record cycle %d: %w", res.Cycle, err)
		}
	}

	r.elapsed.Add(int64(time.Since(start)))
	return res, nil
}

// Run processes observations in order until they are exhausted, ctx is
// cancelled, or a cycle fails. Observations without a usable map are
// skipped. The returned slice holds one Result per processed cycle.
func (r *Runtime) Run(ctx context.Context, observations []elevation.Observation) ([]edge.Result, error) {
	results := make([]edge.Result, 0, len(observations))
	for i, obs := range observations {
		if err := ctx.Err(); err != nil {
			opsf("run cancelled after %d of %d observations", i, len(observations))
			return results, err
		}
		res, err := r.Process(ctx, obs)
		if errors.Is(err, elevation.ErrInvalidMap) {
			r.skipped.Add(1)
			opsf("skipping observation %d: %v", i, err)
			continue
		}
		if err != nil {
			return results, fmt.Errorf("observation %d: %w", i, err)
		}
		results = append(results, res)
	}

	s := r.Stats()
	diagf("run complete: cycles=%d skipped=%d segments=%d added=%d merged=%d dropped=%d edges=%d elapsed=%s",
		s.Cycles, s.Skipped, s.Segments, s.Added, s.Merged, s.Dropped, s.LastEdgeCount, s.Elapsed)
	return results, nil
}

// Stats returns a snapshot of the runtime counters. It is safe to call from
// another goroutine while Run is in progress.
func (r *Runtime) Stats() Stats {
	return Stats{
		Cycles:        r.cycles.Load(),
		Skipped:       r.skipped.Load(),
		Segments:      r.segments.Load(),
		Added:         r.added.Load(),
		Merged:        r.merged.Load(),
		Dropped:       r.dropped.Load(),
		LastEdgeCount: int(r.edges.Load()),
		Elapsed:       time.Duration(r.elapsed.Load()),
	}
}
