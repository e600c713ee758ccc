package edge

import "gonum.org/v1/gonum/spatial/r2"

// Pre-allocation capacities for debug cycle slices. A local elevation map
// rarely yields more than a few dozen Hough segments per cycle.
const (
	defaultCandidateCapacity    = 32
	defaultRevalidationCapacity = 16
)

// Decision is the outcome for one candidate segment or tracked edge.
type Decision string

const (
	DecisionKept           Decision = "kept"            // Tracked edge survived re-validation
	DecisionDropped        Decision = "dropped"         // Tracked edge failed re-validation
	DecisionRejectedLength Decision = "rejected_length" // Candidate outside length bounds
	DecisionRejectedHeight Decision = "rejected_height" // Candidate outside height bounds
	DecisionMerged         Decision = "merged"          // Candidate fused into a tracked edge
	DecisionRedundant      Decision = "redundant"       // Candidate matched a tracked edge without fusing
	DecisionAdded          Decision = "added"           // Candidate appended as a new edge
)

// RevalidationRecord captures the re-validation of one tracked edge.
type RevalidationRecord struct {
	Point1   r2.Vec
	Point2   r2.Vec
	Height   float64 // height recomputed against the current pose
	Decision Decision
}

// CandidateRecord captures the fate of one raw segment.
type CandidateRecord struct {
	Segment    Segment
	Point1     r2.Vec // world frame, canonical order
	Point2     r2.Vec
	Length     float64
	Height     float64 // zero when rejected on length
	Decision   Decision
	MatchIndex int // tracked edge the candidate matched; -1 otherwise
}

// DebugCycle contains all debug artifacts for a single cycle.
type DebugCycle struct {
	Cycle         uint64
	Revalidations []RevalidationRecord
	Candidates    []CandidateRecord
}

// DebugCollector accumulates tracker decisions during a single cycle.
//
// The collector is stateful: the tracker calls BeginCycle and the Record*
// methods while advancing, and Emit at cycle completion.
type DebugCollector struct {
	enabled bool
	current *DebugCycle
}

// NewDebugCollector creates a collector that's initially disabled.
// Call SetEnabled(true) to begin collecting artifacts.
func NewDebugCollector() *DebugCollector {
	return &DebugCollector{}
}

// SetEnabled controls whether the collector records artifacts.
// When disabled, all Record*() calls are no-ops.
func (c *DebugCollector) SetEnabled(enabled bool) {
	if c == nil {
		return
	}
	c.enabled = enabled
}

// IsEnabled returns true if the collector is actively recording.
func (c *DebugCollector) IsEnabled() bool {
	return c != nil && c.enabled
}

// BeginCycle initialises collection for a new cycle.
func (c *DebugCollector) BeginCycle(cycle uint64) {
	if !c.IsEnabled() {
		return
	}
	c.current = &DebugCycle{
		Cycle:         cycle,
		Revalidations: make([]RevalidationRecord, 0, defaultRevalidationCapacity),
		Candidates:    make([]CandidateRecord, 0, defaultCandidateCapacity),
	}
}

// RecordRevalidation captures the outcome for a previously tracked edge.
func (c *DebugCollector) RecordRevalidation(e Edge, height float64, d Decision) {
	if !c.IsEnabled() || c.current == nil {
		return
	}
	c.current.Revalidations = append(c.current.Revalidations, RevalidationRecord{
		Point1:   e.Point1,
		Point2:   e.Point2,
		Height:   height,
		Decision: d,
	})
}

// RecordCandidate captures the outcome for a raw segment.
func (c *DebugCollector) RecordCandidate(rec CandidateRecord) {
	if !c.IsEnabled() || c.current == nil {
		return
	}
	c.current.Candidates = append(c.current.Candidates, rec)
}

// Emit returns the current cycle's artifacts and clears the collector.
// Returns nil when disabled or when no cycle was begun.
func (c *DebugCollector) Emit() *DebugCycle {
	if !c.IsEnabled() || c.current == nil {
		return nil
	}
	cycle := c.current
	c.current = nil
	return cycle
}

// Reset discards any partially collected cycle.
func (c *DebugCollector) Reset() {
	if c == nil {
		return
	}
	c.current = nil
}

// CycleSnapshot is an immutable view of the tracker after one cycle.
type CycleSnapshot struct {
	Pose   Pose
	Edges  []Edge // copy of the tracked collection in tracker order
	Result Result
	Debug  *DebugCycle // nil unless a DebugCollector is enabled
}

// CycleHook receives a snapshot at the end of every Advance. Hooks are
// optional diagnostics; they must not retain the tracker.
type CycleHook interface {
	OnCycle(snap CycleSnapshot)
}

// CycleHookFunc adapts a function to CycleHook.
type CycleHookFunc func(snap CycleSnapshot)

// OnCycle calls f(snap).
func (f CycleHookFunc) OnCycle(snap CycleSnapshot) {
	f(snap)
}
