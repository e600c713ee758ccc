package edge

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// Redundancy and selection constants. These are fixed properties of the
// tracking policy rather than tuning parameters.
const (
	// mergeSemiAxis is the across-edge semi-axis (metres) of the endpoint
	// matching ellipse. The along-edge semi-axis is TrackerConfig.MinLength.
	mergeSemiAxis = 0.2
	// similarCoeffTolerance bounds the per-component difference of the
	// (sin, cos) direction encodings. Both components lie in [-1, 1], so the
	// bound never rejects; similarity is decided by the distance test.
	similarCoeffTolerance = 10.0
	// similarDistanceTolerance bounds the difference (metres) between the
	// robot-to-line distances of a candidate and a tracked edge.
	similarDistanceTolerance = 0.4
	// nearestSearchLimit is the initial best distance when selecting the
	// next edge.
	nearestSearchLimit = 10000.0
)

var (
	// ErrNoEdges is returned by nearest-edge accessors when nothing is tracked.
	ErrNoEdges = errors.New("no edges tracked")
	// ErrIndexOutOfRange is wrapped by IndexError.
	ErrIndexOutOfRange = errors.New("edge index out of range")
)

// IndexError reports an accessor call with an index outside the tracked
// collection. It is a caller contract violation.
type IndexError struct {
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("edge index %d out of range [0, %d)", e.Index, e.Count)
}

// Unwrap returns ErrIndexOutOfRange.
func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}

// Result summarises one Advance cycle.
type Result struct {
	Cycle uint64

	// Re-validation of previously tracked edges. Dropped also counts edges
	// whose height left the bounds after absorbing a candidate.
	Kept    int
	Dropped int

	// Ingestion of new segments
	Candidates     int
	RejectedLength int
	RejectedHeight int
	Merged         int
	Redundant      int
	Added          int

	// Selection
	EdgeCount       int
	NearestIndex    int    // -1 when EdgeCount == 0
	Direction       r2.Vec // LineCoeffs of the nearest edge
	NearestHeight   float64
	NearestDistance float64
}

// Tracker maintains the persistent set of step edges across observation
// cycles. It is not safe for concurrent use.
type Tracker struct {
	Config TrackerConfig

	edges     []Edge
	pose      Pose
	nearest   int
	direction r2.Vec
	cycle     uint64

	debug *DebugCollector
	hooks []CycleHook
}

// NewTracker creates an empty Tracker with the given configuration.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}
	diagf("tracker parameters: frame=%s min_length=%.3f max_length=%.3f min_height=%.3f max_height=%.3f",
		cfg.FrameName, cfg.MinLength, cfg.MaxLength, cfg.MinHeight, cfg.MaxHeight)
	return &Tracker{Config: cfg}, nil
}

// SetDebugCollector attaches a collector that records per-cycle decisions.
// Pass nil to detach.
func (t *Tracker) SetDebugCollector(c *DebugCollector) {
	t.debug = c
}

// AddHook registers a hook invoked at the end of every Advance.
func (t *Tracker) AddHook(h CycleHook) {
	if h != nil {
		t.hooks = append(t.hooks, h)
	}
}

// Reset clears all tracked edges and the cycle counter.
func (t *Tracker) Reset() {
	t.edges = nil
	t.pose = Pose{}
	t.nearest = 0
	t.direction = r2.Vec{}
	t.cycle = 0
	t.debug.Reset()
}

// Advance runs one observation cycle: re-validate tracked edges against the
// current pose, ingest the new pixel-space segments, then select the edge
// nearest to the robot.
//
// frame and q describe the elevation grid the segments came from; they are
// only used for the duration of the call.
func (t *Tracker) Advance(pose Pose, frame GridFrame, q HeightQuery, segments []Segment) Result {
	t.cycle++
	t.pose = pose
	t.debug.BeginCycle(t.cycle)

	res := Result{
		Cycle:        t.cycle,
		Candidates:   len(segments),
		NearestIndex: -1,
	}

	t.checkExistingEdges(q, &res)
	t.findNewEdges(frame, q, segments, &res)
	t.findNextEdge()

	res.EdgeCount = len(t.edges)
	if len(t.edges) > 0 {
		next := t.edges[t.nearest]
		t.direction = next.LineCoeffs
		res.NearestIndex = t.nearest
		res.Direction = next.LineCoeffs
		res.NearestHeight = next.Height
		res.NearestDistance = DistanceToBase(next.Point1, next.Point2, pose.Position())
	} else {
		t.direction = r2.Vec{}
	}

	diagf("cycle %d: %d edges tracked (kept=%d dropped=%d added=%d merged=%d redundant=%d)",
		t.cycle, len(t.edges), res.Kept, res.Dropped, res.Added, res.Merged, res.Redundant)

	t.notify(res)
	return res
}

// checkExistingEdges re-estimates the height of every tracked edge from the
// current pose and rebuilds the collection from the edges still within the
// height bounds, sorted nearest first.
func (t *Tracker) checkExistingEdges(q HeightQuery, res *Result) {
	if len(t.edges) == 0 {
		return
	}

	kept := make([]Edge, 0, len(t.edges))
	for _, e := range t.edges {
		est := StepHeight(e.Point1, e.Point2, t.pose.Yaw, q)
		if !t.Config.heightInBounds(est.Height) {
			t.debug.RecordRevalidation(e, est.Height, DecisionDropped)
			res.Dropped++
			continue
		}
		e.Height = est.Height
		e.Z = est.Z
		t.debug.RecordRevalidation(e, est.Height, DecisionKept)
		kept = append(kept, e)
	}
	res.Kept = len(kept)
	t.edges = kept

	t.sortEdgesFromClosestToFurthest()
}

// sortEdgesFromClosestToFurthest orders the collection by unsigned distance
// from the robot, keeping the existing order among equal distances.
func (t *Tracker) sortEdgesFromClosestToFurthest() {
	base := t.pose.Position()
	sort.SliceStable(t.edges, func(i, j int) bool {
		return DistanceToBase(t.edges[i].Point1, t.edges[i].Point2, base) <
			DistanceToBase(t.edges[j].Point1, t.edges[j].Point2, base)
	})
}

// findNewEdges converts each segment to the world frame, filters it on
// length and height, and either folds it into a similar tracked edge or
// appends it.
func (t *Tracker) findNewEdges(frame GridFrame, q HeightQuery, segments []Segment, res *Result) {
	if len(segments) == 0 {
		return
	}
	if frame.Resolution <= 0 {
		opsf("cycle %d: ignoring %d segments from grid with resolution %f", t.cycle, len(segments), frame.Resolution)
		return
	}

	for _, s := range segments {
		p1, p2 := canonicalOrder(PixelToWorld(frame, s.X1, s.Y1), PixelToWorld(frame, s.X2, s.Y2))
		rec := CandidateRecord{Segment: s, Point1: p1, Point2: p2, MatchIndex: -1}

		rec.Length = Length(p1, p2)
		if !t.Config.lengthInBounds(rec.Length) {
			rec.Decision = DecisionRejectedLength
			res.RejectedLength++
			t.debug.RecordCandidate(rec)
			continue
		}

		yaw := Orientation(p1, p2)
		est := StepHeight(p1, p2, t.pose.Yaw, q)
		rec.Height = est.Height
		if !t.Config.heightInBounds(est.Height) {
			rec.Decision = DecisionRejectedHeight
			res.RejectedHeight++
			t.debug.RecordCandidate(rec)
			continue
		}

		idx, merged := t.isEdgeRedundant(p1, p2, q)
		rec.MatchIndex = idx
		switch {
		case idx < 0:
			t.edges = append(t.edges, Edge{
				Point1:     p1,
				Point2:     p2,
				Length:     rec.Length,
				Yaw:        yaw,
				LineCoeffs: lineCoeffs(yaw),
				Height:     est.Height,
				Z:          est.Z,
			})
			rec.Decision = DecisionAdded
			res.Added++
			tracef("cycle %d: segment %s is not redundant, tracking %s", t.cycle, s, t.edges[len(t.edges)-1])
		case merged:
			rec.Decision = DecisionMerged
			res.Merged++
		default:
			rec.Decision = DecisionRedundant
			res.Redundant++
		}
		t.debug.RecordCandidate(rec)

		if idx >= 0 && !t.Config.heightInBounds(t.edges[idx].Height) {
			t.debug.RecordRevalidation(t.edges[idx], t.edges[idx].Height, DecisionDropped)
			tracef("cycle %d: dropping %s after refresh", t.cycle, t.edges[idx])
			t.edges = append(t.edges[:idx], t.edges[idx+1:]...)
			res.Dropped++
		}
	}

	// Merged endpoints change an edge's distance to the robot.
	if res.Added > 0 || res.Merged > 0 {
		t.sortEdgesFromClosestToFurthest()
	}
}

// isEdgeRedundant scans the tracked edges for one similar to p1-p2. The
// first similar edge absorbs the candidate: when both endpoints fall inside
// its matching ellipses the endpoints are averaged. Either way its derived
// attributes are refreshed. Returns the matched index (-1 when none) and
// whether the endpoints were merged.
func (t *Tracker) isEdgeRedundant(p1, p2 r2.Vec, q HeightQuery) (int, bool) {
	base := t.pose.Position()
	for i := range t.edges {
		e := &t.edges[i]
		if !hasSimilarLineCoefficients(*e, p1, p2, base) {
			continue
		}

		merged := false
		d11 := InsideEllipse(e.Yaw, e.Point1, p1, mergeSemiAxis, t.Config.MinLength)
		d22 := InsideEllipse(e.Yaw, e.Point2, p2, mergeSemiAxis, t.Config.MinLength)
		if d11 && d22 {
			e.Point1 = r2.Scale(0.5, r2.Add(e.Point1, p1))
			e.Point2 = r2.Scale(0.5, r2.Add(e.Point2, p2))
			merged = true
		}
		t.refresh(e, q)
		return i, merged
	}
	return -1, false
}

// refresh recomputes every attribute derived from the endpoints.
func (t *Tracker) refresh(e *Edge, q HeightQuery) {
	e.Length = Length(e.Point1, e.Point2)
	e.Yaw = Orientation(e.Point1, e.Point2)
	e.LineCoeffs = lineCoeffs(e.Yaw)
	est := StepHeight(e.Point1, e.Point2, t.pose.Yaw, q)
	e.Height = est.Height
	e.Z = est.Z
}

// hasSimilarLineCoefficients reports whether p1-p2 looks like the same
// physical line as existing, seen from base.
func hasSimilarLineCoefficients(existing Edge, p1, p2, base r2.Vec) bool {
	coeffs := lineCoeffs(Orientation(p1, p2))
	existingDistance := DistanceToBase(existing.Point1, existing.Point2, base)
	newDistance := DistanceToBase(p1, p2, base)
	return math.Abs(existing.LineCoeffs.X-coeffs.X) < similarCoeffTolerance &&
		math.Abs(existing.LineCoeffs.Y-coeffs.Y) < similarCoeffTolerance &&
		math.Abs(existingDistance-newDistance) < similarDistanceTolerance
}

// findNextEdge selects the tracked edge with the smallest unsigned distance
// to the robot. The first edge wins ties.
func (t *Tracker) findNextEdge() int {
	base := t.pose.Position()
	minDist := nearestSearchLimit
	closest := 0
	for i, e := range t.edges {
		d := DistanceToBase(e.Point1, e.Point2, base)
		if d < minDist {
			minDist = d
			closest = i
		}
	}
	t.nearest = closest
	return closest
}

// notify emits the cycle snapshot to registered hooks.
func (t *Tracker) notify(res Result) {
	debugCycle := t.debug.Emit()
	if len(t.hooks) == 0 {
		return
	}
	snap := CycleSnapshot{
		Pose:   t.pose,
		Edges:  t.Edges(),
		Result: res,
		Debug:  debugCycle,
	}
	for _, h := range t.hooks {
		h.OnCycle(snap)
	}
}

// PixelToWorld converts a grid pixel (column px, row py) to the world frame.
// Image axes are swapped and inverted relative to the world axes.
func PixelToWorld(frame GridFrame, px, py int) r2.Vec {
	gsx := float64(frame.SizeX)
	gsy := float64(frame.SizeY)
	return r2.Vec{
		X: (gsy/2.0-float64(py))*frame.Resolution + frame.Origin.X,
		Y: (gsx/2.0-float64(px))*frame.Resolution + frame.Origin.Y,
	}
}

// canonicalOrder returns the endpoints with the larger x first; when x is
// equal the endpoints are swapped.
func canonicalOrder(p1, p2 r2.Vec) (r2.Vec, r2.Vec) {
	if p1.X > p2.X {
		return p1, p2
	}
	return p2, p1
}

// EdgeCount returns the number of tracked edges.
func (t *Tracker) EdgeCount() int {
	return len(t.edges)
}

// Edges returns a copy of the tracked edges in tracker order.
func (t *Tracker) Edges() []Edge {
	out := make([]Edge, len(t.edges))
	copy(out, t.edges)
	return out
}

// Cycle returns the number of completed Advance calls since the last Reset.
func (t *Tracker) Cycle() uint64 {
	return t.cycle
}

// Pose returns the pose of the most recent cycle.
func (t *Tracker) Pose() Pose {
	return t.pose
}

// Edge returns the tracked edge at index i.
func (t *Tracker) Edge(i int) (Edge, error) {
	if i < 0 || i >= len(t.edges) {
		return Edge{}, &IndexError{Index: i, Count: len(t.edges)}
	}
	return t.edges[i], nil
}

// NearestIndex returns the index of the edge selected by the last cycle.
func (t *Tracker) NearestIndex() (int, error) {
	if len(t.edges) == 0 {
		return 0, ErrNoEdges
	}
	return t.nearest, nil
}

// NearestEdge returns the edge selected by the last cycle.
func (t *Tracker) NearestEdge() (Edge, error) {
	if len(t.edges) == 0 {
		return Edge{}, ErrNoEdges
	}
	return t.edges[t.nearest], nil
}

// NearestEdgeDirection returns the (sin, cos) direction coefficients of the
// nearest edge.
func (t *Tracker) NearestEdgeDirection() (r2.Vec, error) {
	if len(t.edges) == 0 {
		return r2.Vec{}, ErrNoEdges
	}
	return t.direction, nil
}

// NearestEdgeHeight returns the signed step height of the nearest edge.
func (t *Tracker) NearestEdgeHeight() (float64, error) {
	e, err := t.NearestEdge()
	if err != nil {
		return 0, err
	}
	return e.Height, nil
}

// NearestEdgeDistance returns the unsigned distance from pose to the line of
// the nearest edge.
func (t *Tracker) NearestEdgeDistance(pose Pose) (float64, error) {
	e, err := t.NearestEdge()
	if err != nil {
		return 0, err
	}
	return DistanceToBase(e.Point1, e.Point2, pose.Position()), nil
}

// EdgeHeight returns the signed step height of edge i.
func (t *Tracker) EdgeHeight(i int) (float64, error) {
	e, err := t.Edge(i)
	if err != nil {
		return 0, err
	}
	return e.Height, nil
}

// EdgeYaw returns the world-frame yaw of edge i, recomputed from its endpoints.
func (t *Tracker) EdgeYaw(i int) (float64, error) {
	e, err := t.Edge(i)
	if err != nil {
		return 0, err
	}
	return Orientation(e.Point1, e.Point2), nil
}

// EdgeMidpoint returns the midpoint of edge i.
func (t *Tracker) EdgeMidpoint(i int) (r2.Vec, error) {
	e, err := t.Edge(i)
	if err != nil {
		return r2.Vec{}, err
	}
	return e.Midpoint(), nil
}
