package edge

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

// testFrame maps image rows to world x ((100-row)*0.05) and image columns to
// world y ((50-col)*0.05).
var testFrame = GridFrame{
	Resolution: 0.05,
	SizeX:      100,
	SizeY:      200,
}

// rowSegment returns a one-metre segment across world y = +/-0.5 on the
// given image row.
func rowSegment(row int) Segment {
	return Segment{X1: 40, Y1: row, X2: 60, Y2: row}
}

// staircase returns a surface that rises by rise at every x in steps.
func staircase(base, rise float64, steps ...float64) HeightFunc {
	return func(x, _ float64) float64 {
		h := base
		for _, s := range steps {
			if x > s {
				h += rise
			}
		}
		return h
	}
}

// fineFrame maps image rows to world x ((200-row)*0.01) and image columns to
// world y ((200-col)*0.01).
var fineFrame = GridFrame{
	Resolution: 0.01,
	SizeX:      400,
	SizeY:      400,
}

// fineRowSegment returns a one-metre segment across world y = +/-0.5 on the
// given fineFrame row.
func fineRowSegment(row int) Segment {
	return Segment{X1: 150, Y1: row, X2: 250, Y2: row}
}

// sideStep is a one-metre segment along y = 1.5 for x in [-2, -1] in
// fineFrame.
var sideStep = Segment{X1: 50, Y1: 300, X2: 50, Y2: 400}

// withSideStep adds a 0.25 m rise across y = 1.5 to surface.
func withSideStep(surface HeightFunc) HeightFunc {
	return func(x, y float64) float64 {
		h := surface(x, y)
		if y > 1.5 {
			h += 0.25
		}
		return h
	}
}

// requireTrackedEdgesValid checks that the tracked collection is ordered by
// distance to pose and that every edge lies within the height bounds.
func requireTrackedEdgesValid(t *testing.T, tr *Tracker, pose Pose) {
	t.Helper()
	edges := tr.Edges()
	base := pose.Position()
	for i, e := range edges {
		h := math.Abs(e.Height)
		assert.Greater(t, h, tr.Config.MinHeight, "edge %d: %s", i, e)
		assert.Less(t, h, tr.Config.MaxHeight, "edge %d: %s", i, e)
		if i == 0 {
			continue
		}
		prev := DistanceToBase(edges[i-1].Point1, edges[i-1].Point2, base)
		cur := DistanceToBase(e.Point1, e.Point2, base)
		assert.LessOrEqual(t, prev, cur, "edges %d and %d out of order", i-1, i)
	}
}

func newTestTracker(t *testing.T, cfg TrackerConfig) *Tracker {
	t.Helper()
	tr, err := NewTracker(cfg)
	require.NoError(t, err)
	return tr
}

func TestNewTrackerRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultTrackerConfig()
	cfg.MaxLength = cfg.MinLength
	tr, err := NewTracker(cfg)
	assert.Error(t, err)
	assert.Nil(t, tr)
}

func TestPixelToWorld(t *testing.T) {
	t.Parallel()

	frame := GridFrame{Resolution: 0.05, SizeX: 100, SizeY: 100}
	assert.InDelta(t, 1.0, PixelToWorld(frame, 40, 30).X, 1e-9)
	assert.InDelta(t, 0.5, PixelToWorld(frame, 40, 30).Y, 1e-9)
	assert.InDelta(t, -0.5, PixelToWorld(frame, 60, 30).Y, 1e-9)

	frame.Origin = r2.Vec{X: 10, Y: -3}
	centre := PixelToWorld(frame, 50, 50)
	assert.InDelta(t, 10.0, centre.X, 1e-9)
	assert.InDelta(t, -3.0, centre.Y, 1e-9)
}

func TestAdvanceAcceptsStepAhead(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	surface := staircase(0.05, 0.25, 1.0)

	res := tr.Advance(Pose{}, testFrame, surface, []Segment{rowSegment(80)})

	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.EdgeCount)
	assert.Equal(t, 0, res.NearestIndex)
	assert.InDelta(t, 0.25, res.NearestHeight, 1e-9)
	assert.InDelta(t, 1.0, res.NearestDistance, 1e-9)

	e, err := tr.Edge(0)
	require.NoError(t, err)
	// Equal x: endpoints are swapped into canonical order.
	assert.InDelta(t, 1.0, e.Point1.X, 1e-9)
	assert.InDelta(t, -0.5, e.Point1.Y, 1e-9)
	assert.InDelta(t, 0.5, e.Point2.Y, 1e-9)
	assert.InDelta(t, 1.0, e.Length, 1e-9)
	assert.InDelta(t, -math.Pi/2, e.Yaw, 1e-9)
	assert.InDelta(t, 0.3, e.Z, 1e-9)

	h, err := tr.NearestEdgeHeight()
	require.NoError(t, err)
	assert.InDelta(t, 0.25, h, 1e-9)

	dir, err := tr.NearestEdgeDirection()
	require.NoError(t, err)
	assert.InDelta(t, -1.0, dir.X, 1e-9)
	assert.InDelta(t, 0.0, dir.Y, 1e-9)

	yaw, err := tr.EdgeYaw(0)
	require.NoError(t, err)
	assert.InDelta(t, -math.Pi/2, yaw, 1e-9)

	mid, err := tr.EdgeMidpoint(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, mid.X, 1e-9)
	assert.InDelta(t, 0.0, mid.Y, 1e-9)

	d, err := tr.NearestEdgeDistance(Pose{X: 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, d, 1e-9)
}

func TestAdvanceRejectsLowStep(t *testing.T) {
	t.Parallel()

	cfg := DefaultTrackerConfig()
	cfg.MinHeight = 0.5
	tr := newTestTracker(t, cfg)

	res := tr.Advance(Pose{}, testFrame, staircase(0.05, 0.25, 1.0), []Segment{rowSegment(80)})

	assert.Equal(t, 1, res.RejectedHeight)
	assert.Equal(t, 0, res.EdgeCount)
	assert.Equal(t, -1, res.NearestIndex)
	assert.Equal(t, 0, tr.EdgeCount())
}

func TestAdvanceRejectsLengthOutOfBounds(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	surface := staircase(0.05, 0.25, 1.0)
	short := Segment{X1: 48, Y1: 80, X2: 52, Y2: 80} // 0.2 m
	long := Segment{X1: 10, Y1: 80, X2: 50, Y2: 80}  // 2.0 m

	res := tr.Advance(Pose{}, testFrame, surface, []Segment{short, long})

	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 2, res.RejectedLength)
	assert.Equal(t, 0, tr.EdgeCount())
}

func TestAdvanceLengthBoundsAreExclusive(t *testing.T) {
	t.Parallel()

	surface := staircase(0.05, 0.25, 1.0)
	tests := []struct {
		name    string
		seg     Segment
		wantAdd bool
	}{
		{"0.5 m equals min length", Segment{X1: 45, Y1: 80, X2: 55, Y2: 80}, false},
		{"0.55 m above min length", Segment{X1: 45, Y1: 80, X2: 56, Y2: 80}, true},
		{"1.45 m below max length", Segment{X1: 36, Y1: 80, X2: 65, Y2: 80}, true},
		{"1.5 m equals max length", Segment{X1: 35, Y1: 80, X2: 65, Y2: 80}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTracker(t, DefaultTrackerConfig())
			res := tr.Advance(Pose{}, testFrame, surface, []Segment{tt.seg})
			if tt.wantAdd {
				assert.Equal(t, 1, res.Added)
				assert.Equal(t, 0, res.RejectedLength)
			} else {
				assert.Equal(t, 0, res.Added)
				assert.Equal(t, 1, res.RejectedLength)
			}
		})
	}
}

func TestAdvanceStepBehindRobotIsNegative(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	res := tr.Advance(Pose{X: 2, Yaw: math.Pi}, testFrame, staircase(0.05, 0.25, 1.0), []Segment{rowSegment(80)})

	require.Equal(t, 1, res.EdgeCount)
	assert.InDelta(t, -0.25, res.NearestHeight, 1e-9)
	assert.InDelta(t, 1.0, res.NearestDistance, 1e-9)
}

func TestAdvanceSelectsNearest(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	surface := staircase(0.05, 0.25, 1.0, 2.0)

	// Farther edge first.
	res := tr.Advance(Pose{}, testFrame, surface, []Segment{rowSegment(60), rowSegment(80)})

	require.Equal(t, 2, res.Added)
	assert.Equal(t, 2, tr.EdgeCount())

	idx, err := tr.NearestIndex()
	require.NoError(t, err)
	nearest, err := tr.Edge(idx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, nearest.Point1.X, 1e-9)
	assert.InDelta(t, 1.0, res.NearestDistance, 1e-9)

	// Moving past the first step makes the second the nearest.
	res = tr.Advance(Pose{X: 1.8}, testFrame, surface, nil)
	require.Equal(t, 2, res.EdgeCount)
	next, err := tr.NearestEdge()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, next.Point1.X, 1e-9)
	assert.InDelta(t, 0.2, res.NearestDistance, 1e-9)
}

func TestAdvanceKeepsCollectionSortedByDistance(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	surface := staircase(0.05, 0.25, 1.0, 2.0, 3.0)

	res := tr.Advance(Pose{}, testFrame, surface, []Segment{rowSegment(40), rowSegment(80), rowSegment(60)})
	require.Equal(t, 3, res.Added)

	edges := tr.Edges()
	require.Len(t, edges, 3)
	base := r2.Vec{}
	for i := 1; i < len(edges); i++ {
		prev := DistanceToBase(edges[i-1].Point1, edges[i-1].Point2, base)
		cur := DistanceToBase(edges[i].Point1, edges[i].Point2, base)
		assert.LessOrEqual(t, prev, cur)
	}
	assert.Equal(t, 0, res.NearestIndex)
}

func TestAdvanceMergesNearbySegment(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	surface := staircase(0.05, 0.25, 1.0)

	tr.Advance(Pose{}, testFrame, surface, []Segment{rowSegment(80)})
	res := tr.Advance(Pose{}, testFrame, surface, []Segment{rowSegment(79)})

	assert.Equal(t, 1, res.Kept)
	assert.Equal(t, 1, res.Merged)
	assert.Equal(t, 0, res.Added)
	require.Equal(t, 1, tr.EdgeCount())

	e, err := tr.Edge(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.025, e.Point1.X, 1e-9)
	assert.InDelta(t, 1.025, e.Point2.X, 1e-9)
	assert.InDelta(t, 1.0, e.Length, 1e-9)
	assert.InDelta(t, 0.25, e.Height, 1e-9)
	requireTrackedEdgesValid(t, tr, Pose{})
}

func TestAdvanceResortsAfterMerge(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	// Risers at x=1.0 and x=1.2 so a candidate at x=1.18 also sees a step.
	surface := withSideStep(staircase(0.05, 0.25, 1.0, 1.2))

	res := tr.Advance(Pose{}, fineFrame, surface, []Segment{fineRowSegment(100), sideStep})
	require.Equal(t, 2, res.Added)
	requireTrackedEdgesValid(t, tr, Pose{})

	// From y=0.45 the front edge (1.0 m) is still nearer than the side edge
	// (1.05 m) until a candidate at x=1.18 pulls it out to x=1.09.
	pose := Pose{Y: 0.45}
	res = tr.Advance(pose, fineFrame, surface, []Segment{fineRowSegment(82)})
	require.Equal(t, 1, res.Merged)
	require.Equal(t, 2, res.EdgeCount)
	requireTrackedEdgesValid(t, tr, pose)

	first, err := tr.Edge(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, first.Point1.Y, 1e-9)
	second, err := tr.Edge(1)
	require.NoError(t, err)
	assert.InDelta(t, 1.09, second.Point1.X, 1e-9)

	assert.Equal(t, 0, res.NearestIndex)
	assert.InDelta(t, 1.05, res.NearestDistance, 1e-9)
}

func TestAdvanceDropsEdgeFlattenedByMerge(t *testing.T) {
	t.Parallel()

	// A 0.25 m ridge between x=0.9 and x=1.3: the rising edge at x=1.0 and
	// the falling edge at x=1.19 are both valid, their midpoint is not.
	ridge := func(x, _ float64) float64 {
		if x > 0.9 && x < 1.3 {
			return 0.3
		}
		return 0.05
	}
	surface := withSideStep(ridge)

	tr := newTestTracker(t, DefaultTrackerConfig())
	res := tr.Advance(Pose{}, fineFrame, surface, []Segment{fineRowSegment(100), sideStep})
	require.Equal(t, 2, res.Added)

	res = tr.Advance(Pose{}, fineFrame, surface, []Segment{fineRowSegment(81)})
	assert.Equal(t, 2, res.Kept)
	assert.Equal(t, 1, res.Merged)
	assert.Equal(t, 1, res.Dropped)
	require.Equal(t, 1, res.EdgeCount)
	requireTrackedEdgesValid(t, tr, Pose{})

	remaining, err := tr.NearestEdge()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, remaining.Point1.Y, 1e-9)
	assert.InDelta(t, 0.25, res.NearestHeight, 1e-9)
}

func TestAdvanceRedundantSegmentDoesNotMove(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	// Two risers so the candidate 0.25 m beyond the first also sees a step.
	surface := staircase(0.05, 0.3, 1.0, 1.3)

	tr.Advance(Pose{}, testFrame, surface, []Segment{rowSegment(80)})
	res := tr.Advance(Pose{}, testFrame, surface, []Segment{rowSegment(75)})

	assert.Equal(t, 1, res.Redundant)
	assert.Equal(t, 0, res.Merged)
	require.Equal(t, 1, tr.EdgeCount())

	e, err := tr.Edge(0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, e.Point1.X, 1e-9)
}

func TestAdvanceIsIdempotentWithoutNewSegments(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	surface := staircase(0.05, 0.25, 1.0, 2.0)
	pose := Pose{X: 0.2, Y: 0.1, Yaw: 0.05}

	tr.Advance(pose, testFrame, surface, []Segment{rowSegment(80), rowSegment(60)})
	before := tr.Edges()

	for i := 0; i < 3; i++ {
		res := tr.Advance(pose, testFrame, surface, nil)
		assert.Equal(t, len(before), res.Kept)
		assert.Equal(t, 0, res.Dropped)
	}

	if diff := cmp.Diff(before, tr.Edges()); diff != "" {
		t.Errorf("edges changed across idle cycles (-before +after):\n%s", diff)
	}
	assert.Equal(t, uint64(4), tr.Cycle())
}

func TestAdvanceDropsEdgesThatFlatten(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	tr.Advance(Pose{}, testFrame, staircase(0.05, 0.25, 1.0), []Segment{rowSegment(80)})
	require.Equal(t, 1, tr.EdgeCount())

	res := tr.Advance(Pose{}, testFrame, staircase(0.05, 0), nil)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 0, res.EdgeCount)
	assert.Equal(t, -1, res.NearestIndex)

	_, err := tr.NearestEdgeHeight()
	assert.ErrorIs(t, err, ErrNoEdges)
	_, err = tr.NearestEdgeDirection()
	assert.ErrorIs(t, err, ErrNoEdges)
	_, err = tr.NearestEdgeDistance(Pose{})
	assert.ErrorIs(t, err, ErrNoEdges)
}

func TestAdvanceIgnoresSegmentsWithoutResolution(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	res := tr.Advance(Pose{}, GridFrame{}, staircase(0.05, 0.25, 1.0), []Segment{rowSegment(80)})

	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 0, tr.EdgeCount())
}

func TestAccessorIndexErrors(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	tr.Advance(Pose{}, testFrame, staircase(0.05, 0.25, 1.0), []Segment{rowSegment(80)})

	for _, i := range []int{-1, 1, 7} {
		_, err := tr.EdgeHeight(i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)

		var idxErr *IndexError
		require.True(t, errors.As(err, &idxErr))
		assert.Equal(t, i, idxErr.Index)
		assert.Equal(t, 1, idxErr.Count)

		_, err = tr.EdgeYaw(i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		_, err = tr.EdgeMidpoint(i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}
}

func TestEdgesReturnsCopy(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	tr.Advance(Pose{}, testFrame, staircase(0.05, 0.25, 1.0), []Segment{rowSegment(80)})

	edges := tr.Edges()
	edges[0].Height = 42
	h, err := tr.EdgeHeight(0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, h, 1e-9)
}

func TestReset(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, DefaultTrackerConfig())
	tr.Advance(Pose{X: 0.3}, testFrame, staircase(0.05, 0.25, 1.0), []Segment{rowSegment(80)})
	tr.Reset()

	assert.Equal(t, 0, tr.EdgeCount())
	assert.Equal(t, uint64(0), tr.Cycle())
	assert.Equal(t, Pose{}, tr.Pose())
	_, err := tr.NearestEdge()
	assert.ErrorIs(t, err, ErrNoEdges)
}
