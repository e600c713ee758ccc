package edge

import "gonum.org/v1/gonum/spatial/r2"

// staircaseStep is one synthetic stair nosing.
type staircaseStep struct {
	x      float64
	height float64
}

// staircaseFixture is a straight flight of stairs along +x, each nosing
// modelled as a pair of parallel one-metre lines.
var staircaseFixture = []staircaseStep{
	{0.74, 0.06}, {1.26, 0.06},
	{1.88, 0.12}, {2.12, 0.12},
	{3.0, 0.25}, {4.0, 0.25},
	{4.74, 0.18}, {5.26, 0.18},
	{6.38, 0.12}, {6.62, 0.12},
}

const (
	staircaseHalfWidth = 0.5
	staircaseYaw       = 1.57
)

// SeedStaircase replaces the tracked collection with a synthetic staircase
// in front of pose. Each step passes through the same redundancy check as
// observed segments, so steps closer than the similarity tolerance fold into
// their neighbour and are refreshed against q. A nil q is treated as flat
// ground at zero elevation.
func (t *Tracker) SeedStaircase(pose Pose, q HeightQuery) {
	if q == nil {
		q = HeightFunc(func(_, _ float64) float64 { return 0 })
	}

	t.edges = t.edges[:0]
	t.pose = pose

	for _, step := range staircaseFixture {
		p1 := r2.Vec{X: step.x, Y: staircaseHalfWidth}
		p2 := r2.Vec{X: step.x, Y: -staircaseHalfWidth}
		if idx, _ := t.isEdgeRedundant(p1, p2, q); idx >= 0 {
			tracef("seed step at x=%.2f folded into edge %d", step.x, idx)
			continue
		}
		t.edges = append(t.edges, Edge{
			Point1:     p1,
			Point2:     p2,
			Length:     2 * staircaseHalfWidth,
			Yaw:        staircaseYaw,
			LineCoeffs: lineCoeffs(staircaseYaw),
			Height:     step.height,
			Z:          step.height,
		})
	}

	t.findNextEdge()
	t.direction = r2.Vec{}
	if len(t.edges) > 0 {
		t.direction = t.edges[t.nearest].LineCoeffs
	}
	opsf("seeded %d staircase edges", len(t.edges))
}
