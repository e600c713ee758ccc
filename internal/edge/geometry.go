package edge

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// facingTolerance is the angular window used by IsFacingRobot.
const facingTolerance = math.Pi / 6.0

// Length returns the Euclidean distance between p1 and p2.
func Length(p1, p2 r2.Vec) float64 {
	return r2.Norm(r2.Sub(p1, p2))
}

// Orientation returns the yaw of the line through p1 and p2, measured from
// p2 towards p1.
func Orientation(p1, p2 r2.Vec) float64 {
	return math.Atan2(p1.Y-p2.Y, p1.X-p2.X)
}

// SignedDistanceToBase returns the perpendicular signed distance from base
// to the infinite line through p1 and p2. The caller must ensure p1 != p2.
func SignedDistanceToBase(p1, p2, base r2.Vec) float64 {
	num := (p2.Y-p1.Y)*base.X - (p2.X-p1.X)*base.Y + p2.X*p1.Y - p2.Y*p1.X
	return num / Length(p1, p2)
}

// DistanceToBase returns the unsigned perpendicular distance from base to the
// line through p1 and p2. It is the ranking metric for tracked edges.
func DistanceToBase(p1, p2, base r2.Vec) float64 {
	return math.Abs(SignedDistanceToBase(p1, p2, base))
}

// InsideEllipse reports whether p lies inside the ellipse centred on center
// with semi-axes a and b, where the b axis runs along refYaw.
func InsideEllipse(refYaw float64, center, p r2.Vec, a, b float64) bool {
	local := r2.Rotate(r2.Sub(p, center), -refYaw+math.Pi/2.0, r2.Vec{})
	v := local.X*local.X/(a*a) + local.Y*local.Y/(b*b)
	return v <= 1.0
}

// LimitAngle returns yaw unchanged; IsFacingRobot compares unwrapped angles.
func LimitAngle(yaw float64) float64 {
	return yaw
}

// IsFacingRobot reports whether an edge with the given world yaw is roughly
// perpendicular to the robot heading, i.e. the robot walks straight at it.
func IsFacingRobot(edgeYaw, robotYaw float64) bool {
	wrappedEdge := LimitAngle(edgeYaw - math.Pi/2.0)
	wrappedRobot := LimitAngle(robotYaw)
	return math.Abs(wrappedEdge-wrappedRobot) < facingTolerance
}
