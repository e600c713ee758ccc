package edge

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Pose is the robot's planar pose in the world frame.
type Pose struct {
	X   float64 // metres
	Y   float64 // metres
	Yaw float64 // radians
}

// Position returns the pose's planar position.
func (p Pose) Position() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Segment is a raw line segment in elevation-grid pixel coordinates, as
// produced by a probabilistic Hough transform: X is the image column and
// Y the image row.
type Segment struct {
	X1, Y1 int
	X2, Y2 int
}

func (s Segment) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", s.X1, s.Y1, s.X2, s.Y2)
}

// GridFrame describes the pixel-to-world mapping of the elevation grid a
// set of segments was extracted from.
type GridFrame struct {
	Resolution float64 // metres per cell
	SizeX      int     // cells along the grid's first index
	SizeY      int     // cells along the grid's second index
	Origin     r2.Vec  // world position of the grid centre
}

// HeightQuery returns the surface elevation at a world position. Positions
// without a reliable elevation return a large sentinel value rather than an
// error; callers let it propagate numerically.
type HeightQuery interface {
	HeightAt(x, y float64) float64
}

// HeightFunc adapts a plain function to HeightQuery.
type HeightFunc func(x, y float64) float64

// HeightAt calls f(x, y).
func (f HeightFunc) HeightAt(x, y float64) float64 {
	return f(x, y)
}

// Edge is a tracked step edge in the world frame.
//
// Length, Yaw, LineCoeffs, Height and Z are derived from the endpoints and
// are always refreshed together whenever Point1 or Point2 change.
type Edge struct {
	Point1 r2.Vec
	Point2 r2.Vec

	Length     float64 // |Point1 - Point2|
	Yaw        float64 // atan2 of Point1 - Point2
	LineCoeffs r2.Vec  // (sin(Yaw), cos(Yaw))

	Height float64 // signed step height; positive is a step up along the robot heading
	Z      float64 // higher side elevation at the last height sample
}

// Midpoint returns the point halfway between the edge endpoints.
func (e Edge) Midpoint() r2.Vec {
	return r2.Scale(0.5, r2.Add(e.Point1, e.Point2))
}

// String formats the edge for logs.
func (e Edge) String() string {
	return fmt.Sprintf("(%.3f,%.3f)-(%.3f,%.3f) len=%.3f yaw=%.3f h=%.3f",
		e.Point1.X, e.Point1.Y, e.Point2.X, e.Point2.Y, e.Length, e.Yaw, e.Height)
}

// lineCoeffs returns the (sin, cos) direction encoding of a yaw angle.
func lineCoeffs(yaw float64) r2.Vec {
	return r2.Vec{X: math.Sin(yaw), Y: math.Cos(yaw)}
}
