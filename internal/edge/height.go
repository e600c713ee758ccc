package edge

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

const (
	// heightSampleCount is the number of interior points sampled along a line.
	heightSampleCount = 10
	// heightSampleOffset is the distance (metres) either side of the line at
	// which the surface is probed.
	heightSampleOffset = 0.15
)

// HeightEstimate is the result of sampling the surface across a line.
type HeightEstimate struct {
	Height float64 // mean signed step height across the line
	Z      float64 // higher side elevation at the last sample
}

// StepHeight estimates the signed step height across the segment p1-p2.
//
// The edge normal is flipped to agree with the robot heading, so a positive
// height is a step up in the direction the robot is facing regardless of
// which side of the edge the robot stands on. Sentinel values returned by q
// for unknown cells are averaged in as-is.
func StepHeight(p1, p2 r2.Vec, robotYaw float64, q HeightQuery) HeightEstimate {
	normal := lineCoeffs(Orientation(p1, p2))
	forward := r2.Vec{X: math.Cos(robotYaw), Y: math.Sin(robotYaw)}
	if r2.Dot(forward, normal) < 0 {
		normal = r2.Scale(-1, normal)
	}

	heights := make([]float64, heightSampleCount)
	var z float64
	span := r2.Sub(p2, p1)
	for i := range heights {
		frac := 0.1*float64(i) + 0.05
		p := r2.Add(p1, r2.Scale(frac, span))
		heights[i], z = sampleHeight(normal, p, q)
	}

	return HeightEstimate{
		Height: stat.Mean(heights, nil),
		Z:      z,
	}
}

// sampleHeight probes the surface on both sides of p along normal and
// returns the plus-minus difference and the higher of the two elevations.
func sampleHeight(normal, p r2.Vec, q HeightQuery) (diff, z float64) {
	plus := r2.Add(p, r2.Scale(heightSampleOffset, normal))
	minus := r2.Sub(p, r2.Scale(heightSampleOffset, normal))
	z1 := q.HeightAt(plus.X, plus.Y)
	z2 := q.HeightAt(minus.X, minus.Y)
	return z1 - z2, math.Max(z1, z2)
}
