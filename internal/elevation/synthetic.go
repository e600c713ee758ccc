package elevation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/edgetrack/internal/edge"
)

// StaircaseScene is a straight flight of stairs rising along +x. Outside
// the flight's width the floor stays at zero.
type StaircaseScene struct {
	FirstRiser float64 // x of the first riser
	Tread      float64 // tread depth
	Rise       float64 // riser height
	Steps      int
	Width      float64 // centred on y=0
}

// DefaultStaircaseScene returns five 17 cm steps starting one metre ahead
// of the origin.
func DefaultStaircaseScene() StaircaseScene {
	return StaircaseScene{
		FirstRiser: 1.0,
		Tread:      0.5,
		Rise:       0.17,
		Steps:      5,
		Width:      1.0,
	}
}

// Validate rejects scenes that cannot be rasterised.
func (s StaircaseScene) Validate() error {
	if s.Tread <= 0 {
		return fmt.Errorf("tread must be positive, got %f", s.Tread)
	}
	if s.Steps < 0 {
		return fmt.Errorf("steps must be non-negative, got %d", s.Steps)
	}
	if s.Width <= 0 {
		return fmt.Errorf("width must be positive, got %f", s.Width)
	}
	return nil
}

// HeightAt returns the surface height at (x, y).
func (s StaircaseScene) HeightAt(x, y float64) float64 {
	if math.Abs(y) > s.Width/2 || x < s.FirstRiser {
		return 0
	}
	n := int(math.Floor((x-s.FirstRiser)/s.Tread)) + 1
	if n > s.Steps {
		n = s.Steps
	}
	return float64(n) * s.Rise
}

// Observations samples the scene from frames poses walking along +x from
// the origin, stride metres apart, each with a robot-centred square map.
func (s StaircaseScene) Observations(frames int, stride, resolution float64, size int) ([]Observation, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := make([]Observation, 0, frames)
	for k := 0; k < frames; k++ {
		pose := edge.Pose{X: float64(k) * stride}
		g, err := NewGrid(resolution, size, size, r2.Vec{X: pose.X, Y: pose.Y})
		if err != nil {
			return nil, err
		}
		g.Fill(s.HeightAt)
		out = append(out, Observation{Stamp: float64(k) * 0.1, Pose: pose, Map: g})
	}
	return out, nil
}
