// Package elevation provides the robot-centric elevation grid consumed by the
// edge tracker and the line extractor.
package elevation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/edgetrack/internal/edge"
)

// InvalidHeight is returned by HeightAt for positions outside the grid or on
// unknown cells.
const InvalidHeight = 1e9

// ErrInvalidMap is wrapped by every grid construction or decoding error.
var ErrInvalidMap = errors.New("invalid elevation map")

// Grid is a square-celled elevation map centred on Position.
//
// Cell (i, j) follows the grid_map convention: i grows along -x and j along
// -y, so cell (0, 0) is the corner with the largest world x and y. Unknown
// cells hold NaN.
type Grid struct {
	Resolution float64 // metres per cell
	SizeX      int     // cells along i
	SizeY      int     // cells along j
	Position   r2.Vec  // world position of the grid centre

	data []float64 // row-major by i
}

// NewGrid returns a grid with every cell unknown.
func NewGrid(resolution float64, sizeX, sizeY int, position r2.Vec) (*Grid, error) {
	if resolution <= 0 || math.IsNaN(resolution) || math.IsInf(resolution, 0) {
		return nil, fmt.Errorf("%w: resolution must be positive, got %f", ErrInvalidMap, resolution)
	}
	if sizeX <= 0 || sizeY <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %dx%d", ErrInvalidMap, sizeX, sizeY)
	}
	data := make([]float64, sizeX*sizeY)
	for k := range data {
		data[k] = math.NaN()
	}
	return &Grid{
		Resolution: resolution,
		SizeX:      sizeX,
		SizeY:      sizeY,
		Position:   position,
		data:       data,
	}, nil
}

// NewGridFromData wraps an existing row-major cell slice. The slice is used
// directly, not copied.
func NewGridFromData(resolution float64, sizeX, sizeY int, position r2.Vec, data []float64) (*Grid, error) {
	g, err := NewGrid(resolution, sizeX, sizeY, position)
	if err != nil {
		return nil, err
	}
	if len(data) != sizeX*sizeY {
		return nil, fmt.Errorf("%w: %d cells for a %dx%d grid", ErrInvalidMap, len(data), sizeX, sizeY)
	}
	g.data = data
	return g, nil
}

// Length returns the grid's extent in metres along x and y.
func (g *Grid) Length() r2.Vec {
	return r2.Vec{X: float64(g.SizeX) * g.Resolution, Y: float64(g.SizeY) * g.Resolution}
}

// Frame returns the pixel-to-world mapping used by the tracker for segments
// extracted from this grid.
func (g *Grid) Frame() edge.GridFrame {
	return edge.GridFrame{
		Resolution: g.Resolution,
		SizeX:      g.SizeX,
		SizeY:      g.SizeY,
		Origin:     g.Position,
	}
}

// At returns the value of cell (i, j). It panics when the index is out of
// range, like a slice access.
func (g *Grid) At(i, j int) float64 {
	return g.data[g.offset(i, j)]
}

// Set stores v in cell (i, j).
func (g *Grid) Set(i, j int, v float64) {
	g.data[g.offset(i, j)] = v
}

// Fill sets every cell from f evaluated at the cell centre.
func (g *Grid) Fill(f func(x, y float64) float64) {
	for i := 0; i < g.SizeX; i++ {
		for j := 0; j < g.SizeY; j++ {
			p := g.CellPosition(i, j)
			g.Set(i, j, f(p.X, p.Y))
		}
	}
}

func (g *Grid) offset(i, j int) int {
	if i < 0 || i >= g.SizeX || j < 0 || j >= g.SizeY {
		panic(fmt.Sprintf("elevation: cell (%d, %d) outside %dx%d grid", i, j, g.SizeX, g.SizeY))
	}
	return i*g.SizeY + j
}

// Index returns the cell containing the world position (x, y).
func (g *Grid) Index(x, y float64) (i, j int, ok bool) {
	l := g.Length()
	fi := math.Floor((g.Position.X + l.X/2 - x) / g.Resolution)
	fj := math.Floor((g.Position.Y + l.Y/2 - y) / g.Resolution)
	if math.IsNaN(fi) || math.IsNaN(fj) {
		return 0, 0, false
	}
	if fi < 0 || fi >= float64(g.SizeX) || fj < 0 || fj >= float64(g.SizeY) {
		return 0, 0, false
	}
	return int(fi), int(fj), true
}

// IsInside reports whether (x, y) falls on the grid.
func (g *Grid) IsInside(x, y float64) bool {
	_, _, ok := g.Index(x, y)
	return ok
}

// CellPosition returns the world position of the centre of cell (i, j).
func (g *Grid) CellPosition(i, j int) r2.Vec {
	l := g.Length()
	return r2.Vec{
		X: g.Position.X + l.X/2 - (float64(i)+0.5)*g.Resolution,
		Y: g.Position.Y + l.Y/2 - (float64(j)+0.5)*g.Resolution,
	}
}

// AtPosition returns the value of the cell containing (x, y). ok is false
// outside the grid; the value may be NaN for unknown cells.
func (g *Grid) AtPosition(x, y float64) (v float64, ok bool) {
	i, j, ok := g.Index(x, y)
	if !ok {
		return math.NaN(), false
	}
	return g.At(i, j), true
}

// HeightAt implements edge.HeightQuery. Positions outside the grid and
// unknown cells return InvalidHeight.
func (g *Grid) HeightAt(x, y float64) float64 {
	v, ok := g.AtPosition(x, y)
	if !ok || math.IsNaN(v) {
		return InvalidHeight
	}
	return v
}

// MinMax returns the range of the finite cells. ok is false when the grid
// holds no finite value.
func (g *Grid) MinMax() (lo, hi float64, ok bool) {
	finite := make([]float64, 0, len(g.data))
	for _, v := range g.data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 0, false
	}
	return floats.Min(finite), floats.Max(finite), true
}

// Data returns the row-major cell slice backing the grid.
func (g *Grid) Data() []float64 {
	return g.data
}
