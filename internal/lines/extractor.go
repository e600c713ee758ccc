// Package lines extracts straight step candidates from an elevation grid
// with OpenCV: the grid is rendered to an 8-bit image, median filtered, run
// through Canny and then a probabilistic Hough transform.
package lines

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/banshee-data/edgetrack/internal/edge"
	"github.com/banshee-data/edgetrack/internal/elevation"
	"github.com/banshee-data/edgetrack/internal/monitoring"
)

// Debug image file names written to Config.DumpDir.
const (
	ImageFile    = "image.png"
	EdgesFile    = "edge_edges.png"
	FilteredFile = "edge_filtered.png"
)

// Extractor turns elevation grids into pixel-space segments.
type Extractor struct {
	cfg Config
}

// NewExtractor validates cfg and creates the debug directory if one is set.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid line extractor config: %w", err)
	}
	if cfg.DumpDir != "" {
		if err := os.MkdirAll(cfg.DumpDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create debug image dir: %w", err)
		}
	}
	return &Extractor{cfg: cfg}, nil
}

// Config returns the extractor's parameters.
func (x *Extractor) Config() Config {
	return x.cfg
}

// Extract returns the Hough segments of g. Segment X is the image column
// (grid index j) and Y the image row (grid index i).
func (x *Extractor) Extract(g *elevation.Grid) ([]edge.Segment, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil grid", elevation.ErrInvalidMap)
	}

	img, err := ToImage(g)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	filtered := gocv.NewMat()
	defer filtered.Close()
	gocv.MedianBlur(img, &filtered, x.cfg.MedianBlurKSize)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.CannyWithParams(filtered, &edges,
		float32(x.cfg.CannyThreshold1), float32(x.cfg.CannyThreshold2),
		x.cfg.CannyAperture, false)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(edges, &lines,
		float32(x.cfg.HoughRho), float32(x.cfg.HoughTheta), x.cfg.HoughThreshold,
		float32(x.cfg.HoughMinLineLength), float32(x.cfg.HoughMaxLineGap))

	segments := make([]edge.Segment, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		if len(v) < 4 {
			continue
		}
		segments = append(segments, edge.Segment{
			X1: int(v[0]), Y1: int(v[1]),
			X2: int(v[2]), Y2: int(v[3]),
		})
	}

	if x.cfg.DumpDir != "" {
		x.dump(img, edges, segments)
	}
	return segments, nil
}

// dump writes the debug images. Failures are logged, not returned.
func (x *Extractor) dump(img, edges gocv.Mat, segments []edge.Segment) {
	write := func(name string, m gocv.Mat) {
		path := filepath.Join(x.cfg.DumpDir, name)
		if !gocv.IMWrite(path, m) {
			monitoring.Logf("lines: failed to write %s", path)
		}
	}
	write(ImageFile, img)
	write(EdgesFile, edges)

	overlay := gocv.NewMat()
	defer overlay.Close()
	gocv.CvtColor(img, &overlay, gocv.ColorGrayToBGR)
	red := color.RGBA{R: 255, A: 255}
	for _, s := range segments {
		gocv.Line(&overlay, image.Pt(s.X1, s.Y1), image.Pt(s.X2, s.Y2), red, 1)
	}
	write(FilteredFile, overlay)
}

// ToImage renders g as an 8-bit single channel image with one pixel per cell
// (row i, column j). Finite heights are scaled linearly onto 0..255; unknown
// cells are 0. The caller must Close the returned Mat.
func ToImage(g *elevation.Grid) (gocv.Mat, error) {
	pixels := Intensities(g)
	img := gocv.NewMatWithSize(g.SizeX, g.SizeY, gocv.MatTypeCV8UC1)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("failed to allocate %dx%d image", g.SizeX, g.SizeY)
	}
	for i := 0; i < g.SizeX; i++ {
		for j := 0; j < g.SizeY; j++ {
			img.SetUCharAt(i, j, pixels[i*g.SizeY+j])
		}
	}
	return img, nil
}

// Intensities returns the row-major 8-bit rendering used by ToImage.
func Intensities(g *elevation.Grid) []uint8 {
	out := make([]uint8, g.SizeX*g.SizeY)
	lo, hi, ok := g.MinMax()
	if !ok {
		return out
	}
	span := hi - lo
	data := g.Data()
	for k, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) || span == 0 {
			continue
		}
		out[k] = uint8(math.Round((v - lo) / span * 255))
	}
	return out
}
