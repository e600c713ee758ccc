package monitor

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/edgetrack/internal/edge"
	"github.com/banshee-data/edgetrack/internal/monitoring"
)

// headingLength is the length (metres) of the pose heading marker.
const headingLength = 0.3

// EdgePlotter writes a top-down PNG of the tracked edges after every cycle.
// It implements edge.CycleHook.
type EdgePlotter struct {
	mu        sync.Mutex
	outputDir string
	written   int
	lastErr   error
}

// NewEdgePlotter creates outputDir if needed and returns a plotter writing
// into it.
func NewEdgePlotter(outputDir string) (*EdgePlotter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &EdgePlotter{outputDir: outputDir}, nil
}

// OnCycle plots snap. Failures are logged and kept for Err.
func (ep *EdgePlotter) OnCycle(snap edge.CycleSnapshot) {
	if _, err := ep.PlotCycle(snap); err != nil {
		monitoring.Logf("edge plotter: %v", err)
	}
}

// PlotCycle renders snap to cycle_NNNNN.png and returns the file path.
func (ep *EdgePlotter) PlotCycle(snap edge.CycleSnapshot) (string, error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	path, err := ep.plotCycle(snap)
	if err != nil {
		ep.lastErr = err
		return "", err
	}
	ep.written++
	return path, nil
}

func (ep *EdgePlotter) plotCycle(snap edge.CycleSnapshot) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Cycle %d - %d edges", snap.Result.Cycle, len(snap.Edges))
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	for i, e := range snap.Edges {
		line, err := plotter.NewLine(plotter.XYs{
			{X: e.Point1.X, Y: e.Point1.Y},
			{X: e.Point2.X, Y: e.Point2.Y},
		})
		if err != nil {
			return "", err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		label := fmt.Sprintf("#%d h=%.2f", i, e.Height)
		if i == snap.Result.NearestIndex {
			line.Width = vg.Points(3)
			label += " (nearest)"
		}
		p.Add(line)
		p.Legend.Add(label, line)
	}

	robot, err := plotter.NewScatter(plotter.XYs{{X: snap.Pose.X, Y: snap.Pose.Y}})
	if err != nil {
		return "", err
	}
	robot.GlyphStyle.Color = color.Black
	robot.GlyphStyle.Radius = vg.Points(4)
	p.Add(robot)

	heading, err := plotter.NewLine(plotter.XYs{
		{X: snap.Pose.X, Y: snap.Pose.Y},
		{X: snap.Pose.X + headingLength*math.Cos(snap.Pose.Yaw), Y: snap.Pose.Y + headingLength*math.Sin(snap.Pose.Yaw)},
	})
	if err != nil {
		return "", err
	}
	heading.Color = color.Black
	heading.Width = vg.Points(1.5)
	p.Add(heading)
	p.Legend.Add("robot", robot)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(ep.outputDir, fmt.Sprintf("cycle_%05d.png", snap.Result.Cycle))
	if err := p.Save(6*vg.Inch, 6*vg.Inch, file); err != nil {
		return "", fmt.Errorf("save cycle plot: %w", err)
	}
	return file, nil
}

// Written returns the number of plots saved.
func (ep *EdgePlotter) Written() int {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.written
}

// Err returns the most recent plotting error, if any.
func (ep *EdgePlotter) Err() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.lastErr
}

// OutputDir returns the directory plots are written to.
func (ep *EdgePlotter) OutputDir() string {
	return ep.outputDir
}
