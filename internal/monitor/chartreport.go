package monitor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/edgetrack/internal/edge"
)

// reportPoint is one cycle's entry in a ChartReport.
type reportPoint struct {
	cycle     uint64
	edgeCount int
	hasEdge   bool
	height    float64
	distance  float64
	added     int
	merged    int
	dropped   int
}

// ChartReport accumulates cycle results and renders them as an HTML page of
// go-echarts charts. It implements edge.CycleHook.
type ChartReport struct {
	mu     sync.Mutex
	title  string
	points []reportPoint
}

// NewChartReport returns an empty report.
func NewChartReport(title string) *ChartReport {
	return &ChartReport{title: title}
}

// OnCycle adds the snapshot's result.
func (r *ChartReport) OnCycle(snap edge.CycleSnapshot) {
	r.Add(snap.Result)
}

// Add appends one cycle result.
func (r *ChartReport) Add(res edge.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, reportPoint{
		cycle:     res.Cycle,
		edgeCount: res.EdgeCount,
		hasEdge:   res.NearestIndex >= 0,
		height:    res.NearestHeight,
		distance:  res.NearestDistance,
		added:     res.Added,
		merged:    res.Merged,
		dropped:   res.Dropped,
	})
}

// Len returns the number of cycles in the report.
func (r *ChartReport) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.points)
}

// Render writes the HTML report to w.
func (r *ChartReport) Render(w io.Writer) error {
	r.mu.Lock()
	points := make([]reportPoint, len(r.points))
	copy(points, r.points)
	r.mu.Unlock()

	x := make([]string, len(points))
	heights := make([]opts.LineData, len(points))
	distances := make([]opts.LineData, len(points))
	counts := make([]opts.BarData, len(points))
	added := make([]opts.BarData, len(points))
	merged := make([]opts.BarData, len(points))
	dropped := make([]opts.BarData, len(points))
	for i, p := range points {
		x[i] = strconv.FormatUint(p.cycle, 10)
		if p.hasEdge {
			heights[i] = opts.LineData{Value: p.height}
			distances[i] = opts.LineData{Value: p.distance}
		} else {
			// Gaps where nothing was tracked.
			heights[i] = opts.LineData{Value: "-"}
			distances[i] = opts.LineData{Value: "-"}
		}
		counts[i] = opts.BarData{Value: p.edgeCount}
		added[i] = opts.BarData{Value: p.added}
		merged[i] = opts.BarData{Value: p.merged}
		dropped[i] = opts.BarData{Value: p.dropped}
	}

	nearest := charts.NewLine()
	nearest.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: r.title, Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Nearest edge", Subtitle: fmt.Sprintf("%s cycles=%d", r.title, len(points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Cycle", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Metres", NameLocation: "middle", NameGap: 35}),
	)
	nearest.SetXAxis(x).
		AddSeries("height", heights).
		AddSeries("distance", distances)

	activity := charts.NewBar()
	activity.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tracked edges"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Cycle", NameLocation: "middle", NameGap: 25}),
	)
	activity.SetXAxis(x).
		AddSeries("edges", counts).
		AddSeries("added", added).
		AddSeries("merged", merged).
		AddSeries("dropped", dropped)

	page := components.NewPage()
	page.AddCharts(nearest, activity)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile renders the report to path.
func (r *ChartReport) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := r.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
