package lines

import (
	"fmt"
	"math"

	"github.com/banshee-data/edgetrack/internal/config"
)

// Config holds the image-processing parameters of the extractor.
type Config struct {
	MedianBlurKSize int // odd aperture of the median filter

	CannyThreshold1 float64
	CannyThreshold2 float64
	CannyAperture   int // Sobel aperture: 3, 5 or 7

	HoughRho           float64 // distance resolution in pixels
	HoughTheta         float64 // angle resolution in radians
	HoughThreshold     int     // minimum accumulator votes
	HoughMinLineLength float64 // pixels
	HoughMaxLineGap    float64 // pixels

	// DumpDir, when set, receives image.png, edge_edges.png and
	// edge_filtered.png on every Extract call.
	DumpDir string
}

// DefaultConfig returns the built-in extractor defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MedianBlurKSize:    cfg.GetMedianBlurKSize(),
		CannyThreshold1:    cfg.GetCannyThreshold1(),
		CannyThreshold2:    cfg.GetCannyThreshold2(),
		CannyAperture:      cfg.GetCannyAperture(),
		HoughRho:           cfg.GetHoughRho(),
		HoughTheta:         cfg.GetHoughThetaDeg() * math.Pi / 180.0,
		HoughThreshold:     cfg.GetHoughThreshold(),
		HoughMinLineLength: cfg.GetHoughMinLineLength(),
		HoughMaxLineGap:    cfg.GetHoughMaxLineGap(),
		DumpDir:            cfg.GetDebugImageDir(),
	}
}

// Validate checks the parameters against what OpenCV accepts.
func (c Config) Validate() error {
	if c.MedianBlurKSize < 3 || c.MedianBlurKSize%2 == 0 {
		return fmt.Errorf("MedianBlurKSize must be odd and >= 3, got %d", c.MedianBlurKSize)
	}
	if c.CannyAperture != 3 && c.CannyAperture != 5 && c.CannyAperture != 7 {
		return fmt.Errorf("CannyAperture must be 3, 5 or 7, got %d", c.CannyAperture)
	}
	if c.HoughRho <= 0 || c.HoughTheta <= 0 {
		return fmt.Errorf("Hough resolution must be positive, got rho=%f theta=%f", c.HoughRho, c.HoughTheta)
	}
	if c.HoughThreshold <= 0 {
		return fmt.Errorf("HoughThreshold must be positive, got %d", c.HoughThreshold)
	}
	if c.HoughMinLineLength < 0 || c.HoughMaxLineGap < 0 {
		return fmt.Errorf("Hough segment limits must be non-negative, got length=%f gap=%f",
			c.HoughMinLineLength, c.HoughMaxLineGap)
	}
	return nil
}
