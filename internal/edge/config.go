package edge

import (
	"fmt"
	"math"

	"github.com/banshee-data/edgetrack/internal/config"
)

// TrackerConfig holds the acceptance bounds for tracked edges.
type TrackerConfig struct {
	FrameName string  // World frame label; descriptive only
	MinLength float64 // Exclusive lower bound on edge length (metres); also the along-edge merge tolerance
	MaxLength float64 // Exclusive upper bound on edge length (metres)
	MinHeight float64 // Exclusive lower bound on |step height| (metres)
	MaxHeight float64 // Exclusive upper bound on |step height| (metres)
}

// DefaultTrackerConfig returns the built-in tracker defaults without reading
// any file.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfigFromTuning(config.EmptyTuningConfig())
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		FrameName: cfg.GetFrameName(),
		MinLength: cfg.GetMinLength(),
		MaxLength: cfg.GetMaxLength(),
		MinHeight: cfg.GetMinHeight(),
		MaxHeight: cfg.GetMaxHeight(),
	}
}

// Validate checks if the configuration is valid.
func (c TrackerConfig) Validate() error {
	if c.MinLength < 0 {
		return fmt.Errorf("MinLength must be non-negative, got %f", c.MinLength)
	}
	if c.MaxLength <= c.MinLength {
		return fmt.Errorf("MaxLength (%f) must exceed MinLength (%f)", c.MaxLength, c.MinLength)
	}
	if c.MinHeight < 0 {
		return fmt.Errorf("MinHeight must be non-negative, got %f", c.MinHeight)
	}
	if c.MaxHeight <= c.MinHeight {
		return fmt.Errorf("MaxHeight (%f) must exceed MinHeight (%f)", c.MaxHeight, c.MinHeight)
	}
	return nil
}

// lengthInBounds reports whether minLength < length < maxLength.
func (c TrackerConfig) lengthInBounds(length float64) bool {
	return length > c.MinLength && length < c.MaxLength
}

// heightInBounds reports whether minHeight < |height| < maxHeight.
func (c TrackerConfig) heightInBounds(height float64) bool {
	h := math.Abs(height)
	return h > c.MinHeight && h < c.MaxHeight
}
