package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for edge tracking parameters.
// Every field is optional; the Get* methods supply defaults for omitted keys
// so partial configs are safe.
type TuningConfig struct {
	// Tracker params
	FrameName *string  `json:"frame_name,omitempty"`
	MinLength *float64 `json:"min_length,omitempty"`
	MaxLength *float64 `json:"max_length,omitempty"`
	MinHeight *float64 `json:"min_height,omitempty"`
	MaxHeight *float64 `json:"max_height,omitempty"`

	// Line extraction params
	MedianBlurKSize    *int     `json:"median_blur_ksize,omitempty"`
	CannyThreshold1    *float64 `json:"canny_threshold1,omitempty"`
	CannyThreshold2    *float64 `json:"canny_threshold2,omitempty"`
	CannyAperture      *int     `json:"canny_aperture,omitempty"`
	HoughRho           *float64 `json:"hough_rho,omitempty"`
	HoughThetaDeg      *float64 `json:"hough_theta_deg,omitempty"`
	HoughThreshold     *int     `json:"hough_threshold,omitempty"`
	HoughMinLineLength *float64 `json:"hough_min_line_length,omitempty"`
	HoughMaxLineGap    *float64 `json:"hough_max_line_gap,omitempty"`

	// Diagnostics
	DebugImageDir *string `json:"debug_image_dir,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MinLength != nil && *c.MinLength < 0 {
		return fmt.Errorf("min_length must be non-negative, got %f", *c.MinLength)
	}
	if c.MinHeight != nil && *c.MinHeight < 0 {
		return fmt.Errorf("min_height must be non-negative, got %f", *c.MinHeight)
	}
	if c.GetMaxLength() <= c.GetMinLength() {
		return fmt.Errorf("max_length (%f) must be greater than min_length (%f)", c.GetMaxLength(), c.GetMinLength())
	}
	if c.GetMaxHeight() <= c.GetMinHeight() {
		return fmt.Errorf("max_height (%f) must be greater than min_height (%f)", c.GetMaxHeight(), c.GetMinHeight())
	}

	// OpenCV requires an odd median aperture greater than one.
	if k := c.GetMedianBlurKSize(); k < 3 || k%2 == 0 {
		return fmt.Errorf("median_blur_ksize must be odd and >= 3, got %d", k)
	}
	if a := c.GetCannyAperture(); a != 3 && a != 5 && a != 7 {
		return fmt.Errorf("canny_aperture must be 3, 5 or 7, got %d", a)
	}
	if c.GetHoughRho() <= 0 {
		return fmt.Errorf("hough_rho must be positive, got %f", c.GetHoughRho())
	}
	if c.GetHoughThetaDeg() <= 0 {
		return fmt.Errorf("hough_theta_deg must be positive, got %f", c.GetHoughThetaDeg())
	}
	if c.GetHoughThreshold() <= 0 {
		return fmt.Errorf("hough_threshold must be positive, got %d", c.GetHoughThreshold())
	}
	if c.HoughMinLineLength != nil && *c.HoughMinLineLength < 0 {
		return fmt.Errorf("hough_min_line_length must be non-negative, got %f", *c.HoughMinLineLength)
	}
	if c.HoughMaxLineGap != nil && *c.HoughMaxLineGap < 0 {
		return fmt.Errorf("hough_max_line_gap must be non-negative, got %f", *c.HoughMaxLineGap)
	}

	return nil
}

// GetFrameName returns the frame_name value or the default.
func (c *TuningConfig) GetFrameName() string {
	if c.FrameName == nil || *c.FrameName == "" {
		return "odom"
	}
	return *c.FrameName
}

// GetMinLength returns the min_length value or the default.
func (c *TuningConfig) GetMinLength() float64 {
	if c.MinLength == nil {
		return 0.5
	}
	return *c.MinLength
}

// GetMaxLength returns the max_length value or the default.
func (c *TuningConfig) GetMaxLength() float64 {
	if c.MaxLength == nil {
		return 1.5
	}
	return *c.MaxLength
}

// GetMinHeight returns the min_height value or the default.
func (c *TuningConfig) GetMinHeight() float64 {
	if c.MinHeight == nil {
		return 0.1
	}
	return *c.MinHeight
}

// GetMaxHeight returns the max_height value or the default.
func (c *TuningConfig) GetMaxHeight() float64 {
	if c.MaxHeight == nil {
		return 10.0
	}
	return *c.MaxHeight
}

// GetMedianBlurKSize returns the median_blur_ksize value or the default.
func (c *TuningConfig) GetMedianBlurKSize() int {
	if c.MedianBlurKSize == nil {
		return 11
	}
	return *c.MedianBlurKSize
}

// GetCannyThreshold1 returns the canny_threshold1 value or the default.
func (c *TuningConfig) GetCannyThreshold1() float64 {
	if c.CannyThreshold1 == nil {
		return 50
	}
	return *c.CannyThreshold1
}

// GetCannyThreshold2 returns the canny_threshold2 value or the default.
func (c *TuningConfig) GetCannyThreshold2() float64 {
	if c.CannyThreshold2 == nil {
		return 20
	}
	return *c.CannyThreshold2
}

// GetCannyAperture returns the canny_aperture value or the default.
func (c *TuningConfig) GetCannyAperture() int {
	if c.CannyAperture == nil {
		return 3
	}
	return *c.CannyAperture
}

// GetHoughRho returns the hough_rho value (pixels) or the default.
func (c *TuningConfig) GetHoughRho() float64 {
	if c.HoughRho == nil {
		return 1
	}
	return *c.HoughRho
}

// GetHoughThetaDeg returns the hough_theta_deg value or the default.
func (c *TuningConfig) GetHoughThetaDeg() float64 {
	if c.HoughThetaDeg == nil {
		return 1
	}
	return *c.HoughThetaDeg
}

// GetHoughThreshold returns the hough_threshold value or the default.
func (c *TuningConfig) GetHoughThreshold() int {
	if c.HoughThreshold == nil {
		return 5
	}
	return *c.HoughThreshold
}

// GetHoughMinLineLength returns the hough_min_line_length value (pixels) or the default.
func (c *TuningConfig) GetHoughMinLineLength() float64 {
	if c.HoughMinLineLength == nil {
		return 5
	}
	return *c.HoughMinLineLength
}

// GetHoughMaxLineGap returns the hough_max_line_gap value (pixels) or the default.
func (c *TuningConfig) GetHoughMaxLineGap() float64 {
	if c.HoughMaxLineGap == nil {
		return 5
	}
	return *c.HoughMaxLineGap
}

// GetDebugImageDir returns the debug_image_dir value. Empty disables image dumps.
func (c *TuningConfig) GetDebugImageDir() string {
	if c.DebugImageDir == nil {
		return ""
	}
	return *c.DebugImageDir
}
