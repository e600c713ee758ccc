package config

import (
	"os"
	"path/filepath"
	"testing"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "frame_name": "map",
  "min_length": 0.4,
  "max_length": 2.0,
  "min_height": 0.05,
  "max_height": 0.5,
  "median_blur_ksize": 7
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetFrameName() != "map" {
		t.Errorf("GetFrameName() = %q, want map", cfg.GetFrameName())
	}
	if cfg.GetMinLength() != 0.4 {
		t.Errorf("GetMinLength() = %f, want 0.4", cfg.GetMinLength())
	}
	if cfg.GetMaxLength() != 2.0 {
		t.Errorf("GetMaxLength() = %f, want 2.0", cfg.GetMaxLength())
	}
	if cfg.GetMinHeight() != 0.05 {
		t.Errorf("GetMinHeight() = %f, want 0.05", cfg.GetMinHeight())
	}
	if cfg.GetMaxHeight() != 0.5 {
		t.Errorf("GetMaxHeight() = %f, want 0.5", cfg.GetMaxHeight())
	}
	if cfg.GetMedianBlurKSize() != 7 {
		t.Errorf("GetMedianBlurKSize() = %d, want 7", cfg.GetMedianBlurKSize())
	}
	// Omitted keys keep their defaults.
	if cfg.GetCannyThreshold1() != 50 {
		t.Errorf("GetCannyThreshold1() = %f, want 50", cfg.GetCannyThreshold1())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "min_length": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name:    "negative min length",
			cfg:     &TuningConfig{MinLength: ptrFloat64(-0.1)},
			wantErr: true,
		},
		{
			name:    "max length below min length",
			cfg:     &TuningConfig{MinLength: ptrFloat64(1.0), MaxLength: ptrFloat64(0.8)},
			wantErr: true,
		},
		{
			name:    "max height equal to min height",
			cfg:     &TuningConfig{MinHeight: ptrFloat64(0.3), MaxHeight: ptrFloat64(0.3)},
			wantErr: true,
		},
		{
			name:    "negative min height",
			cfg:     &TuningConfig{MinHeight: ptrFloat64(-1)},
			wantErr: true,
		},
		{
			name:    "even median kernel",
			cfg:     &TuningConfig{MedianBlurKSize: ptrInt(10)},
			wantErr: true,
		},
		{
			name:    "unsupported canny aperture",
			cfg:     &TuningConfig{CannyAperture: ptrInt(4)},
			wantErr: true,
		},
		{
			name:    "zero hough rho",
			cfg:     &TuningConfig{HoughRho: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "negative hough gap",
			cfg:     &TuningConfig{HoughMaxLineGap: ptrFloat64(-2)},
			wantErr: true,
		},
		{
			name:    "custom frame name",
			cfg:     &TuningConfig{FrameName: ptrString("map")},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetMaxLength() != 1.5 {
		t.Errorf("Expected 1.5, got %f", cfg.GetMaxLength())
	}
	if cfg.GetMaxHeight() != 10.0 {
		t.Errorf("Expected 10.0, got %f", cfg.GetMaxHeight())
	}
	if cfg.GetFrameName() != "odom" {
		t.Errorf("Expected odom, got %q", cfg.GetFrameName())
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetMinLength() != 0.5 {
		t.Errorf("Expected 0.5, got %f", cfg.GetMinLength())
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestLoadTuningConfigRejectsInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad_bounds.json")

	if err := os.WriteFile(configPath, []byte(`{"min_height": 2.0, "max_height": 1.0}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	if _, err := LoadTuningConfig(configPath); err == nil {
		t.Error("Expected validation error for inverted height bounds, got nil")
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetFrameName(); got != "odom" {
		t.Errorf("GetFrameName() = %q, want odom", got)
	}
	if got := cfg.GetMinLength(); got != 0.5 {
		t.Errorf("GetMinLength() = %f, want 0.5", got)
	}
	if got := cfg.GetMaxLength(); got != 1.5 {
		t.Errorf("GetMaxLength() = %f, want 1.5", got)
	}
	if got := cfg.GetMinHeight(); got != 0.1 {
		t.Errorf("GetMinHeight() = %f, want 0.1", got)
	}
	if got := cfg.GetMaxHeight(); got != 10.0 {
		t.Errorf("GetMaxHeight() = %f, want 10.0", got)
	}
	if got := cfg.GetMedianBlurKSize(); got != 11 {
		t.Errorf("GetMedianBlurKSize() = %d, want 11", got)
	}
	if got := cfg.GetCannyThreshold2(); got != 20 {
		t.Errorf("GetCannyThreshold2() = %f, want 20", got)
	}
	if got := cfg.GetCannyAperture(); got != 3 {
		t.Errorf("GetCannyAperture() = %d, want 3", got)
	}
	if got := cfg.GetHoughRho(); got != 1 {
		t.Errorf("GetHoughRho() = %f, want 1", got)
	}
	if got := cfg.GetHoughThetaDeg(); got != 1 {
		t.Errorf("GetHoughThetaDeg() = %f, want 1", got)
	}
	if got := cfg.GetHoughThreshold(); got != 5 {
		t.Errorf("GetHoughThreshold() = %d, want 5", got)
	}
	if got := cfg.GetHoughMinLineLength(); got != 5 {
		t.Errorf("GetHoughMinLineLength() = %f, want 5", got)
	}
	if got := cfg.GetHoughMaxLineGap(); got != 5 {
		t.Errorf("GetHoughMaxLineGap() = %f, want 5", got)
	}
	if got := cfg.GetDebugImageDir(); got != "" {
		t.Errorf("GetDebugImageDir() = %q, want empty", got)
	}
}
