// Package config loads the tracker's tunable parameters from a JSON file,
// following the same pointer-field/partial-override convention as other
// tuning configs in this codebase: any field omitted from the file falls
// back to its documented default via the matching Get* accessor.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ridgeline-vision/bytetrack/internal/bytetrack"
)

// DefaultConfigPath is the canonical tuning defaults file shipped with this
// repository.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the on-disk schema for the tracker's tunable parameters.
// Fields are pointers so the zero value (all nil) means "unset" rather than
// "set to the zero value".
type TuningConfig struct {
	TrackThresh            *float64 `json:"track_thresh,omitempty"`
	HighThresh             *float64 `json:"high_thresh,omitempty"`
	MatchThresh            *float64 `json:"match_thresh,omitempty"`
	SecondStageMatchThresh *float64 `json:"second_stage_match_thresh,omitempty"`
	FrameRate              *int     `json:"frame_rate,omitempty"`
	TrackBuffer            *int     `json:"track_buffer,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with every field unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The path must
// have a .json extension and the file must be under 1MB, guarding against
// accidentally pointing this at the wrong file.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
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

// MustLoadDefaultConfig loads DefaultConfigPath, searching upward from the
// current directory so it resolves from nested package test directories.
// Panics on failure; intended for tests and startup paths that have
// already validated the file exists.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that any set fields are within sane bounds.
func (c *TuningConfig) Validate() error {
	if c.TrackThresh != nil && (*c.TrackThresh < 0 || *c.TrackThresh > 1) {
		return fmt.Errorf("track_thresh must be between 0 and 1, got %f", *c.TrackThresh)
	}
	if c.HighThresh != nil && (*c.HighThresh < 0 || *c.HighThresh > 1) {
		return fmt.Errorf("high_thresh must be between 0 and 1, got %f", *c.HighThresh)
	}
	if c.MatchThresh != nil && (*c.MatchThresh < 0 || *c.MatchThresh > 1) {
		return fmt.Errorf("match_thresh must be between 0 and 1, got %f", *c.MatchThresh)
	}
	if c.SecondStageMatchThresh != nil && (*c.SecondStageMatchThresh < 0 || *c.SecondStageMatchThresh > 1) {
		return fmt.Errorf("second_stage_match_thresh must be between 0 and 1, got %f", *c.SecondStageMatchThresh)
	}
	if c.FrameRate != nil && *c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %d", *c.FrameRate)
	}
	if c.TrackBuffer != nil && *c.TrackBuffer <= 0 {
		return fmt.Errorf("track_buffer must be positive, got %d", *c.TrackBuffer)
	}
	return nil
}

// GetTrackThresh returns track_thresh or its default.
func (c *TuningConfig) GetTrackThresh() float64 {
	if c.TrackThresh == nil {
		return 0.5
	}
	return *c.TrackThresh
}

// GetHighThresh returns high_thresh or the default of track_thresh+0.1.
func (c *TuningConfig) GetHighThresh() float64 {
	if c.HighThresh == nil {
		return c.GetTrackThresh() + 0.1
	}
	return *c.HighThresh
}

// GetMatchThresh returns match_thresh or its default.
func (c *TuningConfig) GetMatchThresh() float64 {
	if c.MatchThresh == nil {
		return 0.8
	}
	return *c.MatchThresh
}

// GetSecondStageMatchThresh returns second_stage_match_thresh or its
// default. This is the tighter IoU-distance cutoff applied to the
// low-confidence rescue round, exposed separately from GetMatchThresh so
// operators can tune the two rounds independently without a rebuild.
func (c *TuningConfig) GetSecondStageMatchThresh() float64 {
	if c.SecondStageMatchThresh == nil {
		return 0.5
	}
	return *c.SecondStageMatchThresh
}

// GetFrameRate returns frame_rate or its default.
func (c *TuningConfig) GetFrameRate() int {
	if c.FrameRate == nil {
		return 30
	}
	return *c.FrameRate
}

// GetTrackBuffer returns track_buffer or its default.
func (c *TuningConfig) GetTrackBuffer() int {
	if c.TrackBuffer == nil {
		return 30
	}
	return *c.TrackBuffer
}

// ToConfig builds a bytetrack.Config from the loaded tuning values.
func (c *TuningConfig) ToConfig() bytetrack.Config {
	return bytetrack.Config{
		TrackThresh:            c.GetTrackThresh(),
		HighThresh:             c.GetHighThresh(),
		FirstStageMatchThresh:  c.GetMatchThresh(),
		SecondStageMatchThresh: c.GetSecondStageMatchThresh(),
		FrameRate:              c.GetFrameRate(),
		TrackBuffer:            c.GetTrackBuffer(),
	}
}
