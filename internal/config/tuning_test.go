package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadTuningConfig_RejectsNonJSONExtension(t *testing.T) {
	_, err := LoadTuningConfig("tuning.yaml")
	if err == nil {
		t.Fatal("expected an error for a non-.json path")
	}
}

func TestEmptyTuningConfig_DefaultsMatchSpec(t *testing.T) {
	cfg := EmptyTuningConfig()
	if got := cfg.GetTrackThresh(); got != 0.5 {
		t.Errorf("expected default track_thresh 0.5, got %v", got)
	}
	if got := cfg.GetHighThresh(); got != 0.6 {
		t.Errorf("expected default high_thresh 0.6 (track_thresh+0.1), got %v", got)
	}
	if got := cfg.GetMatchThresh(); got != 0.8 {
		t.Errorf("expected default match_thresh 0.8, got %v", got)
	}
	if got := cfg.GetFrameRate(); got != 30 {
		t.Errorf("expected default frame_rate 30, got %v", got)
	}
	if got := cfg.GetTrackBuffer(); got != 30 {
		t.Errorf("expected default track_buffer 30, got %v", got)
	}
}

func TestGetHighThresh_TracksOverriddenTrackThresh(t *testing.T) {
	cfg := EmptyTuningConfig()
	trackThresh := 0.4
	cfg.TrackThresh = &trackThresh
	if got := cfg.GetHighThresh(); got != 0.5 {
		t.Errorf("expected high_thresh to derive from overridden track_thresh, got %v", got)
	}
}

func TestValidate_RejectsOutOfRangeThreshold(t *testing.T) {
	cfg := EmptyTuningConfig()
	bad := 1.5
	cfg.TrackThresh = &bad
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for track_thresh > 1")
	}
}

func TestToConfig_DefaultsMatchBytetrackDefaultConfig(t *testing.T) {
	cfg := EmptyTuningConfig()
	btCfg := cfg.ToConfig()
	if btCfg.TrackThresh != 0.5 || btCfg.HighThresh != 0.6 ||
		btCfg.FirstStageMatchThresh != 0.8 || btCfg.SecondStageMatchThresh != 0.5 {
		t.Errorf("unexpected defaults: %+v", btCfg)
	}
}

func TestLoadTuningConfig_RejectsOversizeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.json")
	padding := strings.Repeat(" ", 2*1024*1024)
	content := `{"track_thresh": 0.5` + padding + `}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write oversize fixture: %v", err)
	}

	_, err := LoadTuningConfig(path)
	if err == nil {
		t.Fatal("expected an error for a file over the 1MB limit")
	}
}
