package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gymsight/repcount/internal/workout"
)

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetExercise(); got != workout.ExercisePushup {
		t.Errorf("GetExercise() = %q, want pushup", got)
	}
	if got := cfg.GetJoints(); got != [3]int{6, 8, 10} {
		t.Errorf("GetJoints() = %v, want [6 8 10]", got)
	}
	if got := cfg.GetUpAngle(); got != 145.0 {
		t.Errorf("GetUpAngle() = %f, want 145", got)
	}
	if got := cfg.GetDownAngle(); got != 90.0 {
		t.Errorf("GetDownAngle() = %f, want 90", got)
	}
	if got := cfg.GetSlotOrder(); got != workout.OrderReversed {
		t.Errorf("GetSlotOrder() = %v, want reversed", got)
	}
	if got := cfg.GetCameraID(); got != "cam0" {
		t.Errorf("GetCameraID() = %q, want cam0", got)
	}
	if got := cfg.GetShowPreview(); got != true {
		t.Errorf("GetShowPreview() = %v, want true", got)
	}
	if got := cfg.GetLineThickness(); got != 2 {
		t.Errorf("GetLineThickness() = %d, want 2", got)
	}
	if got := cfg.GetHUDRefresh(); got != 250*time.Millisecond {
		t.Errorf("GetHUDRefresh() = %v, want 250ms", got)
	}
	if got := cfg.GetSummaryInterval(); got != 30*time.Second {
		t.Errorf("GetSummaryInterval() = %v, want 30s", got)
	}
	if got := cfg.GetPoselogDir(); got != "poselogs" {
		t.Errorf("GetPoselogDir() = %q, want poselogs", got)
	}
}

func TestGetJointsPerExercise(t *testing.T) {
	cases := map[string][3]int{
		"pushup":    {6, 8, 10},
		"pullup":    {6, 8, 10},
		"squat":     {12, 14, 16},
		"abworkout": {6, 12, 14},
		"burpee":    {6, 8, 10}, // unknown exercises fall back to the arm triple
	}
	for exercise, want := range cases {
		cfg := &TuningConfig{Exercise: ptrString(exercise)}
		if got := cfg.GetJoints(); got != want {
			t.Errorf("GetJoints() for %q = %v, want %v", exercise, got, want)
		}
	}

	explicit := &TuningConfig{
		Exercise: ptrString("pushup"),
		Joints:   &[]int{5, 7, 9},
	}
	if got := explicit.GetJoints(); got != [3]int{5, 7, 9} {
		t.Errorf("explicit joints ignored, got %v", got)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "exercise": "squat",
  "joints": [11, 13, 15],
  "up_angle": 160,
  "down_angle": 80,
  "slot_order": "natural",
  "camera_id": "garage",
  "show_preview": false,
  "line_thickness": 4,
  "hud_refresh": "100ms",
  "summary_interval": "2m"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	if got := cfg.GetExercise(); got != workout.ExerciseSquat {
		t.Errorf("GetExercise() = %q, want squat", got)
	}
	if got := cfg.GetJoints(); got != [3]int{11, 13, 15} {
		t.Errorf("GetJoints() = %v, want [11 13 15]", got)
	}
	if got := cfg.GetUpAngle(); got != 160 {
		t.Errorf("GetUpAngle() = %f, want 160", got)
	}
	if got := cfg.GetDownAngle(); got != 80 {
		t.Errorf("GetDownAngle() = %f, want 80", got)
	}
	if got := cfg.GetSlotOrder(); got != workout.OrderNatural {
		t.Errorf("GetSlotOrder() = %v, want natural", got)
	}
	if got := cfg.GetCameraID(); got != "garage" {
		t.Errorf("GetCameraID() = %q, want garage", got)
	}
	if cfg.GetShowPreview() {
		t.Error("GetShowPreview() = true, want false")
	}
	if got := cfg.GetLineThickness(); got != 4 {
		t.Errorf("GetLineThickness() = %d, want 4", got)
	}
	if got := cfg.GetHUDRefresh(); got != 100*time.Millisecond {
		t.Errorf("GetHUDRefresh() = %v, want 100ms", got)
	}
	if got := cfg.GetSummaryInterval(); got != 2*time.Minute {
		t.Errorf("GetSummaryInterval() = %v, want 2m", got)
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	if err := os.WriteFile(configPath, []byte(`{"exercise": "pullup"}`), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	// Omitted fields answer with defaults.
	if got := cfg.GetExercise(); got != workout.ExercisePullup {
		t.Errorf("GetExercise() = %q, want pullup", got)
	}
	if got := cfg.GetUpAngle(); got != 145.0 {
		t.Errorf("GetUpAngle() = %f, want default 145", got)
	}
	if got := cfg.GetSlotOrder(); got != workout.OrderReversed {
		t.Errorf("GetSlotOrder() = %v, want default reversed", got)
	}
}

func TestLoadTuningConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadTuningConfig(filepath.Join(tmpDir, "absent.json")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadTuningConfig(path); err == nil {
			t.Error("expected error for non-json extension")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(tmpDir, "bad.json")
		if err := os.WriteFile(path, []byte(`{"exercise": `), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadTuningConfig(path); err == nil {
			t.Error("expected error for malformed JSON")
		}
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{"empty config valid", TuningConfig{}, false},
		{"wrong joint arity", TuningConfig{Joints: &[]int{6, 8}}, true},
		{"negative joint", TuningConfig{Joints: &[]int{-1, 8, 10}}, true},
		{"up angle too high", TuningConfig{UpAngle: ptrFloat64(200)}, true},
		{"up angle zero", TuningConfig{UpAngle: ptrFloat64(0)}, true},
		{"down angle negative", TuningConfig{DownAngle: ptrFloat64(-5)}, true},
		{"down at or above up", TuningConfig{UpAngle: ptrFloat64(100), DownAngle: ptrFloat64(100)}, true},
		{"sane thresholds", TuningConfig{UpAngle: ptrFloat64(150), DownAngle: ptrFloat64(70)}, false},
		{"bad slot order", TuningConfig{SlotOrder: ptrString("shuffled")}, true},
		{"natural slot order", TuningConfig{SlotOrder: ptrString("natural")}, false},
		{"zero line thickness", TuningConfig{LineThickness: ptrInt(0)}, true},
		{"bad hud refresh", TuningConfig{HUDRefresh: ptrString("soon")}, true},
		{"bad summary interval", TuningConfig{SummaryInterval: ptrString("whenever")}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := &TuningConfig{
		Exercise:  ptrString("pullup"),
		UpAngle:   ptrFloat64(150),
		DownAngle: ptrFloat64(60),
	}
	p := cfg.Policy()
	if p.Exercise != workout.ExercisePullup {
		t.Errorf("policy exercise = %q, want pullup", p.Exercise)
	}
	if p.Family() != workout.FamilyAscent {
		t.Errorf("policy family = %v, want ascent", p.Family())
	}
	if p.UpAngle != 150 || p.DownAngle != 60 {
		t.Errorf("policy thresholds = %f/%f, want 150/60", p.UpAngle, p.DownAngle)
	}
	if p.Joints != [3]int{6, 8, 10} {
		t.Errorf("policy joints = %v, want arm triple", p.Joints)
	}
}

func TestShowPreviewOverride(t *testing.T) {
	cfg := &TuningConfig{ShowPreview: ptrBool(false)}
	if cfg.GetShowPreview() {
		t.Error("GetShowPreview() = true, want false")
	}
}
