package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gymsight/repcount/internal/pose"
	"github.com/gymsight/repcount/internal/workout"
)

// TuningConfig is the root configuration for a counting run. The schema
// matches the /api/config endpoint so the same JSON works for startup
// configuration and for inspecting the effective settings at runtime.
//
// All fields are pointers: a field omitted from the JSON file falls back
// to its default through the Get* accessors, so partial configs are safe.
type TuningConfig struct {
	// Counting params
	Exercise  *string  `json:"exercise,omitempty"`
	Joints    *[]int   `json:"joints,omitempty"` // limb, vertex, limb keypoint indices
	UpAngle   *float64 `json:"up_angle,omitempty"`
	DownAngle *float64 `json:"down_angle,omitempty"`
	SlotOrder *string  `json:"slot_order,omitempty"` // "reversed" or "natural"

	// Capture params
	CameraID   *string `json:"camera_id,omitempty"`
	PoselogDir *string `json:"poselog_dir,omitempty"`

	// Preview params (no effect on counting)
	ShowPreview   *bool   `json:"show_preview,omitempty"`
	LineThickness *int    `json:"line_thickness,omitempty"`
	HUDRefresh    *string `json:"hud_refresh,omitempty"` // duration string like "250ms"

	// Worker params
	SummaryInterval *string `json:"summary_interval,omitempty"` // duration string like "30s"
}

// defaultJoints maps each stock exercise to its conventional COCO joint
// triple. Right-side joints, matching the pose workers' overlay default.
var defaultJoints = map[workout.Exercise][3]int{
	workout.ExercisePushup:    {pose.RightShoulder, pose.RightElbow, pose.RightWrist},
	workout.ExercisePullup:    {pose.RightShoulder, pose.RightElbow, pose.RightWrist},
	workout.ExerciseSquat:     {pose.RightHip, pose.RightKnee, pose.RightAnkle},
	workout.ExerciseAbWorkout: {pose.RightShoulder, pose.RightHip, pose.RightKnee},
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields unset, so every
// accessor answers with its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size.
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

// Validate checks that any set fields hold usable values.
func (c *TuningConfig) Validate() error {
	if c.Joints != nil {
		if len(*c.Joints) != 3 {
			return fmt.Errorf("joints must name exactly 3 keypoint indices, got %d", len(*c.Joints))
		}
		for _, j := range *c.Joints {
			if j < 0 {
				return fmt.Errorf("joint index must be non-negative, got %d", j)
			}
		}
	}

	if c.UpAngle != nil {
		if *c.UpAngle <= 0 || *c.UpAngle > 180 {
			return fmt.Errorf("up_angle must be in (0, 180], got %f", *c.UpAngle)
		}
	}
	if c.DownAngle != nil {
		if *c.DownAngle <= 0 || *c.DownAngle > 180 {
			return fmt.Errorf("down_angle must be in (0, 180], got %f", *c.DownAngle)
		}
	}
	if c.UpAngle != nil && c.DownAngle != nil && *c.DownAngle >= *c.UpAngle {
		return fmt.Errorf("down_angle (%f) must be below up_angle (%f)", *c.DownAngle, *c.UpAngle)
	}

	if c.SlotOrder != nil {
		switch *c.SlotOrder {
		case "reversed", "natural":
		default:
			return fmt.Errorf("slot_order must be \"reversed\" or \"natural\", got %q", *c.SlotOrder)
		}
	}

	if c.LineThickness != nil && *c.LineThickness < 1 {
		return fmt.Errorf("line_thickness must be at least 1, got %d", *c.LineThickness)
	}

	if c.HUDRefresh != nil && *c.HUDRefresh != "" {
		if _, err := time.ParseDuration(*c.HUDRefresh); err != nil {
			return fmt.Errorf("invalid hud_refresh '%s': %w", *c.HUDRefresh, err)
		}
	}

	if c.SummaryInterval != nil && *c.SummaryInterval != "" {
		if _, err := time.ParseDuration(*c.SummaryInterval); err != nil {
			return fmt.Errorf("invalid summary_interval '%s': %w", *c.SummaryInterval, err)
		}
	}

	return nil
}

// GetExercise returns the configured exercise or the default.
func (c *TuningConfig) GetExercise() workout.Exercise {
	if c.Exercise == nil || *c.Exercise == "" {
		return workout.ExercisePushup // default
	}
	return workout.Exercise(*c.Exercise)
}

// GetJoints returns the joint triple, falling back to the exercise's
// conventional COCO triple when unset.
func (c *TuningConfig) GetJoints() [3]int {
	if c.Joints != nil && len(*c.Joints) == 3 {
		return [3]int{(*c.Joints)[0], (*c.Joints)[1], (*c.Joints)[2]}
	}
	if joints, ok := defaultJoints[c.GetExercise()]; ok {
		return joints
	}
	return defaultJoints[workout.ExercisePushup]
}

// GetUpAngle returns the up_angle value or the default.
func (c *TuningConfig) GetUpAngle() float64 {
	if c.UpAngle == nil {
		return workout.DefaultUpAngle
	}
	return *c.UpAngle
}

// GetDownAngle returns the down_angle value or the default.
func (c *TuningConfig) GetDownAngle() float64 {
	if c.DownAngle == nil {
		return workout.DefaultDownAngle
	}
	return *c.DownAngle
}

// GetSlotOrder returns the detection pairing mode or the default.
func (c *TuningConfig) GetSlotOrder() workout.Order {
	if c.SlotOrder != nil && *c.SlotOrder == "natural" {
		return workout.OrderNatural
	}
	return workout.OrderReversed
}

// GetCameraID returns the camera_id value or the default.
func (c *TuningConfig) GetCameraID() string {
	if c.CameraID == nil || *c.CameraID == "" {
		return "cam0"
	}
	return *c.CameraID
}

// GetPoselogDir returns the poselog_dir value or the default.
func (c *TuningConfig) GetPoselogDir() string {
	if c.PoselogDir == nil || *c.PoselogDir == "" {
		return "poselogs"
	}
	return *c.PoselogDir
}

// GetShowPreview returns the show_preview value or the default.
func (c *TuningConfig) GetShowPreview() bool {
	if c.ShowPreview == nil {
		return true
	}
	return *c.ShowPreview
}

// GetLineThickness returns the line_thickness value or the default.
func (c *TuningConfig) GetLineThickness() int {
	if c.LineThickness == nil {
		return 2
	}
	return *c.LineThickness
}

// GetHUDRefresh parses and returns the HUDRefresh as a time.Duration.
func (c *TuningConfig) GetHUDRefresh() time.Duration {
	if c.HUDRefresh == nil || *c.HUDRefresh == "" {
		return 250 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.HUDRefresh)
	if err != nil {
		return 250 * time.Millisecond // default on parse error
	}
	return d
}

// GetSummaryInterval parses and returns the SummaryInterval as a time.Duration.
func (c *TuningConfig) GetSummaryInterval() time.Duration {
	if c.SummaryInterval == nil || *c.SummaryInterval == "" {
		return 30 * time.Second // default
	}
	d, err := time.ParseDuration(*c.SummaryInterval)
	if err != nil {
		return 30 * time.Second // default on parse error
	}
	return d
}

// Policy builds the run's counting policy from the effective settings.
func (c *TuningConfig) Policy() *workout.Policy {
	return workout.NewPolicy(c.GetExercise(), c.GetJoints(), c.GetUpAngle(), c.GetDownAngle())
}
