// Package poselog reads and writes pose frame logs.
//
// A poselog is a line-oriented JSON file: the first line is a Header, every
// following line is one pose.Frame in the shared wire form. It is the
// interchange format between live capture, replay and offline analysis.
package poselog

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gymsight/repcount/internal/security"
)

// FileExtension is the extension for pose log files.
const FileExtension = ".poselog"

// FormatVersion is written into the header of newly created logs.
const FormatVersion = "1.0"

// Header is the first line of a poselog file.
type Header struct {
	Version      string `json:"version"`
	CameraID     string `json:"camera_id,omitempty"`
	Exercise     string `json:"exercise,omitempty"`
	CreatedNanos int64  `json:"created_ns"`
	Note         string `json:"note,omitempty"`
}

// DefaultFilename builds a log filename from capture metadata, with both
// identifiers sanitized for filesystem use.
func DefaultFilename(cameraID, exercise string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s%s",
		security.SanitizeFilename(cameraID),
		security.SanitizeFilename(exercise),
		t.UTC().Format("20060102T150405"),
		FileExtension)
}

// ResolvePath joins name onto dir and rejects any result that escapes dir.
// name may carry subdirectories but not traversal components.
func ResolvePath(dir, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty poselog name")
	}
	path := filepath.Join(dir, name)
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return "", fmt.Errorf("invalid poselog path %q: %w", name, err)
	}
	return path, nil
}
