// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gymsight/repcount/internal/pose"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// PersonAt builds a full keypoint set posed so that the given joint triple
// measures angleDeg degrees. The remaining keypoints get distinct filler
// positions so serialized fixtures stay readable.
func PersonAt(angleDeg float64, joints [3]int) pose.KeypointSet {
	ks := make(pose.KeypointSet, pose.NumKeypoints)
	for i := range ks {
		ks[i] = pose.Point{X: float64(i) * 4, Y: float64(i) * 2, Confidence: 0.9}
	}

	b := pose.Point{X: 100, Y: 100, Confidence: 1.0}
	rad := angleDeg * math.Pi / 180.0
	ks[joints[0]] = pose.Point{X: b.X + 50, Y: b.Y, Confidence: 1.0}
	ks[joints[1]] = b
	ks[joints[2]] = pose.Point{X: b.X + 50*math.Cos(rad), Y: b.Y + 50*math.Sin(rad), Confidence: 1.0}
	return ks
}

// PeopleAt builds one posed keypoint set per angle, all sharing the same
// joint triple. Useful for multi-person frame fixtures.
func PeopleAt(joints [3]int, angles ...float64) []pose.KeypointSet {
	people := make([]pose.KeypointSet, len(angles))
	for i, a := range angles {
		people[i] = PersonAt(a, joints)
	}
	return people
}
