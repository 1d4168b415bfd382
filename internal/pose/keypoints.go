// Package pose defines the keypoint data model shared by every frame
// source and the joint-angle math driving the repetition counter.
//
// Keypoints follow the 17-point COCO layout produced by the pose
// estimation workers. Coordinates are image-space pixels; only the first
// two axes participate in angle computation.
package pose

import (
	"encoding/json"
	"fmt"
)

// COCO keypoint indices, in the order emitted by the pose workers.
const (
	Nose = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
)

// NumKeypoints is the size of the COCO keypoint layout.
const NumKeypoints = 17

// Point is one keypoint position. Confidence is the detector's score for
// the joint; the angle math ignores it.
type Point struct {
	X          float64
	Y          float64
	Confidence float64
}

// MarshalJSON encodes the point as the [x, y, confidence] triple used on
// the wire by the pose workers.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{p.X, p.Y, p.Confidence})
}

// UnmarshalJSON accepts [x, y] or [x, y, confidence]. Workers always emit
// the triple; two-element points come from xy-only exports.
func (p *Point) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("keypoint: %w", err)
	}
	switch len(v) {
	case 2:
		p.X, p.Y, p.Confidence = v[0], v[1], 0
	case 3:
		p.X, p.Y, p.Confidence = v[0], v[1], v[2]
	default:
		return fmt.Errorf("keypoint: expected [x,y] or [x,y,confidence], got %d values", len(v))
	}
	return nil
}

// KeypointSet is one detected person's keypoints for a single frame.
type KeypointSet []Point
