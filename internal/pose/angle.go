package pose

import (
	"fmt"
	"math"
)

// Angle returns the angle in degrees at vertex b subtended by a and c,
// folded into [0, 180]. This is the atan2 formulation the pose workers
// use for their overlay annotations, kept bit-identical so recorded and
// live angles agree.
func Angle(a, b, c Point) float64 {
	rad := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	deg := math.Abs(rad * 180.0 / math.Pi)
	if deg > 180.0 {
		deg = 360.0 - deg
	}
	return deg
}

// JointAngle extracts the joint triple from ks and computes its angle.
// joints[0] and joints[2] are the limb endpoints, joints[1] the vertex.
//
// This is the validation boundary for malformed detections: out-of-range
// indices and non-finite coordinates are reported as errors rather than
// folded into a bogus angle that would corrupt downstream counts.
func JointAngle(ks KeypointSet, joints [3]int) (float64, error) {
	for _, j := range joints {
		if j < 0 || j >= len(ks) {
			return 0, fmt.Errorf("joint index %d out of range for %d keypoints", j, len(ks))
		}
		if !finite(ks[j]) {
			return 0, fmt.Errorf("joint %d has non-finite coordinates (%v, %v)", j, ks[j].X, ks[j].Y)
		}
	}
	return Angle(ks[joints[0]], ks[joints[1]], ks[joints[2]]), nil
}

func finite(p Point) bool {
	for _, v := range []float64{p.X, p.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
