package pose

// Frame is one pose-estimation result: every person detected in a single
// camera frame. The JSON form is the wire format shared by every frame
// transport and by the poselog file format.
type Frame struct {
	Seq            uint64        `json:"seq"`
	TimestampNanos int64         `json:"ts_ns"`
	CameraID       string        `json:"camera_id,omitempty"`
	People         []KeypointSet `json:"people"`
}
