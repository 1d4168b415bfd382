package workout

// Exercise identifies the movement being monitored.
type Exercise string

const (
	ExercisePushup    Exercise = "pushup"
	ExercisePullup    Exercise = "pullup"
	ExerciseSquat     Exercise = "squat"
	ExerciseAbWorkout Exercise = "abworkout"
)

// Family is the threshold-crossing ordering that decides when a
// repetition is counted.
type Family int

const (
	// FamilyNone performs no transitions. Unrecognized exercises land
	// here: the angle is still computed and surfaced, the count never
	// advances.
	FamilyNone Family = iota

	// FamilyAscent arms on the extended position (angle above the up
	// threshold sets stage down) and counts on the contraction (angle
	// below the down threshold). Pull-ups and ab workouts.
	FamilyAscent

	// FamilyDescent arms the same way with the stage labels inverted
	// (angle above the up threshold sets stage up) and counts when the
	// angle drops below the down threshold. Push-ups and squats.
	FamilyDescent
)

// families maps each known exercise to its transition family. Membership
// is resolved once at construction, never per frame.
var families = map[Exercise]Family{
	ExercisePushup:    FamilyDescent,
	ExerciseSquat:     FamilyDescent,
	ExercisePullup:    FamilyAscent,
	ExerciseAbWorkout: FamilyAscent,
}

// Default stage thresholds in degrees.
const (
	DefaultUpAngle   = 145.0
	DefaultDownAngle = 90.0
)

// Policy is the immutable per-run counting configuration: which joint to
// measure, the thresholds delimiting a repetition, and the transition
// family for the exercise.
type Policy struct {
	Exercise  Exercise
	Joints    [3]int // limb, vertex, limb indices into each keypoint set
	UpAngle   float64
	DownAngle float64

	family Family
}

// NewPolicy resolves the transition family for exercise and fills default
// thresholds where zero values are given. Unknown exercise names are
// accepted and produce a policy that never counts.
func NewPolicy(exercise Exercise, joints [3]int, upAngle, downAngle float64) *Policy {
	if upAngle == 0 {
		upAngle = DefaultUpAngle
	}
	if downAngle == 0 {
		downAngle = DefaultDownAngle
	}
	return &Policy{
		Exercise:  exercise,
		Joints:    joints,
		UpAngle:   upAngle,
		DownAngle: downAngle,
		family:    families[exercise],
	}
}

// Family returns the transition family resolved at construction.
func (p *Policy) Family() Family {
	return p.family
}

// Advance applies one frame's angle to a stage and reports whether a
// repetition completed. Threshold comparisons are strict: an angle
// exactly on a threshold changes nothing. The up check runs before the
// down check on every call.
func (p *Policy) Advance(angle float64, stage Stage) (Stage, bool) {
	counted := false
	switch p.family {
	case FamilyAscent:
		if angle > p.UpAngle {
			stage = StageDown
		}
		if angle < p.DownAngle && stage == StageDown {
			stage = StageUp
			counted = true
		}
	case FamilyDescent:
		if angle > p.UpAngle {
			stage = StageUp
		}
		if angle < p.DownAngle && stage == StageUp {
			stage = StageDown
			counted = true
		}
	}
	return stage, counted
}
