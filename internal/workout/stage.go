package workout

// Stage is the classified phase of a repetition cycle for one slot.
type Stage string

const (
	// StageUnknown is the initial stage before any threshold crossing.
	// Rendered as "-" wherever stages are displayed.
	StageUnknown Stage = "-"
	StageUp      Stage = "up"
	StageDown    Stage = "down"
)

// Known reports whether the slot has crossed a threshold at least once.
func (s Stage) Known() bool {
	return s == StageUp || s == StageDown
}
