// Package workout owns the repetition-counting state machine.
//
// Responsibilities: per-exercise threshold policy, the up/down stage
// machine, and the per-person slot list that carries angle, stage, and
// count across frames. Key types: Policy, Counter, Snapshot.
//
// The package is pure compute: no I/O, no storage, no logging. Frame
// sources, persistence, and rendering live in their own packages and
// talk to this one only through Update and Snapshots.
package workout
