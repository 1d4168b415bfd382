package workout

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gymsight/repcount/internal/pose"
)

// Order controls how a frame's detections are zipped against slots.
type Order int

const (
	// OrderReversed pairs detections with slots in reverse batch order.
	// This is the default; switching modes mid-run changes which
	// person's motion lands in which slot.
	OrderReversed Order = iota

	// OrderNatural pairs detections in their arrival order.
	OrderNatural
)

// String returns the configuration name of the order mode.
func (o Order) String() string {
	if o == OrderNatural {
		return "natural"
	}
	return "reversed"
}

// slot is the per-person state advanced on every frame. Slots are sticky:
// once allocated they are never removed, so a transient detection drop
// keeps a briefly-occluded person's progress.
type slot struct {
	handle string
	angle  float64
	stage  Stage
	count  int
}

// Snapshot is an immutable copy of one slot after an Update.
//
// Handle is the slot's stable identity: it never changes for the life of
// the run, so rep events, chart series, and API payloads keyed by handle
// survive any future change to how detections are bound to slots.
type Snapshot struct {
	Handle string  `json:"handle"`
	Index  int     `json:"index"`
	Angle  float64 `json:"angle"`
	Stage  Stage   `json:"stage"`
	Count  int     `json:"count"`
}

// Counter owns the slot list and advances it one frame at a time.
//
// Update calls are inherently sequential (slot state at frame N depends
// on frame N-1). The mutex exists so HTTP handlers can read snapshots
// while the pipeline goroutine writes; it does not make interleaved
// Updates from multiple producers meaningful.
type Counter struct {
	mu     sync.RWMutex
	policy *Policy
	order  Order
	slots  []*slot
}

// NewCounter creates a counter with no slots. Slots are allocated on
// demand as frames report people.
func NewCounter(policy *Policy, order Order) *Counter {
	return &Counter{policy: policy, order: order}
}

// Update consumes one frame's detections and returns a snapshot of every
// slot, including slots with no detection this frame. An empty batch is a
// valid steady state: nothing mutates and the current snapshots return.
//
// Steps:
//  1. Validate every keypoint set against the policy's joint triple. A
//     malformed set rejects the whole frame before any slot mutates.
//  2. Grow the slot list if this batch is the largest seen so far. The
//     list never shrinks.
//  3. Pair detections with slots in the configured order.
//  4. Store each paired slot's new angle and advance its stage machine,
//     incrementing the count on a completed repetition.
//  5. Snapshot the full slot list.
func (c *Counter) Update(detections []pose.KeypointSet) ([]Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Step 1: reject malformed input before mutating anything.
	angles := make([]float64, len(detections))
	for i, ks := range detections {
		a, err := pose.JointAngle(ks, c.policy.Joints)
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		angles[i] = a
	}

	// Step 2: grow, never shrink.
	for len(c.slots) < len(detections) {
		c.slots = append(c.slots, &slot{
			handle: fmt.Sprintf("slot_%s", uuid.NewString()),
			stage:  StageUnknown,
		})
	}

	// Steps 3 and 4: pair and advance. Slots beyond this frame's batch
	// keep their previous state untouched.
	for i := range detections {
		j := i
		if c.order == OrderReversed {
			j = len(detections) - 1 - i
		}
		s := c.slots[i]
		s.angle = angles[j]
		var counted bool
		s.stage, counted = c.policy.Advance(s.angle, s.stage)
		if counted {
			s.count++
		}
	}

	// Step 5: full-list snapshot.
	return c.snapshotLocked(), nil
}

// Snapshots returns the current slot states without advancing anything.
func (c *Counter) Snapshots() []Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Counter) snapshotLocked() []Snapshot {
	out := make([]Snapshot, len(c.slots))
	for i, s := range c.slots {
		out[i] = Snapshot{
			Handle: s.handle,
			Index:  i,
			Angle:  s.angle,
			Stage:  s.stage,
			Count:  s.count,
		}
	}
	return out
}

// Len returns the number of slots allocated so far.
func (c *Counter) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}

// TotalCount returns the sum of all slots' repetition counts.
func (c *Counter) TotalCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, s := range c.slots {
		total += s.count
	}
	return total
}

// Policy returns the run's counting policy.
func (c *Counter) Policy() *Policy {
	return c.policy
}

// Order returns the detection pairing mode.
func (c *Counter) Order() Order {
	return c.order
}
