// Package trail - bounded history of tracked-object centers.
//
// The tracker keeps a fixed-capacity FIFO of detection centers for a single
// tracked class. It is only ever mutated by the single worker driving a
// session, so it carries no locking.
package trail

import (
	"github.com/nvr-ai/go-annotate/detect"
)

// DefaultMaxLength is the default bound on trail history.
const DefaultMaxLength = 15

// Point is one recorded center with its rendering opacity. Opacity scales
// linearly with age: the newest point carries the highest value.
type Point struct {
	X       float32
	Y       float32
	Opacity float32
}

// Tracker records centers of accepted detections for one tracked class.
type Tracker struct {
	label  string
	max    int
	points []point
}

type point struct{ x, y float32 }

// NewTracker creates a tracker for the given class label. A max below 1 is
// raised to DefaultMaxLength.
func NewTracker(label string, max int) *Tracker {
	if max < 1 {
		max = DefaultMaxLength
	}
	return &Tracker{
		label:  label,
		max:    max,
		points: make([]point, 0, max),
	}
}

// Label returns the tracked class name.
func (t *Tracker) Label() string { return t.label }

// Len returns the number of recorded points.
func (t *Tracker) Len() int { return len(t.points) }

// Reset clears all recorded points. Called at session start and before a
// file export pass.
func (t *Tracker) Reset() {
	t.points = t.points[:0]
}

// Record appends the box center of every detection matching the tracked
// class, evicting the oldest point once the bound is exceeded. Detections for
// other labels are ignored.
func (t *Tracker) Record(dets []detect.Detection) {
	for _, d := range dets {
		if d.Label != t.label {
			continue
		}
		c := d.Box.Center()
		if len(t.points) == t.max {
			copy(t.points, t.points[1:])
			t.points = t.points[:t.max-1]
		}
		t.points = append(t.points, point{x: c.X, y: c.Y})
	}
}

// Snapshot returns the current trail oldest-first, with opacity precomputed
// against the tracker's bound. The result is a copy: safe to hand to a
// renderer while the tracker keeps mutating.
func (t *Tracker) Snapshot() []Point {
	out := make([]Point, len(t.points))
	for i, p := range t.points {
		out[i] = Point{
			X:       p.x,
			Y:       p.y,
			Opacity: float32(i+1) / float32(t.max),
		}
	}
	return out
}
