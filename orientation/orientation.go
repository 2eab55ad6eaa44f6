// Package orientation - per-session orientation state for coordinate mapping.
//
// State is computed exactly once per session (live) or per source asset (file)
// and then passed explicitly into the geometry and compositing calls. It is
// never stored as ambient mutable state and never changes mid-stream.
package orientation

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-annotate/common"
)

// State is the orientation triple governing coordinate mapping for a session.
type State struct {
	Mirrored     bool
	VerticalFlip bool
	UpsideDown   bool
}

// ForCamera resolves orientation for a live capture session. Front-facing
// sensors deliver mirrored frames; the live preview coordinate space already
// matches a top-left-origin canvas, so no vertical flip applies.
func ForCamera(frontFacing bool) State {
	return State{Mirrored: frontFacing}
}

// rotationTolerance bounds how far the source transform may deviate from a
// pure rotation (optionally mirrored) before it is rejected. Transforms with
// scale or shear would silently mis-render, so they fail the session instead.
const rotationTolerance = 1e-3

// FromTransform resolves orientation from a decoded asset's embedded 2x2
// affine transform (a, b, c, d).
//
// The rotation angle atan2(b, a) is normalized to [0, 360) and snapped to the
// nearest of {0, 90, 180, 270}. Mirroring is read from the sign of a at
// 0/180 degrees and the sign of d at 90/270 degrees. A transform carrying a
// non-trivial scale or shear component is rejected with a ConfigurationError.
func FromTransform(a, b, c, d float32) (State, error) {
	if !isPureRotation(a, b, c, d) {
		return State{}, common.Configf(nil,
			"source transform [%g %g; %g %g] has scale or shear", a, b, c, d)
	}

	angle := math32.Atan2(b, a) * 180 / math32.Pi
	for angle < 0 {
		angle += 360
	}
	snapped := int(math32.Round(angle/90)) * 90 % 360

	var mirrored bool
	switch snapped {
	case 0:
		mirrored = a < 0
	case 180:
		mirrored = a > 0
	case 90:
		mirrored = d < 0
	case 270:
		mirrored = d > 0
	}

	return State{
		Mirrored:   mirrored,
		UpsideDown: snapped == 180,
	}, nil
}

// isPureRotation checks that both row vectors are unit length and mutually
// orthogonal within tolerance.
func isPureRotation(a, b, c, d float32) bool {
	return math32.Abs(a*a+b*b-1) <= rotationTolerance &&
		math32.Abs(c*c+d*d-1) <= rotationTolerance &&
		math32.Abs(a*c+b*d) <= rotationTolerance
}
