package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-annotate/detect"
	"github.com/nvr-ai/go-annotate/geometry"
	"github.com/nvr-ai/go-annotate/orientation"
	"github.com/nvr-ai/go-annotate/trail"
)

func TestRenderer_FiltersUntrackedClasses(t *testing.T) {
	r := NewRenderer("baseball")
	dets := []detect.Detection{
		{Label: "baseball", Confidence: 0.9, Box: geometry.Rect{X: 0.4, Y: 0.4, W: 0.2, H: 0.2}},
		{Label: "person", Confidence: 0.95, Box: geometry.Rect{X: 0.1, Y: 0.1, W: 0.3, H: 0.6}},
	}

	list := r.Render(dets, nil, geometry.Size{Width: 1000, Height: 1000}, orientation.State{})
	require.Len(t, list.Boxes, 1)
	assert.Equal(t, "baseball", list.Boxes[0].Label)
	assert.Empty(t, list.Dots)
}

// TestRenderer_MatchesGeometryMapping verifies live placement goes through the
// same transform as export burn-in.
func TestRenderer_MatchesGeometryMapping(t *testing.T) {
	r := NewRenderer("baseball")
	o := orientation.State{Mirrored: true}
	dest := geometry.Size{Width: 1920, Height: 1080}
	box := geometry.Rect{X: 0.1, Y: 0.2, W: 0.2, H: 0.2}

	list := r.Render(
		[]detect.Detection{{Label: "baseball", Confidence: 0.8, Box: box}},
		[]trail.Point{{X: 0.5, Y: 0.5, Opacity: 1}},
		dest, o,
	)

	require.Len(t, list.Boxes, 1)
	assert.Equal(t, geometry.RectToImage(box, dest, o), list.Boxes[0].Rect)

	require.Len(t, list.Dots, 1)
	assert.Equal(t,
		geometry.PointToImage(geometry.Point{X: 0.5, Y: 0.5}, dest, o),
		list.Dots[0].Center)
	assert.Equal(t, float32(1), list.Dots[0].Opacity)
	assert.Equal(t, DefaultDotRadius, list.Dots[0].Radius)
}
