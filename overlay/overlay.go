// Package overlay - draw instructions for the live on-screen annotation.
//
// The renderer converts detections and trail history into destination-space
// draw instructions for a display layer to execute. It shares the geometry
// mapping with the export-time compositor, so live placement and burned-in
// placement are identical for the same orientation state. What the display
// layer does with the instructions (views, layers, windows) is outside the
// pipeline.
package overlay

import (
	"image"

	"github.com/nvr-ai/go-annotate/detect"
	"github.com/nvr-ai/go-annotate/geometry"
	"github.com/nvr-ai/go-annotate/orientation"
	"github.com/nvr-ai/go-annotate/trail"
)

// Box is one labeled detection box in destination pixel space.
type Box struct {
	Rect       image.Rectangle
	Label      string
	Confidence float32
}

// Dot is one trail point in destination pixel space. Opacity fades linearly
// with age; the newest dot is the most opaque.
type Dot struct {
	Center  image.Point
	Radius  int
	Opacity float32
}

// DrawList is the full set of instructions for one frame, boxes first.
type DrawList struct {
	Boxes []Box
	Dots  []Dot
}

// DefaultDotRadius is the trail dot radius in destination pixels.
const DefaultDotRadius = 6

// Renderer produces draw lists for the live display.
type Renderer struct {
	tracked   string
	dotRadius int
}

// NewRenderer creates a renderer drawing only the tracked class.
func NewRenderer(tracked string) *Renderer {
	return &Renderer{tracked: tracked, dotRadius: DefaultDotRadius}
}

// Render maps the frame's detections and the current trail into destination
// space. Detections outside the tracked class are not drawn.
func (r *Renderer) Render(
	dets []detect.Detection,
	points []trail.Point,
	dest geometry.Size,
	o orientation.State,
) DrawList {
	var list DrawList

	for _, d := range dets {
		if d.Label != r.tracked {
			continue
		}
		list.Boxes = append(list.Boxes, Box{
			Rect:       geometry.RectToImage(d.Box, dest, o),
			Label:      d.Label,
			Confidence: d.Confidence,
		})
	}

	for _, p := range points {
		list.Dots = append(list.Dots, Dot{
			Center:  geometry.PointToImage(geometry.Point{X: p.X, Y: p.Y}, dest, o),
			Radius:  r.dotRadius,
			Opacity: p.Opacity,
		})
	}

	return list
}
