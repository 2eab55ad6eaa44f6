// Package composite - burns detection boxes and trail dots into frames for
// the recorded or exported output.
//
// The compositor is best-effort: if an output buffer cannot be obtained it
// returns the unmodified source frame rather than blocking the pipeline. Both
// the live recording path and the file export path share this one
// implementation, so burned-in geometry always matches the live overlay.
package composite

import (
	"image/color"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-annotate/detect"
	"github.com/nvr-ai/go-annotate/frames"
	"github.com/nvr-ai/go-annotate/geometry"
	"github.com/nvr-ai/go-annotate/orientation"
	"github.com/nvr-ai/go-annotate/overlay"
	"github.com/nvr-ai/go-annotate/trail"
)

// FrameCompositor is the compositing contract consumed by the recording and
// export pipelines.
type FrameCompositor interface {
	Composite(
		f frames.Frame,
		dets []detect.Detection,
		points []trail.Point,
		o orientation.State,
	) frames.Frame
}

// Compositor rasterizes the overlay draw list: boxes for the tracked class
// and a fading dot trail.
type Compositor struct {
	renderer   *overlay.Renderer
	boxColor   color.RGBA
	trailColor color.RGBA
	thickness  int
}

// New creates a compositor for the given tracked class.
func New(tracked string) *Compositor {
	return &Compositor{
		renderer:   overlay.NewRenderer(tracked),
		boxColor:   color.RGBA{R: 0, G: 255, B: 0, A: 255},
		trailColor: color.RGBA{R: 255, G: 64, B: 0, A: 255},
		thickness:  2,
	}
}

// Composite returns a new frame of identical dimensions and pixel format with
// the annotations burned in. Boxes draw first, then trail dots with opacity
// scaled by age. On failure to obtain an output buffer the source frame is
// returned unmodified.
func (c *Compositor) Composite(
	f frames.Frame,
	dets []detect.Detection,
	points []trail.Point,
	o orientation.State,
) frames.Frame {
	if f.Mat.Empty() {
		return f
	}

	out := f.Mat.Clone()
	if out.Empty() {
		return f
	}

	dest := geometry.Size{Width: f.Width, Height: f.Height}
	list := c.renderer.Render(dets, points, dest, o)

	for _, box := range list.Boxes {
		gocv.Rectangle(&out, box.Rect, c.boxColor, c.thickness)
	}
	for _, dot := range list.Dots {
		c.blendDot(&out, dot)
	}

	return frames.Frame{Mat: out, Width: f.Width, Height: f.Height, PTS: f.PTS}
}

// blendDot draws one filled circle at the dot's opacity by blending a scratch
// copy back into the output.
func (c *Compositor) blendDot(out *gocv.Mat, dot overlay.Dot) {
	opacity := dot.Opacity
	if opacity <= 0 {
		return
	}
	if opacity > 1 {
		opacity = 1
	}

	scratch := out.Clone()
	if scratch.Empty() {
		return
	}
	defer scratch.Close()

	gocv.Circle(&scratch, dot.Center, dot.Radius, c.trailColor, -1)
	gocv.AddWeighted(scratch, float64(opacity), *out, 1-float64(opacity), 0, out)
}
