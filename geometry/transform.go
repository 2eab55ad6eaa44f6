// Package geometry - mapping between normalized detection space and
// destination pixel space.
//
// Detections arrive as normalized [0,1] coordinates in the annotation space of
// the source. The destination canvas is a standard top-left-origin, y-down
// raster. A single mapping rule serves both the live overlay and export-time
// burn-in so the two paths render identical geometry for the same orientation
// state.
package geometry

import (
	"image"

	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-annotate/orientation"
)

// Point is a normalized coordinate pair in [0,1] x [0,1].
type Point struct {
	X float32
	Y float32
}

// Rect is a normalized rectangle: origin plus extent, all in [0,1].
type Rect struct {
	X float32
	Y float32
	W float32
	H float32
}

// Center returns the normalized center of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Size is the pixel size of a destination canvas.
type Size struct {
	Width  int
	Height int
}

// ToDestination maps a normalized point into destination pixel space.
//
// Scaling is x' = x*W, y' = y*H. Mirrored sources reflect horizontally. The
// source annotation space uses a bottom-left origin, so unless the source is
// already vertically flipped the y axis is inverted to match the y-down
// destination canvas.
func ToDestination(p Point, dest Size, o orientation.State) Point {
	x := p.X * float32(dest.Width)
	y := p.Y * float32(dest.Height)
	if o.Mirrored {
		x = float32(dest.Width) - x
	}
	if !o.VerticalFlip {
		y = float32(dest.Height) - y
	}
	return Point{X: x, Y: y}
}

// FromDestination is the algebraic inverse of ToDestination. Mapping a point
// forward and then back recovers it within floating-point tolerance.
func FromDestination(p Point, dest Size, o orientation.State) Point {
	x := p.X
	y := p.Y
	if o.Mirrored {
		x = float32(dest.Width) - x
	}
	if !o.VerticalFlip {
		y = float32(dest.Height) - y
	}
	return Point{X: x / float32(dest.Width), Y: y / float32(dest.Height)}
}

// RectToDestination maps a normalized rectangle into destination pixel space,
// applying the same mirroring and vertical inversion as ToDestination. The
// subtracted extent keeps the returned origin at the rectangle's top-left in
// destination space.
func RectToDestination(r Rect, dest Size, o orientation.State) Rect {
	x := r.X * float32(dest.Width)
	y := r.Y * float32(dest.Height)
	w := r.W * float32(dest.Width)
	h := r.H * float32(dest.Height)
	if o.Mirrored {
		x = float32(dest.Width) - x - w
	}
	if !o.VerticalFlip {
		y = float32(dest.Height) - y - h
	}
	return Rect{X: x, Y: y, W: w, H: h}
}

// RectToImage maps a normalized rectangle to an integral image.Rectangle for
// drawing.
func RectToImage(r Rect, dest Size, o orientation.State) image.Rectangle {
	d := RectToDestination(r, dest, o)
	return image.Rect(
		int(math32.Round(d.X)),
		int(math32.Round(d.Y)),
		int(math32.Round(d.X+d.W)),
		int(math32.Round(d.Y+d.H)),
	).Canon()
}

// PointToImage maps a normalized point to an integral image.Point for drawing.
func PointToImage(p Point, dest Size, o orientation.State) image.Point {
	d := ToDestination(p, dest, o)
	return image.Pt(int(math32.Round(d.X)), int(math32.Round(d.Y)))
}
