// Package detect - the detection capability consumed by the annotation
// pipeline.
//
// The pipeline depends only on the Adapter contract: given a frame, return
// zero or more labeled, confidence-scored, normalized bounding boxes. An
// empty result every frame is a normal outcome, not an error. The ONNX
// adapter in this package is one implementation; callers may supply any
// other.
package detect

import (
	"context"

	"github.com/nvr-ai/go-annotate/frames"
	"github.com/nvr-ai/go-annotate/geometry"
)

// Detection is one detected object: a label, a confidence in [0,1], and a
// normalized bounding box. Detections are immutable and apply only to the
// frame that produced them.
type Detection struct {
	Label      string
	Confidence float32
	Box        geometry.Rect
}

// Adapter is the external detector capability.
type Adapter interface {
	Detect(ctx context.Context, frame frames.Frame) ([]Detection, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, frame frames.Frame) ([]Detection, error)

// Detect implements Adapter.
func (f AdapterFunc) Detect(ctx context.Context, frame frames.Frame) ([]Detection, error) {
	return f(ctx, frame)
}

// FilterLabel returns the detections whose label matches the tracked class.
func FilterLabel(dets []Detection, label string) []Detection {
	var out []Detection
	for _, d := range dets {
		if d.Label == label {
			out = append(out, d)
		}
	}
	return out
}
