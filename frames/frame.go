// Package frames - frame buffers and frame sources for the annotation
// pipeline.
package frames

import (
	"time"

	"gocv.io/x/gocv"
)

// Frame is one decoded image with its presentation timestamp.
//
// A frame is exclusively owned by the pipeline stage currently processing it
// and must be released once handed to the next stage or the muxer.
type Frame struct {
	Mat    gocv.Mat
	Width  int
	Height int
	PTS    time.Duration
}

// Release frees the underlying pixel buffer. Safe to call on a zero frame.
func (f *Frame) Release() {
	if f.Mat.Ptr() != nil {
		f.Mat.Close()
	}
}

// Source produces frames one at a time, in presentation order, with
// monotonically increasing timestamps and a stable pixel format. Next returns
// io.EOF once the stream is exhausted.
type Source interface {
	Next() (Frame, error)
	Width() int
	Height() int
	FPS() float64
	Close() error
}
