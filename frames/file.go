package frames

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FileSource decodes frames sequentially from a video asset on disk.
type FileSource struct {
	capture *gocv.VideoCapture
	width   int
	height  int
	fps     float64
}

// OpenFile opens path for sequential decoding.
func OpenFile(path string) (*FileSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open video file %s", path)
	}
	return &FileSource{
		capture: capture,
		width:   int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:  int(capture.Get(gocv.VideoCaptureFrameHeight)),
		fps:     capture.Get(gocv.VideoCaptureFPS),
	}, nil
}

// Next decodes the next frame. The decoder's own position clock supplies the
// presentation timestamp, preserving the source's native (possibly high-rate)
// timing.
func (s *FileSource) Next() (Frame, error) {
	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return Frame{}, io.EOF
	}
	pts := time.Duration(s.capture.Get(gocv.VideoCapturePosMsec) * float64(time.Millisecond))
	return Frame{
		Mat:    mat,
		Width:  mat.Cols(),
		Height: mat.Rows(),
		PTS:    pts,
	}, nil
}

// FrameCount returns the container's declared frame count, or zero when the
// container does not carry one.
func (s *FileSource) FrameCount() int {
	return int(s.capture.Get(gocv.VideoCaptureFrameCount))
}

func (s *FileSource) Width() int   { return s.width }
func (s *FileSource) Height() int  { return s.height }
func (s *FileSource) FPS() float64 { return s.fps }

// Close releases the decoder.
func (s *FileSource) Close() error { return s.capture.Close() }
