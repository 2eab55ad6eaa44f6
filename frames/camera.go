package frames

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-annotate/capture"
)

// CameraSource delivers frames from a live capture device. The negotiated
// capture format is applied once at open time; the device is the single
// producer for the session.
type CameraSource struct {
	capture *gocv.VideoCapture
	format  capture.Format
	epoch   time.Time
}

// OpenCamera opens capture device id and applies the negotiated format.
func OpenCamera(id int, format capture.Format) (*CameraSource, error) {
	cam, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, errors.Wrapf(err, "open capture device %d", id)
	}
	cam.Set(gocv.VideoCaptureFrameWidth, float64(format.Width))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(format.Height))
	cam.Set(gocv.VideoCaptureFPS, format.FPS())
	return &CameraSource{capture: cam, format: format}, nil
}

// Next reads one frame from the device. Timestamps are wall-clock offsets
// from the first read, which keeps them monotonically increasing across the
// stream.
func (s *CameraSource) Next() (Frame, error) {
	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return Frame{}, errors.New("camera read failed")
	}
	now := time.Now()
	if s.epoch.IsZero() {
		s.epoch = now
	}
	return Frame{
		Mat:    mat,
		Width:  mat.Cols(),
		Height: mat.Rows(),
		PTS:    now.Sub(s.epoch),
	}, nil
}

// Stream pushes frames into fn until the context is cancelled or the device
// stops producing. This is the delivery callback for the live path: fn runs
// on the producer's goroutine, one frame at a time, in order.
func (s *CameraSource) Stream(ctx context.Context, fn func(Frame)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		frame, err := s.Next()
		if err != nil {
			return err
		}
		fn(frame)
	}
}

func (s *CameraSource) Width() int   { return s.format.Width }
func (s *CameraSource) Height() int  { return s.format.Height }
func (s *CameraSource) FPS() float64 { return s.format.FPS() }

// Close releases the capture device.
func (s *CameraSource) Close() error { return s.capture.Close() }
