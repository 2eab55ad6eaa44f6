package mux

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-annotate/common"
	"github.com/nvr-ai/go-annotate/frames"
	"github.com/nvr-ai/go-annotate/orientation"
)

// WriterConfig configures a file-backed muxer.
type WriterConfig struct {
	// Path is the temporary output location.
	Path string
	// Width and Height fix the codec geometry. They are immutable once the
	// writer is constructed, so orientation-dependent swaps must happen
	// before calling NewFileWriter.
	Width  int
	Height int
	// FPS is the effective frame rate derived from the capture format's
	// frame duration.
	FPS float64
	// Codec is the fourcc of the video codec; empty means "avc1".
	Codec string
	// Bitrate is the target encode bitrate in bits per second, recorded in
	// the asset's sidecar for the encoding backend.
	Bitrate int
	// DisplayTransform carries the source asset's orientation so the output
	// plays back with the original geometry. Recorded alongside the asset
	// for the persistence collaborator.
	DisplayTransform orientation.State
}

// FileWriter is the gocv-backed muxer. Construction fixes the codec geometry
// and the container timebase; both are immutable afterwards.
type FileWriter struct {
	writer    *gocv.VideoWriter
	config    WriterConfig
	timescale int
	closed    bool
}

// NewFileWriter constructs the muxer. Failure to construct it is a
// ConfigurationError, fatal to the session.
func NewFileWriter(cfg WriterConfig) (*FileWriter, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FPS <= 0 {
		return nil, common.Configf(nil, "invalid muxer geometry %dx%d @ %g",
			cfg.Width, cfg.Height, cfg.FPS)
	}
	codec := cfg.Codec
	if codec == "" {
		codec = "avc1"
	}

	writer, err := gocv.VideoWriterFile(cfg.Path, codec, cfg.FPS, cfg.Width, cfg.Height, true)
	if err != nil {
		return nil, common.Configf(err, "constructing muxer at %s", cfg.Path)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, common.Configf(nil, "muxer at %s did not open", cfg.Path)
	}

	return &FileWriter{
		writer:    writer,
		config:    cfg,
		timescale: Timescale(cfg.FPS),
	}, nil
}

// Ready reports whether the writer can accept another frame.
func (w *FileWriter) Ready() bool {
	return !w.closed && w.writer.IsOpened()
}

// Append writes one frame. The writer derives track timing from the timescale
// fixed at construction; the frame's own timestamp is carried by the session.
func (w *FileWriter) Append(f frames.Frame) error {
	if !w.Ready() {
		return errors.New("writer not ready")
	}
	if f.Width != w.config.Width || f.Height != w.config.Height {
		return errors.Errorf("frame %dx%d does not match track geometry %dx%d",
			f.Width, f.Height, w.config.Width, w.config.Height)
	}
	return w.writer.Write(f.Mat)
}

// Finalize flushes and closes the container file, then writes the metadata
// sidecar the persistence layer carries with the asset.
func (w *FileWriter) Finalize() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.writer.Close(); err != nil {
		return err
	}
	return WriteSidecar(w.config.Path, Sidecar{
		Timescale:        w.timescale,
		Bitrate:          w.config.Bitrate,
		DisplayTransform: w.config.DisplayTransform,
	})
}

// Path returns the temporary output path.
func (w *FileWriter) Path() string { return w.config.Path }

// Timescale returns the container timebase fixed at construction.
func (w *FileWriter) Timescale() int { return w.timescale }

// DisplayTransform returns the orientation recorded for playback.
func (w *FileWriter) DisplayTransform() orientation.State { return w.config.DisplayTransform }
