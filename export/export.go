// Package export - the offline annotation pass over a decoded asset.
//
// The export path differs from live recording in its backpressure policy:
// correctness outranks latency, so a not-ready muxer is waited on with a
// short bounded poll instead of dropping the frame. Every source frame must
// reach the output exactly once, in presentation order, with its original
// timestamp.
package export

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-annotate/common"
	"github.com/nvr-ai/go-annotate/composite"
	"github.com/nvr-ai/go-annotate/detect"
	"github.com/nvr-ai/go-annotate/frames"
	"github.com/nvr-ai/go-annotate/mux"
	"github.com/nvr-ai/go-annotate/orientation"
	"github.com/nvr-ai/go-annotate/trail"
)

const (
	// DefaultPollInterval is the muxer readiness polling period.
	DefaultPollInterval = 10 * time.Millisecond
	// DefaultPollTimeout bounds the cumulative readiness wait per frame.
	// Exceeding it is a BackpressureTimeout, fatal to the export.
	DefaultPollTimeout = 2 * time.Second
)

// Config wires the collaborators of one export pass.
type Config struct {
	Source      frames.Source
	Orientation orientation.State
	Adapter     detect.Adapter
	Trail       *trail.Tracker
	Compositor  composite.FrameCompositor
	// Muxer must be sized to the asset's natural dimensions and carry the
	// asset's display transform before the pass starts.
	Muxer mux.Muxer

	// Tap, when set, receives each source frame before annotation. It feeds
	// the on-screen player during export and has no effect on annotation
	// correctness.
	Tap func(frames.Frame)

	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Result summarizes a completed export pass.
type Result struct {
	Path   string
	Frames int
}

// Run performs the single sequential pass: read, detect, track, composite,
// append. It blocks until the source is exhausted, the context is cancelled,
// or a fatal error occurs. On abort the partial temporary output is discarded.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.Source == nil || cfg.Adapter == nil || cfg.Trail == nil ||
		cfg.Compositor == nil || cfg.Muxer == nil {
		return Result{}, errors.New("export pipeline missing a collaborator")
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}

	// The trail never carries state across assets.
	cfg.Trail.Reset()
	session := mux.NewSession(cfg.Muxer)

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, discard(session, errors.Wrap(err, "export aborted"))
		}

		frame, err := cfg.Source.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, discard(session, errors.Wrap(err, "reading source frame"))
		}

		if cfg.Tap != nil {
			cfg.Tap(frame)
		}

		if err := waitReady(ctx, cfg.Muxer, pollInterval, pollTimeout); err != nil {
			frame.Release()
			return Result{}, discard(session, err)
		}

		dets, err := cfg.Adapter.Detect(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				frame.Release()
				return Result{}, discard(session, errors.Wrap(err, "export aborted"))
			}
			log.Printf("export: detection failed, continuing: %v", err)
			dets = nil
		}

		cfg.Trail.Record(dets)
		out := cfg.Compositor.Composite(frame, dets, cfg.Trail.Snapshot(), cfg.Orientation)

		if err := session.Append(out); err != nil {
			if out.Mat.Ptr() != frame.Mat.Ptr() {
				out.Release()
			}
			frame.Release()
			return Result{}, discard(session, errors.Wrap(err, "appending exported frame"))
		}

		if out.Mat.Ptr() != frame.Mat.Ptr() {
			out.Release()
		}
		frame.Release()
	}

	if err := session.Finalize(); err != nil {
		return Result{}, errors.Wrap(err, "finalizing export")
	}
	return Result{Path: cfg.Muxer.Path(), Frames: session.Appended()}, nil
}

// waitReady polls the muxer until it accepts frames again. The wait is
// bounded: a muxer that never becomes ready must not livelock the pass.
func waitReady(ctx context.Context, m mux.Muxer, interval, timeout time.Duration) error {
	if m.Ready() {
		return nil
	}
	deadline := time.Now().Add(timeout)
	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "export aborted")
		case <-time.After(interval):
		}
		if m.Ready() {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrapf(common.ErrBackpressureTimeout, "after %v", timeout)
		}
	}
}

// discard finalizes what the muxer holds and removes the partial temporary
// file. A failed or aborted export never reaches the persistence
// collaborator.
func discard(session *mux.Session, cause error) error {
	path := session.Muxer().Path()
	if err := session.Finalize(); err != nil && !errors.Is(err, mux.ErrFinalized) {
		log.Printf("export: finalize during discard: %v", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("export: removing partial output %s: %v", path, err)
	}
	if err := os.Remove(mux.SidecarPath(path)); err != nil && !os.IsNotExist(err) {
		log.Printf("export: removing sidecar for %s: %v", path, err)
	}
	return cause
}
