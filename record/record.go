// Package record - the live recording pipeline.
//
// Frames arrive on the producer's callback, one at a time, in order. Each
// frame runs detection, updates the trail, is composited, and is appended to
// the muxer with its original timestamp. Live capture must never stall on
// disk or encoder backpressure, so a frame arriving while the muxer is not
// ready is dropped, not queued.
package record

import (
	"context"
	"log"
	"sync"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-annotate/capture"
	"github.com/nvr-ai/go-annotate/composite"
	"github.com/nvr-ai/go-annotate/detect"
	"github.com/nvr-ai/go-annotate/frames"
	"github.com/nvr-ai/go-annotate/mux"
	"github.com/nvr-ai/go-annotate/orientation"
	"github.com/nvr-ai/go-annotate/trail"
)

// State is the recording pipeline lifecycle.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateWriting
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateWriting:
		return "writing"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MuxerFactory constructs the output muxer once the output geometry is known.
// Codec geometry is immutable post-construction, which is why the factory is
// called at arm time with the final, orientation-adjusted dimensions.
type MuxerFactory func(width, height int, fps float64) (mux.Muxer, error)

// Config wires the collaborators of one recording session.
type Config struct {
	Format capture.Format
	// Portrait swaps the output width and height at arm time to match the
	// device orientation.
	Portrait    bool
	Orientation orientation.State
	Adapter     detect.Adapter
	Trail       *trail.Tracker
	Compositor  composite.FrameCompositor
	NewMuxer    MuxerFactory
}

// Result is the completion signal of a recording session.
type Result struct {
	Path    string
	Frames  int
	Dropped int
	Err     error
}

// Pipeline drives one live recording session. OnFrame is called from the
// single producer goroutine; Stop may be called from any goroutine.
type Pipeline struct {
	cfg Config
	out *mux.Session

	mu      sync.Mutex
	state   State
	dropped int

	// inflight counts admitted frames still being processed. Stop's finalize
	// waits on it so the last admitted frame is appended before the muxer
	// closes.
	inflight sync.WaitGroup

	done chan Result
}

// New validates the configuration. The pipeline starts Idle; Arm constructs
// the muxer.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Adapter == nil || cfg.Trail == nil || cfg.Compositor == nil || cfg.NewMuxer == nil {
		return nil, errors.New("recording pipeline missing a collaborator")
	}
	return &Pipeline{cfg: cfg, done: make(chan Result, 1)}, nil
}

// Arm computes the output geometry from the capture format, constructs the
// muxer, and resets the trail. Idle -> Armed.
func (p *Pipeline) Arm() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return errors.Errorf("cannot arm from state %s", p.state)
	}

	width, height := p.cfg.Format.Width, p.cfg.Format.Height
	if p.cfg.Portrait {
		width, height = height, width
	}

	muxer, err := p.cfg.NewMuxer(width, height, p.cfg.Format.FPS())
	if err != nil {
		return errors.Wrap(err, "arming recording pipeline")
	}

	p.cfg.Trail.Reset()
	p.out = mux.NewSession(muxer)
	p.state = StateArmed
	return nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Dropped returns the number of frames dropped to backpressure.
func (p *Pipeline) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Done delivers the completion signal once finalization finishes.
func (p *Pipeline) Done() <-chan Result { return p.done }

// OnFrame is the producer entry point. The frame is owned by the pipeline
// from here on and is released before returning.
func (p *Pipeline) OnFrame(f frames.Frame) {
	p.mu.Lock()
	switch p.state {
	case StateArmed:
		// First frame after recording started: its timestamp becomes the
		// output session anchor on append below.
		p.state = StateWriting
	case StateWriting:
	default:
		p.mu.Unlock()
		f.Release()
		return
	}

	if !p.out.Muxer().Ready() {
		p.dropped++
		p.mu.Unlock()
		f.Release()
		return
	}
	// Admitted: from here the frame reaches the muxer before any finalize.
	p.inflight.Add(1)
	defer p.inflight.Done()
	p.mu.Unlock()

	dets, err := p.cfg.Adapter.Detect(context.Background(), f)
	if err != nil {
		// Transient detection failure: the frame simply has no detections.
		log.Printf("record: detection failed, continuing: %v", err)
		dets = nil
	}

	p.cfg.Trail.Record(dets)
	out := p.cfg.Compositor.Composite(f, dets, p.cfg.Trail.Snapshot(), p.cfg.Orientation)

	if err := p.out.Append(out); err != nil {
		log.Printf("record: append failed: %v", err)
	}

	if out.Mat.Ptr() != f.Mat.Ptr() {
		out.Release()
	}
	f.Release()
}

// Stop ends intake and finalizes asynchronously. Frames already handed to the
// muxer are still flushed; frames arriving after Stop are not admitted.
// Writing (or Armed) -> Finalizing -> Closed.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.state != StateWriting && p.state != StateArmed {
		p.mu.Unlock()
		return
	}
	p.state = StateFinalizing
	out := p.out
	dropped := p.dropped
	p.mu.Unlock()

	go func() {
		// No new frames are admitted once the state left Writing; wait for
		// the ones already past the admission check, then stop intake and
		// flush.
		p.inflight.Wait()
		out.CloseIntake()
		err := out.Finalize()

		p.mu.Lock()
		p.state = StateClosed
		p.mu.Unlock()

		p.done <- Result{
			Path:    out.Muxer().Path(),
			Frames:  out.Appended(),
			Dropped: dropped,
			Err:     err,
		}
	}()
}
