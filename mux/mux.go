// Package mux - the output container contract and session bookkeeping for
// recorded and exported assets.
package mux

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-annotate/frames"
)

// Muxer accepts timestamped frames and produces a playable video asset at a
// temporary path. Frames must be appended in strictly increasing presentation
// order; Ready reports whether the muxer can accept another frame right now.
type Muxer interface {
	Ready() bool
	Append(f frames.Frame) error
	Finalize() error
	Path() string
}

// MinTimescale is the floor for the container timebase in ticks per second.
const MinTimescale = 600

// Timescale returns the container timebase for an effective frame rate:
// at least MinTimescale, or ten times the rate, whichever is larger. A
// generous timebase preserves fractional high-fps timing so downstream
// players interpret slow-motion material correctly.
func Timescale(fps float64) int {
	scaled := int(math.Ceil(10 * fps))
	if scaled < MinTimescale {
		return MinTimescale
	}
	return scaled
}

// ErrFinalized reports an append or finalize against an already finalized
// session.
var ErrFinalized = errors.New("output session already finalized")

// ErrIntakeClosed reports an append after the session stopped admitting
// frames.
var ErrIntakeClosed = errors.New("output session intake closed")

// ErrTimestampOrder reports an append whose timestamp does not advance.
var ErrTimestampOrder = errors.New("presentation timestamps must strictly increase")

// Session wraps a muxer with the bookkeeping the pipelines share: the anchor
// timestamp (first presentation time seen), an intake flag gating further
// writes, and exactly-once finalization. The mutex serializes Append against
// CloseIntake and Finalize so a stop request from another goroutine never
// overlaps an in-flight write.
type Session struct {
	muxer Muxer

	mu        sync.Mutex
	anchor    time.Duration
	anchored  bool
	lastPTS   time.Duration
	appended  int
	intake    bool
	finalized bool
}

// NewSession wraps m in a fresh, accepting session.
func NewSession(m Muxer) *Session {
	return &Session{muxer: m, intake: true}
}

// Muxer returns the wrapped muxer.
func (s *Session) Muxer() Muxer { return s.muxer }

// Anchored reports whether the first frame has been seen.
func (s *Session) Anchored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchored
}

// Anchor returns the first presentation timestamp seen.
func (s *Session) Anchor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchor
}

// Appended returns the number of frames accepted so far.
func (s *Session) Appended() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appended
}

// Append hands one frame to the muxer with its original timestamp unmodified.
// The first append sets the anchor. Out-of-order timestamps are rejected. The
// session lock is held across the muxer write.
func (s *Session) Append(f frames.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ErrFinalized
	}
	if !s.intake {
		return ErrIntakeClosed
	}
	if s.anchored && f.PTS <= s.lastPTS {
		return errors.Wrapf(ErrTimestampOrder, "%v after %v", f.PTS, s.lastPTS)
	}

	if err := s.muxer.Append(f); err != nil {
		return errors.Wrap(err, "appending frame")
	}
	if !s.anchored {
		s.anchor = f.PTS
		s.anchored = true
	}
	s.lastPTS = f.PTS
	s.appended++
	return nil
}

// CloseIntake stops admitting new frames. Frames already handed to the muxer
// are unaffected; Finalize still flushes them.
func (s *Session) CloseIntake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intake = false
}

// Finalize marks the track finished and flushes the muxer. Finalizing twice
// is an error: the underlying file is immutable after the first call.
func (s *Session) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return ErrFinalized
	}
	s.finalized = true
	s.intake = false
	return s.muxer.Finalize()
}

// Finalized reports whether Finalize has run.
func (s *Session) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}
