// Package session - lifecycle of one capture, record, or export session and
// its output asset.
//
// A session moves Idle -> Configuring -> Active -> Finalizing and ends in
// exactly one of Saved, Denied, or Failed. Terminal phases are not
// re-enterable; another capture needs a new session.
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-annotate/common"
)

// Phase is a session lifecycle phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConfiguring
	PhaseActive
	PhaseFinalizing
	PhaseSaved
	PhaseDenied
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConfiguring:
		return "configuring"
	case PhaseActive:
		return "active"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseSaved:
		return "saved"
	case PhaseDenied:
		return "denied"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends the session.
func (p Phase) Terminal() bool {
	return p == PhaseSaved || p == PhaseDenied || p == PhaseFailed
}

// Mode distinguishes a live capture session from a file export session.
type Mode int

const (
	ModeLive Mode = iota
	ModeFile
)

// Library is the persistence collaborator that takes ownership of a finished
// asset. A permission refusal is reported as common.ErrPermissionDenied,
// which is distinct from a save failure.
type Library interface {
	Save(path string) (id string, err error)
}

// LibraryFunc adapts a function to the Library interface.
type LibraryFunc func(path string) (string, error)

// Save implements Library.
func (f LibraryFunc) Save(path string) (string, error) { return f(path) }

// Completion is the single signal reporting how the session ended. On Saved
// it carries the persisted asset's identifier; on Denied the temporary file
// is preserved and its path reported.
type Completion struct {
	Phase    Phase
	AssetID  string
	TempPath string
	Err      error
}

// Session tracks one capture/record/export lifecycle.
type Session struct {
	id   uuid.UUID
	mode Mode

	mu    sync.Mutex
	phase Phase

	done chan Completion
}

// New creates an Idle session.
func New(mode Mode) *Session {
	return &Session{
		id:   uuid.New(),
		mode: mode,
		done: make(chan Completion, 1),
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Mode returns the session mode.
func (s *Session) Mode() Mode { return s.mode }

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Done delivers the completion signal. Callers must not assume synchronous
// completion: finalize and persistence run after the stop request.
func (s *Session) Done() <-chan Completion { return s.done }

func (s *Session) advance(from, to Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != from {
		return errors.Errorf("cannot move %s -> %s from %s", from, to, s.phase)
	}
	s.phase = to
	return nil
}

// Configure moves Idle -> Configuring (format negotiation, orientation
// resolution, muxer setup).
func (s *Session) Configure() error {
	return s.advance(PhaseIdle, PhaseConfiguring)
}

// Activate moves Configuring -> Active: frames are flowing.
func (s *Session) Activate() error {
	return s.advance(PhaseConfiguring, PhaseActive)
}

// BeginFinalize moves Active -> Finalizing: intake has stopped, the muxer is
// flushing.
func (s *Session) BeginFinalize() error {
	return s.advance(PhaseActive, PhaseFinalizing)
}

// Fail ends the session in Failed from any non-terminal phase. Used for
// configuration errors, muxer construction or finalize failures, and
// backpressure timeouts.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseFailed
	s.mu.Unlock()

	s.done <- Completion{Phase: PhaseFailed, Err: err}
}

// Persist hands the finished temporary asset to the library and ends the
// session. Finalizing -> Saved on success, Denied when permission is
// refused (the temporary file stays in place, its path reported, no
// identifier returned), Failed on any other save error.
func (s *Session) Persist(tempPath string, lib Library) {
	s.mu.Lock()
	if s.phase != PhaseFinalizing {
		phase := s.phase
		s.mu.Unlock()
		s.Fail(errors.Errorf("cannot persist from %s", phase))
		return
	}
	s.mu.Unlock()

	id, err := lib.Save(tempPath)

	s.mu.Lock()
	if s.phase != PhaseFinalizing {
		// A concurrent Fail ended the session while the save ran and its
		// completion already went out.
		s.mu.Unlock()
		return
	}
	switch {
	case err == nil:
		s.phase = PhaseSaved
	case errors.Is(err, common.ErrPermissionDenied):
		s.phase = PhaseDenied
	default:
		s.phase = PhaseFailed
	}
	phase := s.phase
	s.mu.Unlock()

	c := Completion{Phase: phase, Err: err}
	switch phase {
	case PhaseSaved:
		c.AssetID = id
		c.TempPath = tempPath
	case PhaseDenied:
		// The temporary file is preserved for the caller, not deleted.
		c.TempPath = tempPath
	}
	s.done <- c
}
