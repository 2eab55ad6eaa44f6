package mux

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-annotate/frames"
)

// memMuxer is an in-memory muxer for session bookkeeping tests.
type memMuxer struct {
	ready     bool
	appended  []time.Duration
	finalized bool
}

func (m *memMuxer) Ready() bool { return m.ready }

func (m *memMuxer) Append(f frames.Frame) error {
	m.appended = append(m.appended, f.PTS)
	return nil
}

func (m *memMuxer) Finalize() error {
	m.finalized = true
	return nil
}

func (m *memMuxer) Path() string { return "/tmp/out.mov" }

func TestTimescale(t *testing.T) {
	testCases := []struct {
		name   string
		fps    float64
		expect int
	}{
		{name: "30fps stays at floor", fps: 30, expect: 600},
		{name: "60fps boundary stays at floor", fps: 60, expect: 600},
		{name: "120fps slow motion", fps: 120, expect: 1200},
		{name: "fractional high rate rounds up", fps: 239.76, expect: 2398},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, Timescale(tc.fps))
		})
	}
}

func TestSession_AnchorAndOrder(t *testing.T) {
	m := &memMuxer{ready: true}
	s := NewSession(m)

	require.False(t, s.Anchored())
	require.NoError(t, s.Append(frames.Frame{PTS: 100 * time.Millisecond}))
	assert.True(t, s.Anchored())
	assert.Equal(t, 100*time.Millisecond, s.Anchor(),
		"first presentation time seen becomes the anchor")

	require.NoError(t, s.Append(frames.Frame{PTS: 133 * time.Millisecond}))
	assert.Equal(t, 2, s.Appended())

	err := s.Append(frames.Frame{PTS: 133 * time.Millisecond})
	require.ErrorIs(t, err, ErrTimestampOrder)
	assert.Equal(t, 2, s.Appended())
}

func TestSession_FinalizeOnce(t *testing.T) {
	m := &memMuxer{ready: true}
	s := NewSession(m)
	require.NoError(t, s.Append(frames.Frame{PTS: time.Millisecond}))

	require.NoError(t, s.Finalize())
	assert.True(t, m.finalized)
	assert.True(t, s.Finalized())

	assert.ErrorIs(t, s.Finalize(), ErrFinalized)
	assert.ErrorIs(t, s.Append(frames.Frame{PTS: 2 * time.Millisecond}), ErrFinalized)
}

// overlapMuxer flags any call that enters while another is still inside.
type overlapMuxer struct {
	inside  atomic.Int32
	overlap atomic.Bool
}

func (m *overlapMuxer) enter() {
	if m.inside.Add(1) > 1 {
		m.overlap.Store(true)
	}
	time.Sleep(time.Microsecond)
	m.inside.Add(-1)
}

func (m *overlapMuxer) Ready() bool { return true }

func (m *overlapMuxer) Append(f frames.Frame) error {
	m.enter()
	return nil
}

func (m *overlapMuxer) Finalize() error {
	m.enter()
	return nil
}

func (m *overlapMuxer) Path() string { return "/tmp/out.mov" }

// TestSession_SerializesMuxerCalls verifies the session never lets an append
// overlap a finalize or another append from a different goroutine.
func TestSession_SerializesMuxerCalls(t *testing.T) {
	m := &overlapMuxer{}
	s := NewSession(m)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Append(frames.Frame{PTS: time.Duration(g*1000+i) * time.Millisecond})
			}
		}(g)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(time.Millisecond)
		s.Finalize()
	}()
	wg.Wait()

	assert.False(t, m.overlap.Load(), "muxer calls must not interleave")
	assert.True(t, s.Finalized())
}

func TestSession_CloseIntake(t *testing.T) {
	m := &memMuxer{ready: true}
	s := NewSession(m)
	require.NoError(t, s.Append(frames.Frame{PTS: time.Millisecond}))

	s.CloseIntake()
	assert.ErrorIs(t, s.Append(frames.Frame{PTS: 2 * time.Millisecond}), ErrIntakeClosed)

	// Frames already handed over still reach the file on finalize.
	require.NoError(t, s.Finalize())
	assert.Len(t, m.appended, 1)
	assert.True(t, m.finalized)
}
