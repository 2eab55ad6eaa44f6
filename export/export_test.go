package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-annotate/common"
	"github.com/nvr-ai/go-annotate/detect"
	"github.com/nvr-ai/go-annotate/frames"
	"github.com/nvr-ai/go-annotate/geometry"
	"github.com/nvr-ai/go-annotate/orientation"
	"github.com/nvr-ai/go-annotate/trail"
)

// seqSource yields n synthetic frames at a fixed interval.
type seqSource struct {
	n     int
	next  int
	step  time.Duration
	width int
}

func (s *seqSource) Next() (frames.Frame, error) {
	if s.next >= s.n {
		return frames.Frame{}, io.EOF
	}
	s.next++
	return frames.Frame{
		Width:  s.width,
		Height: s.width * 9 / 16,
		PTS:    time.Duration(s.next) * s.step,
	}, nil
}

func (s *seqSource) Width() int   { return s.width }
func (s *seqSource) Height() int  { return s.width * 9 / 16 }
func (s *seqSource) FPS() float64 { return float64(time.Second / s.step) }
func (s *seqSource) Close() error { return nil }

// pollMuxer simulates backpressure: not ready for the first `blockPolls`
// readiness checks of each frame.
type pollMuxer struct {
	path       string
	blockPolls int
	polls      int
	pts        []time.Duration
	finalized  bool
}

func (m *pollMuxer) Ready() bool {
	m.polls++
	return m.polls > m.blockPolls
}

func (m *pollMuxer) Append(f frames.Frame) error {
	m.pts = append(m.pts, f.PTS)
	m.polls = 0
	return nil
}

func (m *pollMuxer) Finalize() error {
	m.finalized = true
	return nil
}

func (m *pollMuxer) Path() string { return m.path }

type passthroughCompositor struct{}

func (passthroughCompositor) Composite(
	f frames.Frame,
	dets []detect.Detection,
	points []trail.Point,
	o orientation.State,
) frames.Frame {
	return f
}

func emptyAdapter() detect.Adapter {
	return detect.AdapterFunc(func(context.Context, frames.Frame) ([]detect.Detection, error) {
		return nil, nil
	})
}

func baseConfig(src frames.Source, m *pollMuxer) Config {
	return Config{
		Source:       src,
		Adapter:      emptyAdapter(),
		Trail:        trail.NewTracker("baseball", 15),
		Compositor:   passthroughCompositor{},
		Muxer:        m,
		PollInterval: time.Millisecond,
		PollTimeout:  50 * time.Millisecond,
	}
}

// TestRun_AllFramesExported verifies the core export property: N source
// frames yield exactly N appends in increasing timestamp order.
func TestRun_AllFramesExported(t *testing.T) {
	const n = 25
	src := &seqSource{n: n, step: 4 * time.Millisecond, width: 1280}
	m := &pollMuxer{path: filepath.Join(t.TempDir(), "out.mov")}

	result, err := Run(context.Background(), baseConfig(src, m))
	require.NoError(t, err)

	assert.Equal(t, n, result.Frames)
	require.Len(t, m.pts, n)
	for i := 1; i < n; i++ {
		assert.Greater(t, m.pts[i], m.pts[i-1])
	}
	assert.True(t, m.finalized)
}

// TestRun_BlocksNotDrops verifies backpressure handling: a temporarily
// unready muxer delays the pass but loses no frames.
func TestRun_BlocksNotDrops(t *testing.T) {
	const n = 10
	src := &seqSource{n: n, step: time.Millisecond, width: 640}
	m := &pollMuxer{path: filepath.Join(t.TempDir(), "out.mov"), blockPolls: 3}

	result, err := Run(context.Background(), baseConfig(src, m))
	require.NoError(t, err)
	assert.Equal(t, n, result.Frames, "bounded waiting must not drop frames")
}

// TestRun_BackpressureTimeout verifies a muxer that never becomes ready
// fails the export instead of livelocking.
func TestRun_BackpressureTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.mov")
	require.NoError(t, os.WriteFile(path, []byte("partial"), 0o644))

	src := &seqSource{n: 5, step: time.Millisecond, width: 640}
	m := &pollMuxer{path: path, blockPolls: 1 << 30}

	_, err := Run(context.Background(), baseConfig(src, m))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrBackpressureTimeout)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "partial output is discarded")
}

// TestRun_TrailResetBeforePass verifies the tracker is empty before the
// first frame is processed.
func TestRun_TrailResetBeforePass(t *testing.T) {
	tracker := trail.NewTracker("baseball", 15)
	tracker.Record([]detect.Detection{{
		Label: "baseball",
		Box:   geometry.Rect{X: 0.4, Y: 0.4, W: 0.2, H: 0.2},
	}})
	require.Equal(t, 1, tracker.Len())

	var lenAtFirstFrame = -1
	adapter := detect.AdapterFunc(func(context.Context, frames.Frame) ([]detect.Detection, error) {
		if lenAtFirstFrame < 0 {
			lenAtFirstFrame = tracker.Len()
		}
		return nil, nil
	})

	src := &seqSource{n: 3, step: time.Millisecond, width: 640}
	m := &pollMuxer{path: filepath.Join(t.TempDir(), "out.mov")}
	cfg := baseConfig(src, m)
	cfg.Trail = tracker
	cfg.Adapter = adapter

	_, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Zero(t, lenAtFirstFrame, "stale trail state must not leak into an export")
}

// TestRun_CancelAborts verifies stopping mid-export discards the partial
// output and reports failure.
func TestRun_CancelAborts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.mov")
	require.NoError(t, os.WriteFile(path, []byte("partial"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	adapter := detect.AdapterFunc(func(context.Context, frames.Frame) ([]detect.Detection, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return nil, nil
	})

	src := &seqSource{n: 100, step: time.Millisecond, width: 640}
	m := &pollMuxer{path: path}
	cfg := baseConfig(src, m)
	cfg.Adapter = adapter

	_, err := Run(ctx, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, len(m.pts), 100)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

// TestRun_TapIsPassive verifies the preview tap observes every frame without
// affecting the export.
func TestRun_TapIsPassive(t *testing.T) {
	const n = 8
	src := &seqSource{n: n, step: time.Millisecond, width: 640}
	m := &pollMuxer{path: filepath.Join(t.TempDir(), "out.mov")}

	tapped := 0
	cfg := baseConfig(src, m)
	cfg.Tap = func(frames.Frame) { tapped++ }

	result, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, n, tapped)
	assert.Equal(t, n, result.Frames)
}
