// Package stats - lightweight per-stage latency tracking for the annotation
// pipeline.
package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nvr-ai/go-annotate/detect"
	"github.com/nvr-ai/go-annotate/frames"
)

// defaultWindow bounds how many samples each stage retains.
const defaultWindow = 600

// Timings aggregates operation durations per pipeline stage. Safe for
// concurrent use.
type Timings struct {
	mu     sync.Mutex
	window int
	stages map[string]*stage
}

type stage struct {
	samples []time.Duration
	total   time.Duration
	min     time.Duration
	max     time.Duration
	count   int64
}

// New creates a Timings tracker keeping at most window samples per stage.
// A non-positive window uses the default.
func New(window int) *Timings {
	if window < 1 {
		window = defaultWindow
	}
	return &Timings{
		window: window,
		stages: make(map[string]*stage),
	}
}

// Observe records one duration for the named stage.
func (t *Timings) Observe(name string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stages[name]
	if !ok {
		s = &stage{min: d, max: d}
		t.stages[name] = s
	}

	s.samples = append(s.samples, d)
	if len(s.samples) > t.window {
		s.total -= s.samples[0]
		s.samples = s.samples[1:]
	}

	s.total += d
	s.count++
	if d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
}

// Time starts timing the named stage and returns the function that stops it.
func (t *Timings) Time(name string) func() {
	start := time.Now()
	return func() {
		t.Observe(name, time.Since(start))
	}
}

// Summary reports avg/min/max latency per stage, one line per stage, sorted
// by name. Empty when nothing was observed.
func (t *Timings) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.stages))
	for name := range t.stages {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		s := t.stages[name]
		if len(s.samples) == 0 {
			continue
		}
		avg := s.total / time.Duration(len(s.samples))
		fmt.Fprintf(&b, "%s: avg=%v min=%v max=%v n=%d\n",
			name,
			avg.Truncate(time.Microsecond),
			s.min.Truncate(time.Microsecond),
			s.max.Truncate(time.Microsecond),
			s.count)
	}
	return b.String()
}

// Instrument wraps a detection adapter so every inference is timed under the
// given stage name.
func Instrument(a detect.Adapter, t *Timings, name string) detect.Adapter {
	return detect.AdapterFunc(func(ctx context.Context, frame frames.Frame) ([]detect.Detection, error) {
		defer t.Time(name)()
		return a.Detect(ctx, frame)
	})
}
