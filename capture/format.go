// Package capture - capture format negotiation for the annotation pipeline.
//
// The selector inspects the sensor's advertised configurations and picks one
// before a session starts. The policy is rate-first: the configuration must
// achieve the global maximum frame rate, and only then does resolution
// preference break ties.
package capture

import (
	"fmt"
	"math"
	"time"

	"github.com/nvr-ai/go-annotate/common"
)

// Resolution is a width/height pair used for preference ordering.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultPreferredResolutions is the tie-break order applied among
// configurations that achieve the global maximum rate. Landscape 1080p first,
// then its portrait twin, then the 720p pair.
var DefaultPreferredResolutions = []Resolution{
	{Width: 1920, Height: 1080},
	{Width: 1080, Height: 1920},
	{Width: 1280, Height: 720},
	{Width: 720, Height: 1280},
}

// SensorFormat is one configuration advertised by a sensor or decoder: its
// dimensions and the maximum frame rate it can sustain.
type SensorFormat struct {
	Width   int
	Height  int
	MaxRate float64
}

// Area returns the pixel area of the configuration.
func (f SensorFormat) Area() int { return f.Width * f.Height }

// Format is the negotiated capture format for a session.
//
// FrameDuration is the actual achievable frame interval, which may reflect a
// rounded rate. Callers must re-derive the effective rate via FPS() rather
// than trusting the sensor's nominal maximum.
type Format struct {
	Width         int
	Height        int
	FrameDuration time.Duration
}

// FPS returns the effective frame rate derived from the achievable frame
// duration.
func (f Format) FPS() float64 {
	if f.FrameDuration <= 0 {
		return 0
	}
	return float64(time.Second) / float64(f.FrameDuration)
}

// String returns a human-readable summary of the format.
func (f Format) String() string {
	return fmt.Sprintf("%dx%d @ %.2ffps", f.Width, f.Height, f.FPS())
}

// Select chooses one capture format from the available sensor configurations.
//
// The algorithm:
//  1. Compute the global maximum rate across all configurations.
//  2. Restrict to configurations achieving that maximum (ties allowed).
//  3. Among those, the first preferred resolution that matches wins.
//  4. If no preferred resolution achieves the maximum, fall back to the
//     highest-rate configuration, breaking remaining ties by largest area.
//
// Arguments:
//   - available: The sensor configurations to choose from.
//   - preferred: Resolution tie-break order; nil means DefaultPreferredResolutions.
//
// Returns:
//   - Format: The negotiated format.
//   - error: A ConfigurationError if no configuration is available.
func Select(available []SensorFormat, preferred []Resolution) (Format, error) {
	if len(available) == 0 {
		return Format{}, common.Configf(nil, "no capture format available")
	}
	if preferred == nil {
		preferred = DefaultPreferredResolutions
	}

	maxRate := 0.0
	for _, f := range available {
		if f.MaxRate > maxRate {
			maxRate = f.MaxRate
		}
	}

	var fastest []SensorFormat
	for _, f := range available {
		if f.MaxRate == maxRate {
			fastest = append(fastest, f)
		}
	}

	for _, p := range preferred {
		for _, f := range fastest {
			if f.Width == p.Width && f.Height == p.Height {
				return newFormat(f), nil
			}
		}
	}

	// No preferred resolution achieves the maximum rate: largest area wins
	// among the fastest configurations.
	best := fastest[0]
	for _, f := range fastest[1:] {
		if f.Area() > best.Area() {
			best = f
		}
	}
	return newFormat(best), nil
}

func newFormat(f SensorFormat) Format {
	// Round the interval to whole nanoseconds; FPS() re-derives the
	// effective rate from this, not from the nominal maximum.
	d := time.Duration(math.Round(float64(time.Second) / f.MaxRate))
	return Format{Width: f.Width, Height: f.Height, FrameDuration: d}
}
