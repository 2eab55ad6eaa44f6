package mux

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-annotate/orientation"
)

// Sidecar is the container metadata gocv's writer cannot stamp into the file
// itself: the timebase the timing math assumed, the target bitrate, and the
// display transform for playback. It is written next to the asset on finalize
// and travels with it into the library.
type Sidecar struct {
	Timescale        int               `json:"timescale"`
	Bitrate          int               `json:"bitrate,omitempty"`
	DisplayTransform orientation.State `json:"displayTransform"`
}

// SidecarPath returns the metadata path for a video asset.
func SidecarPath(videoPath string) string {
	return videoPath + ".json"
}

// WriteSidecar persists the metadata next to the asset.
func WriteSidecar(videoPath string, s Sidecar) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding sidecar")
	}
	if err := os.WriteFile(SidecarPath(videoPath), data, 0o644); err != nil {
		return errors.Wrapf(err, "writing sidecar for %s", videoPath)
	}
	return nil
}

// ReadSidecar loads the metadata written for an asset.
func ReadSidecar(videoPath string) (Sidecar, error) {
	data, err := os.ReadFile(SidecarPath(videoPath))
	if err != nil {
		return Sidecar{}, errors.Wrapf(err, "reading sidecar for %s", videoPath)
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return Sidecar{}, errors.Wrapf(err, "decoding sidecar for %s", videoPath)
	}
	return s, nil
}
