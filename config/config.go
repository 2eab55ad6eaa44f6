// Package config - static session configuration.
//
// Configuration is read once before a session starts and never mutated while
// frames are flowing. Fields omitted from the JSON file keep their defaults,
// so partial configs are safe.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-annotate/capture"
	"github.com/nvr-ai/go-annotate/trail"
)

// maxFileSize caps config files at 1MB.
const maxFileSize = 1 * 1024 * 1024

// Config holds the recognized session options.
type Config struct {
	// TrackedClass is the single detection label that is tracked and drawn.
	TrackedClass string `json:"tracked_class"`
	// MaxTrailLength bounds the trail history; minimum 1.
	MaxTrailLength int `json:"max_trail_length"`
	// PreferredResolutions is the format selector tie-break order.
	PreferredResolutions []capture.Resolution `json:"preferred_resolutions"`
	// TargetBitrate is the output encoder bitrate in bits per second.
	TargetBitrate int `json:"target_bitrate"`
	// ModelPath points at the ONNX detector model.
	ModelPath string `json:"model_path"`
	// ConfidenceThreshold drops detections below this score.
	ConfidenceThreshold float32 `json:"confidence_threshold"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TrackedClass:         "baseball",
		MaxTrailLength:       trail.DefaultMaxLength,
		PreferredResolutions: capture.DefaultPreferredResolutions,
		TargetBitrate:        12_000_000,
		ModelPath:            "models/baseball.onnx",
		ConfidenceThreshold:  0.25,
	}
}

// Load reads a JSON config file over the defaults. The path must carry a
// .json extension and stay under the size cap.
func Load(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, errors.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, errors.Wrap(err, "stat config file")
	}
	if info.Size() > maxFileSize {
		return cfg, errors.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, errors.Wrap(err, "read config file")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config file")
	}

	return cfg, cfg.Validate()
}

// Validate rejects unusable option values.
func (c Config) Validate() error {
	if c.TrackedClass == "" {
		return errors.New("tracked_class must not be empty")
	}
	if c.MaxTrailLength < 1 {
		return errors.Errorf("max_trail_length must be at least 1, got %d", c.MaxTrailLength)
	}
	if c.TargetBitrate < 0 {
		return errors.Errorf("target_bitrate must not be negative, got %d", c.TargetBitrate)
	}
	for _, r := range c.PreferredResolutions {
		if r.Width <= 0 || r.Height <= 0 {
			return errors.Errorf("invalid preferred resolution %dx%d", r.Width, r.Height)
		}
	}
	return nil
}
