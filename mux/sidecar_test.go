package mux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-annotate/orientation"
)

func TestSidecarRoundTrip(t *testing.T) {
	video := filepath.Join(t.TempDir(), "asset.mov")

	want := Sidecar{
		Timescale:        2398,
		Bitrate:          12_000_000,
		DisplayTransform: orientation.State{Mirrored: true, UpsideDown: true},
	}
	require.NoError(t, WriteSidecar(video, want))

	got, err := ReadSidecar(video)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, "/tmp/a.mov.json", SidecarPath("/tmp/a.mov"))
}

func TestReadSidecar_Missing(t *testing.T) {
	_, err := ReadSidecar(filepath.Join(t.TempDir(), "absent.mov"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}
