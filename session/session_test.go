package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-annotate/common"
	"github.com/nvr-ai/go-annotate/mux"
)

func finalizing(t *testing.T) *Session {
	t.Helper()
	s := New(ModeLive)
	require.NoError(t, s.Configure())
	require.NoError(t, s.Activate())
	require.NoError(t, s.BeginFinalize())
	return s
}

func TestSession_HappyPath(t *testing.T) {
	s := finalizing(t)
	assert.Equal(t, PhaseFinalizing, s.Phase())

	s.Persist("/tmp/asset.mov", LibraryFunc(func(path string) (string, error) {
		return "asset-123", nil
	}))

	c := <-s.Done()
	assert.Equal(t, PhaseSaved, c.Phase)
	assert.Equal(t, "asset-123", c.AssetID)
	require.NoError(t, c.Err)
	assert.Equal(t, PhaseSaved, s.Phase())
	assert.True(t, s.Phase().Terminal())
}

func TestSession_InvalidTransitions(t *testing.T) {
	s := New(ModeFile)
	assert.Error(t, s.Activate(), "cannot activate before configuring")
	assert.Error(t, s.BeginFinalize())

	require.NoError(t, s.Configure())
	assert.Error(t, s.Configure(), "configuring twice")
}

// TestSession_Denied verifies the denial path: distinct terminal phase, no
// identifier, temp path reported and file preserved.
func TestSession_Denied(t *testing.T) {
	dir := t.TempDir()
	temp := filepath.Join(dir, "pending.mov")
	require.NoError(t, os.WriteFile(temp, []byte("asset"), 0o644))

	lib := NewFSLibrary(filepath.Join(dir, "library"))
	lib.Allowed = false

	s := finalizing(t)
	s.Persist(temp, lib)

	c := <-s.Done()
	assert.Equal(t, PhaseDenied, c.Phase)
	assert.Empty(t, c.AssetID)
	assert.Equal(t, temp, c.TempPath)
	assert.ErrorIs(t, c.Err, common.ErrPermissionDenied)

	_, err := os.Stat(temp)
	assert.NoError(t, err, "temporary file must survive a denial")
}

func TestSession_SaveFailureIsFailed(t *testing.T) {
	s := finalizing(t)
	s.Persist("/tmp/gone.mov", LibraryFunc(func(string) (string, error) {
		return "", errors.New("disk full")
	}))

	c := <-s.Done()
	assert.Equal(t, PhaseFailed, c.Phase)
	assert.Error(t, c.Err)
	assert.NotErrorIs(t, c.Err, common.ErrPermissionDenied)
}

func TestSession_FailFromAnyPhase(t *testing.T) {
	s := New(ModeLive)
	require.NoError(t, s.Configure())

	s.Fail(errors.New("no usable capture format"))
	c := <-s.Done()
	assert.Equal(t, PhaseFailed, c.Phase)

	// Terminal phases are not re-enterable.
	assert.Error(t, s.Activate())
	s.Fail(errors.New("second failure"))
	select {
	case <-s.Done():
		t.Fatal("terminal session must not emit a second completion")
	default:
	}
}

// TestSession_FailDuringSave verifies a session failed mid-save stays Failed:
// the late save result neither overwrites the terminal phase nor emits a
// second completion.
func TestSession_FailDuringSave(t *testing.T) {
	s := finalizing(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	persisted := make(chan struct{})
	go func() {
		s.Persist("/tmp/asset.mov", LibraryFunc(func(path string) (string, error) {
			close(entered)
			<-release
			return "asset-123", nil
		}))
		close(persisted)
	}()

	<-entered
	s.Fail(errors.New("muxer flush failed"))
	close(release)
	<-persisted

	c := <-s.Done()
	assert.Equal(t, PhaseFailed, c.Phase)
	assert.Equal(t, PhaseFailed, s.Phase(), "save success must not revive the session")

	select {
	case extra := <-s.Done():
		t.Fatalf("unexpected second completion: %+v", extra)
	default:
	}
}

func TestFSLibrary_SaveMovesAsset(t *testing.T) {
	dir := t.TempDir()
	temp := filepath.Join(dir, "pending.mov")
	require.NoError(t, os.WriteFile(temp, []byte("asset"), 0o644))

	lib := NewFSLibrary(filepath.Join(dir, "library"))
	id, err := lib.Save(temp)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = os.Stat(temp)
	assert.True(t, os.IsNotExist(err), "temp file is moved, not copied")
	_, err = os.Stat(filepath.Join(dir, "library", id+".mov"))
	assert.NoError(t, err)
}

// TestFSLibrary_SidecarTravelsWithAsset verifies the metadata written at
// finalize follows its asset into the library.
func TestFSLibrary_SidecarTravelsWithAsset(t *testing.T) {
	dir := t.TempDir()
	temp := filepath.Join(dir, "pending.mov")
	require.NoError(t, os.WriteFile(temp, []byte("asset"), 0o644))
	require.NoError(t, mux.WriteSidecar(temp, mux.Sidecar{Timescale: 1200}))

	lib := NewFSLibrary(filepath.Join(dir, "library"))
	id, err := lib.Save(temp)
	require.NoError(t, err)

	saved := filepath.Join(dir, "library", id+".mov")
	meta, err := mux.ReadSidecar(saved)
	require.NoError(t, err)
	assert.Equal(t, 1200, meta.Timescale)

	_, err = os.Stat(mux.SidecarPath(temp))
	assert.True(t, os.IsNotExist(err), "sidecar does not linger at the temp path")
}

func TestSession_UniqueIDs(t *testing.T) {
	assert.NotEqual(t, New(ModeLive).ID(), New(ModeLive).ID())
}
