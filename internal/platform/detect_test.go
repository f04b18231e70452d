package platform

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirsForLinuxWithXDG(t *testing.T) {
	t.Parallel()

	dirs, err := DirsFor("linux", "/home/dev", "/tmp/xdg-data", "/tmp/xdg-config")
	require.NoError(t, err)
	require.Equal(t, "/tmp/xdg-data/voxnote/models", dirs.Models())
	require.Equal(t, "/tmp/xdg-data/voxnote/recordings", dirs.Recordings())
	require.Equal(t, "/tmp/xdg-config/voxnote/preferences.yaml", dirs.Preferences())
}

func TestDirsForLinuxWithoutXDG(t *testing.T) {
	t.Parallel()

	dirs, err := DirsFor("linux", "/home/dev", "", "")
	require.NoError(t, err)
	require.Equal(t, "/home/dev/.local/share/voxnote/models", dirs.Models())
	require.Equal(t, "/home/dev/.local/share/voxnote/voxnote.log", dirs.LogFile())
	require.Equal(t, "/home/dev/.config/voxnote/preferences.yaml", dirs.Preferences())
}

func TestDirsForMacOS(t *testing.T) {
	t.Parallel()

	dirs, err := DirsFor("darwin", "/Users/dev", "", "")
	require.NoError(t, err)
	require.Equal(t, "/Users/dev/Library/Application Support/voxnote/models", dirs.Models())
	require.Equal(t, "/Users/dev/Library/Application Support/voxnote/preferences.yaml", dirs.Preferences())
}

func TestDirsForUnsupportedOS(t *testing.T) {
	t.Parallel()

	_, err := DirsFor("windows", "/Users/dev", "", "")
	require.Error(t, err)
}

func TestDirsForEmptyHome(t *testing.T) {
	t.Parallel()

	_, err := DirsFor("linux", "", "", "")
	require.Error(t, err)
}

func TestResolveModelDirOverride(t *testing.T) {
	t.Parallel()

	dir, err := ResolveModelDir("/opt/models/../models")
	require.NoError(t, err)
	require.Equal(t, filepath.Clean("/opt/models"), dir)
}

func TestEnsureDirCreatesNestedPath(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "a", "b")
	dir, err := EnsureDir(target)
	require.NoError(t, err)
	require.DirExists(t, dir)
}
