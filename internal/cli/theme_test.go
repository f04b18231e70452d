package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxnote/internal/platform"
)

func TestThemeCommandRoundTrip(t *testing.T) {
	isolateUserDirs(t)

	stdout, _, err := runCommand(t, []string{"theme"})
	require.NoError(t, err)
	require.Equal(t, "light\n", stdout)

	stdout, _, err = runCommand(t, []string{"theme", "Dark"})
	require.NoError(t, err)
	require.Equal(t, "Theme set to dark\n", stdout)

	stdout, _, err = runCommand(t, []string{"theme"})
	require.NoError(t, err)
	require.Equal(t, "dark\n", stdout)

	dirs, err := platform.ResolveDirs()
	require.NoError(t, err)
	_, err = os.Stat(dirs.Preferences())
	require.NoError(t, err)
}

func TestThemeCommandRejectsUnknownTheme(t *testing.T) {
	isolateUserDirs(t)

	_, _, err := runCommand(t, []string{"theme", "solarized"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown theme")
}
