package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxnote/internal/cli"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"voxnote\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 1 arg(s), received 0")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts at most 1 arg(s), received 2")))
	require.True(t, shouldPrintUsageHint(errors.New("invalid argument \"x\" for \"--silence-threshold-dbfs\" flag")))
	require.False(t, shouldPrintUsageHint(errors.New("Failed to load model base: offline")))
	require.False(t, shouldPrintUsageHint(errors.New("Microphone unavailable: device busy")))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "voxnote", helpHintTarget(root, nil))
	require.Equal(t, "voxnote", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "voxnote", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "voxnote transcribe", helpHintTarget(root, []string{"transcribe"}))
	require.Equal(t, "voxnote theme", helpHintTarget(root, []string{"theme", "dark"}))
}
