package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fmueller/voxnote/internal/record"
)

func newDevicesCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List recording devices and backend diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backends := record.DefaultBackends(runtime.GOOS)
			if len(backends) == 0 {
				return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
			}

			selected := ""
			if backend, err := record.NewBackend(app.backend); err == nil {
				selected = backend.Name()
			}

			out := cmd.OutOrStdout()
			for _, backend := range backends {
				header := "== " + backend.Name() + " =="
				if backend.Name() == selected {
					header += " (selected)"
				}
				fmt.Fprintln(out, header)
				describeBackend(cmd, out, backend)
				fmt.Fprintln(out)
			}

			if selected == "" {
				fmt.Fprintf(out, "No usable backend for --backend %s\n", app.backend)
			}
			return nil
		},
	}
}

func describeBackend(cmd *cobra.Command, out io.Writer, backend record.Backend) {
	if !backend.Available() {
		fmt.Fprintln(out, "not available on PATH")
		return
	}

	devices, err := backend.ListDevices(cmd.Context())
	switch {
	case err != nil:
		fmt.Fprintf(out, "failed to list devices: %v\n", err)
	case devices == "":
		fmt.Fprintln(out, "no output")
	default:
		fmt.Fprintln(out, devices)
	}
}
