package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fmueller/voxnote/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "voxnote %s\n", version.Current())
			return nil
		},
	}
}
