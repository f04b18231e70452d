package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fmueller/voxnote/internal/prefs"
)

func newThemeCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark]",
		Short:     "Show or set the interface theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(prefs.ThemeLight), string(prefs.ThemeDark)},
		RunE: func(cmd *cobra.Command, args []string) error {
			themes, err := app.themeStore()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), themes.Theme())
				return nil
			}

			theme, err := prefs.ParseTheme(args[0])
			if err != nil {
				return err
			}
			if err := themes.SetTheme(theme); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", theme)
			return nil
		},
	}
}
