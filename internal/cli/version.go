package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand reports the build metadata stamped at link time.
func NewVersionCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short, _ := cmd.Flags().GetBool("short"); short {
				fmt.Println(app.BuildVersion)
				return
			}
			fmt.Printf("pulptool %s\n", app.BuildVersion)
			fmt.Printf("Commit: %s\n", app.BuildCommit)
			fmt.Printf("Built: %s\n", app.BuildDate)
		},
	}
	cmd.Flags().BoolP("short", "s", false, "show only the version number")
	return cmd
}
