package cli

import (
	"github.com/spf13/cobra"

	"pulptool/internal/config"
	"pulptool/pkg/logger"
)

// NewRootCommand builds the command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "pulptool",
		Short: "Upload, provision and transfer build artifacts in a Pulp instance",
		Long: `pulptool drives a Pulp content server for build pipelines: it provisions
per-build repositories and distributions, uploads RPMs, logs, SBOMs and
generic files with searchable labels, and transfers published artifacts
back out by manifest.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.ConfigureFromEnv()
			if app.Debug {
				logger.SetLogLevel("debug")
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.BuildID, "build-id", "", "build identifier, optionally prefixed with namespace/")
	flags.StringVar(&app.Namespace, "namespace", "", "namespace label applied to uploaded content")
	flags.StringVar(&app.ConfigSource, "config", "", "config file path or base64-encoded config (default "+config.DefaultPath+")")
	flags.BoolVar(&app.Debug, "debug", false, "enable debug logging")

	root.AddCommand(NewUploadCommand(app))
	root.AddCommand(NewUploadFilesCommand(app))
	root.AddCommand(NewTransferCommand(app))
	root.AddCommand(NewCreateRepositoryCommand(app))
	root.AddCommand(NewVersionCommand(app))

	return root
}
