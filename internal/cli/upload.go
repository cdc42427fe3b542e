package cli

import (
	"github.com/spf13/cobra"

	"pulptool/internal/orchestrator"
	"pulptool/pkg/logger"
)

// NewUploadCommand builds the directory-scan upload command.
func NewUploadCommand(app *App) *cobra.Command {
	var (
		rpmPath       string
		sbomPath      string
		parentPackage string
		resultsFile   string
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload RPMs, logs, and SBOM files from a build directory",
		Long: `Scan a build directory for architecture subdirectories, upload each
architecture's RPMs and logs plus any root-level RPMs and the optional
SBOM, and publish the results document.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireBuildID(); err != nil {
				return err
			}
			ctx := cmd.Context()

			client, _, err := app.newClient()
			if err != nil {
				return err
			}

			refs, err := client.SetupRepositories(ctx, app.BuildID)
			if err != nil {
				return err
			}

			orch := orchestrator.New(orchestrator.Params{
				Client:        client,
				Refs:          refs,
				BuildID:       app.BuildID,
				Namespace:     app.Namespace,
				ParentPackage: parentPackage,
			})

			resultsURL, err := orch.ProcessUploads(ctx, rpmPath, sbomPath)
			report := orch.Report()
			if resultsFile != "" {
				if writeErr := report.WriteFile(resultsFile); writeErr != nil {
					logger.Warn("Failed to write results file", "path", resultsFile, "error", writeErr)
				}
			}
			if err != nil {
				return err
			}

			printUploadSummary(report, resultsURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&rpmPath, "rpm-path", "", "directory containing architecture subdirectories and RPMs")
	cmd.Flags().StringVar(&sbomPath, "sbom", "", "path to an SBOM file to upload")
	cmd.Flags().StringVar(&parentPackage, "parent-package", "", "parent package label applied to uploaded content")
	cmd.Flags().StringVar(&resultsFile, "results-file", "", "write the results JSON to this local path as well")
	cobra.CheckErr(cmd.MarkFlagRequired("rpm-path"))

	return cmd
}
