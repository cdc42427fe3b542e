package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pulptool/internal/orchestrator"
	"pulptool/internal/pulp"
	"pulptool/pkg/logger"
)

// NewUploadFilesCommand builds the explicit-file-list upload command.
func NewUploadFilesCommand(app *App) *cobra.Command {
	var (
		rpms          []string
		files         []string
		logs          []string
		sboms         []string
		arch          string
		parentPackage string
		resultsFile   string
	)

	cmd := &cobra.Command{
		Use:   "upload-files",
		Short: "Upload individual files to the per-build repositories",
		Long: `Upload explicitly listed RPMs, generic files, logs and SBOMs. RPM and
log architectures are detected from paths and filenames unless --arch
overrides them; files whose architecture cannot be determined are
skipped with a warning.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireBuildID(); err != nil {
				return err
			}
			if len(rpms)+len(files)+len(logs)+len(sboms) == 0 {
				return fmt.Errorf("at least one of --rpm, --file, --log or --sbom is required")
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

			set := orchestrator.FileSet{
				RPMs:  rpms,
				Logs:  logs,
				SBOMs: sboms,
				Arch:  arch,
			}
			for _, f := range files {
				set.Files = append(set.Files, pulp.FileSource{Path: f})
			}

			resultsURL, err := orch.ProcessFileUploads(ctx, set)
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

	cmd.Flags().StringArrayVar(&rpms, "rpm", nil, "RPM file to upload (repeatable)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "generic file to upload (repeatable)")
	cmd.Flags().StringArrayVar(&logs, "log", nil, "log file to upload (repeatable)")
	cmd.Flags().StringArrayVar(&sboms, "sbom", nil, "SBOM file to upload (repeatable)")
	cmd.Flags().StringVar(&arch, "arch", "", "architecture override for RPMs and logs")
	cmd.Flags().StringVar(&parentPackage, "parent-package", "", "parent package label applied to uploaded content")
	cmd.Flags().StringVar(&resultsFile, "results-file", "", "write the results JSON to this local path as well")

	return cmd
}
