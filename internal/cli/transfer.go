package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pulptool/internal/orchestrator"
	"pulptool/internal/transfer"
	"pulptool/pkg/archdetect"
	"pulptool/pkg/logger"
)

// NewTransferCommand builds the manifest-driven download command.
func NewTransferCommand(app *App) *cobra.Command {
	var (
		manifestPath string
		outputDir    string
		contentTypes []string
		archs        []string
		workers      int
		ingest       bool
	)

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Download artifacts listed in a transfer manifest",
		Long: `Resolve each manifest artifact to its published URL, apply the optional
content-type and architecture filters, and download the remainder with a
bounded worker pool. With --ingest the downloaded set is uploaded back
into the per-build repositories.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			manifest, err := transfer.LoadManifest(manifestPath)
			if err != nil {
				return err
			}

			items := manifest.Categorize(transfer.Filter{Types: contentTypes, Archs: archs})
			if len(items) == 0 {
				logger.Warn("No artifacts matched the manifest and filters")
			}

			engine := transfer.NewEngine(transfer.WithWorkers(workers))
			pulled, err := engine.Download(ctx, items, outputDir)
			if err != nil {
				return err
			}
			printTransferSummary(pulled, outputDir)

			if ingest {
				if err := app.ingest(ctx, pulled); err != nil {
					return err
				}
			}

			if _, failed := pulled.Counts(); failed > 0 {
				return fmt.Errorf("%d artifact(s) failed to download", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to the transfer manifest JSON")
	cmd.Flags().StringVar(&outputDir, "output", ".", "directory to download artifacts into")
	cmd.Flags().StringArrayVar(&contentTypes, "content-type", nil, "content type allow-list: rpm, log, sbom (repeatable)")
	cmd.Flags().StringArrayVar(&archs, "arch", nil, "architecture allow-list (repeatable)")
	cmd.Flags().IntVar(&workers, "workers", transfer.DefaultWorkers, "number of concurrent downloads")
	cmd.Flags().BoolVar(&ingest, "ingest", false, "re-upload the downloaded artifacts into the per-build repositories")
	cobra.CheckErr(cmd.MarkFlagRequired("manifest"))

	return cmd
}

// ingest pushes successfully downloaded artifacts back through the upload
// flow, grouped by their detected content type.
func (a *App) ingest(ctx context.Context, pulled *transfer.PulledArtifacts) error {
	if err := a.requireBuildID(); err != nil {
		return err
	}

	client, _, err := a.newClient()
	if err != nil {
		return err
	}
	refs, err := client.SetupRepositories(ctx, a.BuildID)
	if err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.Params{
		Client:    client,
		Refs:      refs,
		BuildID:   a.BuildID,
		Namespace: a.Namespace,
	})

	var set orchestrator.FileSet
	for _, r := range pulled.Completed() {
		switch r.Item.Type {
		case archdetect.TypeRPM:
			set.RPMs = append(set.RPMs, r.Path)
		case archdetect.TypeLog:
			set.Logs = append(set.Logs, r.Path)
		case archdetect.TypeSBOM:
			set.SBOMs = append(set.SBOMs, r.Path)
		}
	}

	resultsURL, err := orch.ProcessFileUploads(ctx, set)
	if err != nil {
		return err
	}
	printUploadSummary(orch.Report(), resultsURL)
	return nil
}
