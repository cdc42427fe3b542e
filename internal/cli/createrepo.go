package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pulptool/internal/orchestrator"
	"pulptool/internal/pulp"
)

// NewCreateRepositoryCommand builds the manual provisioning command.
func NewCreateRepositoryCommand(app *App) *cobra.Command {
	var (
		name     string
		basePath string
		packages []string
	)

	cmd := &cobra.Command{
		Use:   "create-repository",
		Short: "Create a repository and distribution with an explicit name",
		Long: `Provision a single RPM repository and its distribution outside the
per-build naming scheme, optionally uploading an initial set of
packages into it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, _, err := app.newClient()
			if err != nil {
				return err
			}

			ref, err := client.CreateRepository(ctx, name, basePath, true)
			if err != nil {
				return err
			}

			fmt.Println(successStyle.Render("Repository ready: " + ref.Name))
			fmt.Printf("  Href:      %s\n", ref.Href)
			fmt.Printf("  Base path: %s\n", ref.BasePath)
			if ref.BaseURL != "" {
				fmt.Printf("  Base URL:  %s\n", ref.BaseURL)
			}

			if len(packages) == 0 {
				return nil
			}

			refs := &pulp.RepositoryRefs{RPMs: ref}
			orch := orchestrator.New(orchestrator.Params{
				Client:    client,
				Refs:      refs,
				BuildID:   app.BuildID,
				Namespace: app.Namespace,
			})
			created, err := orch.UploadPackages(ctx, packages)
			if err != nil {
				return err
			}
			fmt.Println(successStyle.Render(fmt.Sprintf("Uploaded %d package(s), %d resource(s) created", len(packages), len(created))))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "repository name")
	cmd.Flags().StringVar(&basePath, "base-path", "", "distribution base path")
	cmd.Flags().StringArrayVar(&packages, "packages", nil, "RPM file to upload into the new repository (repeatable)")
	cobra.CheckErr(cmd.MarkFlagRequired("name"))
	cobra.CheckErr(cmd.MarkFlagRequired("base-path"))

	return cmd
}
