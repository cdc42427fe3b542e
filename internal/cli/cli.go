// Package cli wires the pulptool commands: repository provisioning,
// uploads, transfers and the version surface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pulptool/internal/config"
	"pulptool/internal/pulp"
	"pulptool/pkg/logger"
)

// Exit codes of the tool. Interrupt follows the shell convention of
// 128 + SIGINT.
const (
	exitOK        = 0
	exitFailure   = 1
	exitInterrupt = 130
)

// App carries the build metadata and the persistent flag values shared by
// every command.
type App struct {
	BuildVersion string
	BuildCommit  string
	BuildDate    string

	ConfigSource string
	BuildID      string
	Namespace    string
	Debug        bool
}

// Execute runs the CLI and exits the process with the appropriate code.
func Execute(version, commit, date string) {
	app := &App{
		BuildVersion: version,
		BuildCommit:  commit,
		BuildDate:    date,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(app)
	err := root.ExecuteContext(ctx)
	stop()

	switch {
	case err == nil:
		os.Exit(exitOK)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		fmt.Fprintln(os.Stderr, errorStyle.Render("Interrupted"))
		os.Exit(exitInterrupt)
	default:
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(exitFailure)
	}
}

// loadConfig resolves the configuration from the --config value (path or
// base64 blob) or the default location.
func (a *App) loadConfig() (*config.Config, error) {
	source := a.ConfigSource
	if source == "" {
		source = config.DefaultPath
	}
	cfg, err := config.Load(source)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newClient builds the API client from the resolved configuration.
func (a *App) newClient() (*pulp.Client, *config.Config, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	opts := []pulp.Option{}
	if cfg.HasAuth() {
		opts = append(opts, pulp.WithAuth(cfg.CLI.ClientID, cfg.CLI.ClientSecret, cfg.CLI.TokenURL))
	} else {
		logger.Warn("No authentication credentials configured, requests will be anonymous")
	}

	client := pulp.New(cfg.CLI.BaseURL, cfg.CLI.APIRoot, cfg.CLI.Domain, opts...)
	return client, cfg, nil
}

// requireBuildID enforces the --build-id flag for upload flows.
func (a *App) requireBuildID() error {
	if a.BuildID == "" {
		return fmt.Errorf("--build-id is required")
	}
	return nil
}
