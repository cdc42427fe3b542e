package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand(&App{})

	expected := []string{"upload", "upload-files", "transfer", "create-repository", "version"}
	for _, name := range expected {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "missing subcommand %s", name)
	}

	assert.NotNil(t, root.PersistentFlags().Lookup("build-id"))
	assert.NotNil(t, root.PersistentFlags().Lookup("namespace"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
}

func TestRootCommandHelpDoesNotError(t *testing.T) {
	root := NewRootCommand(&App{})
	root.SetArgs([]string{"--help"})

	var output bytes.Buffer
	root.SetOut(&output)
	root.SetErr(&output)

	require.NoError(t, root.Execute())
	assert.Contains(t, output.String(), "upload")
	assert.Contains(t, output.String(), "transfer")
}

func TestVersionCommandOutput(t *testing.T) {
	app := &App{BuildVersion: "1.2.3", BuildCommit: "abc1234", BuildDate: "2026-08-23"}
	root := NewRootCommand(app)
	root.SetArgs([]string{"version"})

	var output bytes.Buffer
	root.SetOut(&output)
	root.SetErr(&output)

	require.NoError(t, root.Execute())
}

func TestUploadRequiresRPMPath(t *testing.T) {
	root := NewRootCommand(&App{})
	root.SetArgs([]string{"upload", "--build-id", "b-1"})

	var output bytes.Buffer
	root.SetOut(&output)
	root.SetErr(&output)

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpm-path")
}

func TestTransferRequiresManifest(t *testing.T) {
	root := NewRootCommand(&App{})
	root.SetArgs([]string{"transfer"})

	var output bytes.Buffer
	root.SetOut(&output)
	root.SetErr(&output)

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest")
}

func TestRequireBuildID(t *testing.T) {
	app := &App{}
	require.Error(t, app.requireBuildID())

	app.BuildID = "team-a/build-42"
	require.NoError(t, app.requireBuildID())
}
