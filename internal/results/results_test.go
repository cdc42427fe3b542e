package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulptool/internal/pulp"
)

func testRefs() *pulp.RepositoryRefs {
	return &pulp.RepositoryRefs{
		RPMs:      pulp.RepoRef{Name: "b/rpms", BasePath: "b-rpms", BaseURL: "https://cdn/b-rpms"},
		Logs:      pulp.RepoRef{Name: "b/logs", BasePath: "b-logs"},
		SBOM:      pulp.RepoRef{Name: "b/sbom", BasePath: "b-sbom"},
		Artifacts: pulp.RepoRef{Name: "b/artifacts", BasePath: "b-artifacts"},
	}
}

func TestAddBatchCountsOncePerBatch(t *testing.T) {
	m := New("build-42", testRefs())

	m.AddBatch(pulp.RepoRPMs, []string{"/c/a/", "/c/b/"})
	m.AddBatch(pulp.RepoLogs, []string{"/c/l/"})
	m.AddBatch(pulp.RepoSBOM, nil)
	m.AddBatch(pulp.RepoArtifacts, []string{"/c/f/"})

	report := m.Finalize()
	assert.Equal(t, 1, report.Counts.RPMs, "one batch of two RPMs counts once")
	assert.Equal(t, 1, report.Counts.Logs)
	assert.Equal(t, 1, report.Counts.SBOM, "a unit creating no resources still counts")
	assert.Equal(t, 1, report.Counts.Files)
	require.Len(t, report.Artifacts, 4)
	assert.Equal(t, Artifact{PulpHref: "/c/a/"}, report.Artifacts[0])
	assert.Equal(t, Artifact{PulpHref: "/c/b/"}, report.Artifacts[1])
}

func TestModelIsSafeForConcurrentUse(t *testing.T) {
	m := New("build-42", testRefs())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				m.AddBatch(pulp.RepoRPMs, []string{"/c/x/"})
			}
		}()
	}
	wg.Wait()

	report := m.Finalize()
	assert.Equal(t, 400, report.Counts.RPMs)
	assert.Len(t, report.Artifacts, 400)
}

func TestReportJSONShape(t *testing.T) {
	m := New("build-42", testRefs())
	m.SetLabels(map[string]string{"build_id": "build-42", "namespace": "team-a"})
	m.AddBatch(pulp.RepoRPMs, []string{"/c/a/"})
	m.AddError(assert.AnError)

	data, err := m.Finalize().JSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "build-42", decoded["build_id"])
	assert.NotEmpty(t, decoded["invocation_id"])
	assert.Contains(t, decoded, "repositories")
	assert.Contains(t, decoded, "counts")
	assert.Contains(t, decoded, "errors")

	artifacts := decoded["artifacts"].([]any)
	require.Len(t, artifacts, 1)
	assert.Equal(t, map[string]any{"pulp_href": "/c/a/"}, artifacts[0])

	repos := decoded["repositories"].(map[string]any)
	rpms := repos["rpms"].(map[string]any)
	assert.Equal(t, "b/rpms", rpms["name"])
	assert.Equal(t, "https://cdn/b-rpms", rpms["base_url"])
}

func TestInvocationIDsAreUnique(t *testing.T) {
	a := New("build-42", testRefs())
	b := New("build-42", testRefs())
	assert.NotEqual(t, a.InvocationID(), b.InvocationID())
	assert.NotEmpty(t, a.InvocationID())
}

func TestWriteFile(t *testing.T) {
	m := New("build-42", testRefs())
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, m.Finalize().WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}
