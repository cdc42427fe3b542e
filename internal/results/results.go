// Package results accumulates upload outcomes across concurrent workers
// and renders the machine-readable results document.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"pulptool/internal/pulp"
)

// Artifact is one created content unit in the results document.
type Artifact struct {
	PulpHref string `json:"pulp_href"`
}

// Counts tracks how many upload batches/units each category processed.
type Counts struct {
	RPMs  int `json:"rpms"`
	Logs  int `json:"logs"`
	SBOM  int `json:"sbom"`
	Files int `json:"files"`
}

// Repo is the published location of one per-build repository.
type Repo struct {
	Name     string `json:"name"`
	BasePath string `json:"base_path,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// Report is the serialized results document.
type Report struct {
	BuildID      string            `json:"build_id"`
	InvocationID string            `json:"invocation_id"`
	Repositories map[string]Repo   `json:"repositories"`
	Counts       Counts            `json:"counts"`
	Artifacts    []Artifact        `json:"artifacts"`
	Errors       []string          `json:"errors,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
}

// Model collects outcomes from upload workers. All methods are safe for
// concurrent use; counts only grow.
type Model struct {
	mu           sync.Mutex
	buildID      string
	invocationID string
	refs         *pulp.RepositoryRefs
	counts       Counts
	artifacts    []Artifact
	errors       []string
	labels       map[string]string
}

// New creates a results model for one invocation. The invocation id is a
// fresh uuid so repeated runs of the same build stay distinguishable.
func New(buildID string, refs *pulp.RepositoryRefs) *Model {
	return &Model{
		buildID:      buildID,
		invocationID: uuid.NewString(),
		refs:         refs,
	}
}

// InvocationID returns the unique id of this run.
func (m *Model) InvocationID() string {
	return m.invocationID
}

// SetLabels records the labels applied to uploaded units.
func (m *Model) SetLabels(labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels = labels
}

// AddBatch records the created hrefs of one processed unit or batch and
// bumps the category count once. A batch of N files still counts as one
// processed unit; a unit whose task created nothing still counts.
func (m *Model) AddBatch(category pulp.RepoType, hrefs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, href := range hrefs {
		m.artifacts = append(m.artifacts, Artifact{PulpHref: href})
	}
	m.bump(category)
}

func (m *Model) bump(category pulp.RepoType) {
	switch category {
	case pulp.RepoRPMs:
		m.counts.RPMs++
	case pulp.RepoLogs:
		m.counts.Logs++
	case pulp.RepoSBOM:
		m.counts.SBOM++
	default:
		m.counts.Files++
	}
}

// AddError records a non-fatal failure for the results document.
func (m *Model) AddError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err.Error())
}

// ArtifactHrefs returns the hrefs recorded so far.
func (m *Model) ArtifactHrefs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	hrefs := make([]string, len(m.artifacts))
	for i, a := range m.artifacts {
		hrefs[i] = a.PulpHref
	}
	return hrefs
}

// Finalize snapshots the model into a Report.
func (m *Model) Finalize() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	repos := map[string]Repo{}
	if m.refs != nil {
		for _, t := range pulp.RepoTypes {
			ref := m.refs.ByType(t)
			repos[string(t)] = Repo{Name: ref.Name, BasePath: ref.BasePath, BaseURL: ref.BaseURL}
		}
	}

	return Report{
		BuildID:      m.buildID,
		InvocationID: m.invocationID,
		Repositories: repos,
		Counts:       m.counts,
		Artifacts:    append([]Artifact(nil), m.artifacts...),
		Errors:       append([]string(nil), m.errors...),
		Labels:       m.labels,
	}
}

// JSON renders the report with indentation for human and machine readers.
func (r Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	return data, nil
}

// WriteFile writes the report to path.
func (r Report) WriteFile(path string) error {
	data, err := r.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	return nil
}
