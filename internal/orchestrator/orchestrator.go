// Package orchestrator drives uploads of RPMs, logs, SBOMs and generic
// files into provisioned repositories, grouped by architecture, and
// publishes the aggregated results document.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pulptool/internal/metrics"
	"pulptool/internal/pulp"
	"pulptool/internal/results"
	"pulptool/pkg/archdetect"
	"pulptool/pkg/logger"
)

const (
	rpmFilePattern = "*.rpm"
	logFilePattern = "*.log"
)

// Params configures an Orchestrator for one invocation.
type Params struct {
	Client        *pulp.Client
	Refs          *pulp.RepositoryRefs
	BuildID       string
	Namespace     string
	ParentPackage string
	BuildDate     string
	Metrics       metrics.Recorder
}

// Orchestrator runs the upload flows against one set of per-build
// repositories. The shared client is used concurrently and never mutated.
type Orchestrator struct {
	client        *pulp.Client
	refs          *pulp.RepositoryRefs
	model         *results.Model
	rec           metrics.Recorder
	buildID       string
	namespace     string
	parentPackage string
	buildDate     string
}

// New creates an orchestrator and its results accumulator. The build date
// defaults to today (UTC) when not supplied.
func New(p Params) *Orchestrator {
	if p.BuildDate == "" {
		p.BuildDate = time.Now().UTC().Format("2006-01-02")
	}
	if p.Metrics == nil {
		p.Metrics = metrics.Nop{}
	}
	o := &Orchestrator{
		client:        p.Client,
		refs:          p.Refs,
		model:         results.New(p.BuildID, p.Refs),
		rec:           p.Metrics,
		buildID:       p.BuildID,
		namespace:     p.Namespace,
		parentPackage: p.ParentPackage,
		buildDate:     p.BuildDate,
	}
	o.model.SetLabels(o.labels(""))
	return o
}

// Report snapshots the results accumulated so far.
func (o *Orchestrator) Report() results.Report {
	return o.model.Finalize()
}

// labels builds the pulp_labels applied to every uploaded unit.
func (o *Orchestrator) labels(arch string) map[string]string {
	l := map[string]string{
		"build_id":   o.buildID,
		"build_date": o.buildDate,
	}
	if arch != "" {
		l["arch"] = arch
	}
	if o.namespace != "" {
		l["namespace"] = o.namespace
	}
	if o.parentPackage != "" {
		l["parent_package"] = o.parentPackage
	}
	return l
}

// ProcessUploads runs the directory-scan flow: per-architecture RPM and
// log uploads, root-level RPMs grouped by detected architecture, the
// optional SBOM, and finally the published results document. The returned
// URL points at the uploaded results JSON.
func (o *Orchestrator) ProcessUploads(ctx context.Context, rpmPath, sbomPath string) (string, error) {
	if rpmPath == "" {
		return "", fmt.Errorf("rpm path is required")
	}

	seen, err := o.processArchitectureUploads(ctx, rpmPath)
	if err != nil {
		return "", err
	}

	if err := o.processRootRPMs(ctx, rpmPath, seen); err != nil {
		return "", err
	}

	if sbomPath != "" {
		if err := o.uploadFileUnit(ctx, pulp.RepoSBOM, pulp.FileSource{Path: sbomPath}, ""); err != nil {
			return "", err
		}
	} else {
		logger.Debug("No SBOM path provided, skipping SBOM upload")
	}

	return o.collectResults(ctx)
}

// processArchitectureUploads fans out one worker per discovered
// architecture subdirectory, each uploading that architecture's RPMs and
// logs. The first failure aborts the whole stage. The returned set holds
// every RPM path the stage uploaded.
func (o *Orchestrator) processArchitectureUploads(ctx context.Context, rpmPath string) (map[string]bool, error) {
	archs := discoverArchitectures(rpmPath)
	if len(archs) == 0 {
		logger.Warn("No architecture directories found", "path", rpmPath)
		return map[string]bool{}, nil
	}

	logger.Info("Processing architectures", "path", rpmPath, "architectures", strings.Join(archs, ", "))

	seen := make(map[string]bool)
	var seenMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, arch := range archs {
		g.Go(func() error {
			dir := filepath.Join(rpmPath, arch)
			rpms, err := filepath.Glob(filepath.Join(dir, rpmFilePattern))
			if err != nil {
				return fmt.Errorf("architecture %s: %w", arch, err)
			}
			if _, err := o.uploadRPMBatch(gctx, arch, rpms); err != nil {
				return fmt.Errorf("architecture %s: %w", arch, err)
			}

			logs, err := filepath.Glob(filepath.Join(dir, logFilePattern))
			if err != nil {
				return fmt.Errorf("architecture %s: %w", arch, err)
			}
			for _, logPath := range logs {
				if err := o.uploadFileUnit(gctx, pulp.RepoLogs, pulp.FileSource{Path: logPath}, arch); err != nil {
					return fmt.Errorf("architecture %s: %w", arch, err)
				}
			}

			seenMu.Lock()
			for _, p := range rpms {
				seen[p] = true
			}
			seenMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return seen, nil
}

// processRootRPMs globs the root of the rpm path for RPMs living outside
// any architecture subdirectory (source and noarch packages often do) and
// uploads them grouped by detected architecture. Paths already uploaded by
// the architecture stage are skipped so unusual layouts cannot
// double-upload a file.
func (o *Orchestrator) processRootRPMs(ctx context.Context, rpmPath string, seen map[string]bool) error {
	matches, err := filepath.Glob(filepath.Join(rpmPath, rpmFilePattern))
	if err != nil {
		return err
	}

	var rootRPMs []string
	for _, p := range matches {
		if seen[p] {
			continue
		}
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			continue
		}
		rootRPMs = append(rootRPMs, p)
	}
	if len(rootRPMs) == 0 {
		return nil
	}

	logger.Info("Uploading root-level RPMs by detected architecture", "count", len(rootRPMs), "path", rpmPath)
	groups, unknown := archdetect.GroupRPMsByArch(rootRPMs, "")
	for _, p := range unknown {
		logger.Warn("Could not determine architecture, skipping", "file", filepath.Base(p))
	}
	for arch, rpms := range groups {
		if _, err := o.uploadRPMBatch(ctx, arch, rpms); err != nil {
			return err
		}
	}
	return nil
}

// collectResults finalizes the results model, publishes the JSON document
// into the artifacts repository, and returns its public URL.
func (o *Orchestrator) collectResults(ctx context.Context) (string, error) {
	report := o.model.Finalize()
	data, err := report.JSON()
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("results-%s.json", o.model.InvocationID())
	src := pulp.FileSource{Content: data, Filename: name}

	taskHref, err := o.client.CreateFileContent(ctx, o.refs.Artifacts.PRN, src, o.labels(""), "")
	if err != nil {
		return "", fmt.Errorf("publish results: %w", err)
	}
	task, err := o.client.WaitForTask(ctx, taskHref, 0)
	if err != nil {
		return "", fmt.Errorf("publish results: %w", err)
	}
	if task.State != pulp.TaskCompleted {
		return "", fmt.Errorf("publish results: task finished in state %s: %v", task.State, task.Error)
	}

	base := strings.TrimSuffix(o.refs.Artifacts.BaseURL, "/")
	if base == "" {
		logger.Warn("Artifacts distribution has no base URL, returning relative results path")
		return name, nil
	}
	return base + "/" + name, nil
}
