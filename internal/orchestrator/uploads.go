package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"pulptool/internal/pulp"
	"pulptool/pkg/archdetect"
	"pulptool/pkg/logger"
)

// FileSet is the input of the explicit-file-list flow. Files may carry
// in-memory content instead of a path; those require a filename.
type FileSet struct {
	RPMs  []string
	Files []pulp.FileSource
	Logs  []string
	SBOMs []string

	// Arch overrides architecture detection for RPMs and logs.
	Arch string
}

// discoverArchitectures returns the supported architectures that exist as
// subdirectories of rpmPath, in the canonical order.
func discoverArchitectures(rpmPath string) []string {
	var found []string
	for _, arch := range archdetect.SupportedArchitectures {
		dir := filepath.Join(rpmPath, arch)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			found = append(found, arch)
		} else {
			logger.Debug("Skipping architecture, directory does not exist", "arch", arch, "path", dir)
		}
	}
	return found
}

// uploadRPMBatch uploads one architecture's RPMs and registers them with
// the rpm repository in a single modify call, returning the hrefs the
// modify task created. An empty batch short-circuits without the modify
// round trip and without counting.
func (o *Orchestrator) uploadRPMBatch(ctx context.Context, arch string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	logger.Info("Uploading RPMs", "arch", arch, "count", len(paths))
	labels := o.labels(arch)

	contentHrefs := make([]string, 0, len(paths))
	for _, p := range paths {
		href, err := o.client.UploadRPMPackage(ctx, pulp.FileSource{Path: p}, labels)
		if err != nil {
			o.rec.RecordUpload(string(pulp.RepoRPMs), err)
			return nil, fmt.Errorf("upload %s: %w", filepath.Base(p), err)
		}
		contentHrefs = append(contentHrefs, href)
	}

	created, err := o.client.AddContent(ctx, o.refs.RPMs.Href, contentHrefs)
	o.rec.RecordUpload(string(pulp.RepoRPMs), err)
	if err != nil {
		return nil, err
	}

	o.model.AddBatch(pulp.RepoRPMs, created)
	return created, nil
}

// uploadFileUnit uploads one file into the category's file repository and
// records its created resources. For logs the relative path is prefixed
// with the architecture directory.
func (o *Orchestrator) uploadFileUnit(ctx context.Context, category pulp.RepoType, src pulp.FileSource, arch string) error {
	ref := o.refs.ByType(category)

	pathArch := ""
	if category == pulp.RepoLogs {
		pathArch = arch
	}

	taskHref, err := o.client.CreateFileContent(ctx, ref.PRN, src, o.labels(arch), pathArch)
	if err != nil {
		o.rec.RecordUpload(string(category), err)
		return err
	}
	task, err := o.client.WaitForTask(ctx, taskHref, 0)
	if err != nil {
		o.rec.RecordUpload(string(category), err)
		return err
	}
	if task.State != pulp.TaskCompleted {
		err := fmt.Errorf("upload task finished in state %s: %v", task.State, task.Error)
		o.rec.RecordUpload(string(category), err)
		return err
	}

	o.rec.RecordUpload(string(category), nil)
	o.model.AddBatch(category, task.CreatedResources)
	return nil
}

// UploadPackages uploads an explicit set of RPMs grouped by detected
// architecture and returns every created resource href. Used by manual
// repository provisioning; no results document is published.
func (o *Orchestrator) UploadPackages(ctx context.Context, paths []string) ([]string, error) {
	groups, unknown := archdetect.GroupRPMsByArch(paths, "")
	for _, p := range unknown {
		logger.Warn("Could not determine architecture, skipping", "file", filepath.Base(p))
	}

	var created []string
	for arch, rpms := range groups {
		batch, err := o.uploadRPMBatch(ctx, arch, rpms)
		if err != nil {
			return nil, err
		}
		created = append(created, batch...)
	}
	return created, nil
}

// ProcessFileUploads runs the explicit-file-list flow and returns the
// public URL of the published results document. Logs whose architecture
// cannot be determined are skipped with a warning; everything else in the
// set is still processed.
func (o *Orchestrator) ProcessFileUploads(ctx context.Context, set FileSet) (string, error) {
	if len(set.RPMs) > 0 {
		logger.Info("Uploading RPM files", "count", len(set.RPMs))
		groups, unknown := archdetect.GroupRPMsByArch(set.RPMs, set.Arch)
		for _, p := range unknown {
			logger.Warn("Could not determine architecture, skipping", "file", filepath.Base(p))
		}
		for arch, rpms := range groups {
			if _, err := o.uploadRPMBatch(ctx, arch, rpms); err != nil {
				return "", err
			}
		}
	}

	if len(set.Files) > 0 {
		logger.Info("Uploading generic files", "count", len(set.Files))
		for _, src := range set.Files {
			if err := o.uploadFileUnit(ctx, pulp.RepoArtifacts, src, ""); err != nil {
				return "", err
			}
		}
	}

	if len(set.Logs) > 0 {
		logger.Info("Uploading log files", "count", len(set.Logs))
		for _, logPath := range set.Logs {
			arch := set.Arch
			if arch == "" {
				arch = archdetect.ArchFromPath(logPath)
			}
			if arch == "" {
				logger.Warn("Could not determine architecture, skipping", "file", filepath.Base(logPath))
				continue
			}
			if err := o.uploadFileUnit(ctx, pulp.RepoLogs, pulp.FileSource{Path: logPath}, arch); err != nil {
				return "", err
			}
		}
	}

	if len(set.SBOMs) > 0 {
		logger.Info("Uploading SBOM files", "count", len(set.SBOMs))
		for _, sbomPath := range set.SBOMs {
			if err := o.uploadFileUnit(ctx, pulp.RepoSBOM, pulp.FileSource{Path: sbomPath}, ""); err != nil {
				return "", err
			}
		}
	}

	return o.collectResults(ctx)
}
