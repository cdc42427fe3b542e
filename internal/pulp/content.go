package pulp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"time"
)

// uploadWaitTimeout bounds how long content-upload tasks are polled, a
// variable so tests can shrink it.
var uploadWaitTimeout = 10 * time.Minute

// encodeLabels renders pulp_labels for a multipart form field. The API
// expects a JSON object, not repeated form values.
func encodeLabels(labels map[string]string) (string, error) {
	if len(labels) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("failed to encode labels: %w", err)
	}
	return string(data), nil
}

// UploadRPMPackage uploads one RPM with the given labels and returns the
// href of the created package content unit. The upload endpoint may answer
// synchronously with the package or asynchronously with a task; both paths
// resolve to the content href.
func (c *Client) UploadRPMPackage(ctx context.Context, src FileSource, labels map[string]string) (string, error) {
	name, err := src.name()
	if err != nil {
		return "", err
	}
	op := "upload rpm " + name

	labelField, err := encodeLabels(labels)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	fields := map[string]string{"pulp_labels": labelField}
	body, err := c.postMultipart(ctx, c.endpointURL(rpmPackageUploadEndpoint), fields, src, op)
	if err != nil {
		return "", err
	}

	if href := taskHref(body); href != "" {
		task, err := c.WaitForTask(ctx, href, uploadWaitTimeout)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if task.State != TaskCompleted {
			return "", fmt.Errorf("%s: task %s finished in state %s: %v", op, task.PulpHref, task.State, task.Error)
		}
		if len(task.CreatedResources) == 0 {
			return "", fmt.Errorf("%s: %w: task created no resources", op, ErrUnexpectedResponse)
		}
		return task.CreatedResources[0], nil
	}

	var pkg RPMPackage
	if err := c.decode(body, &pkg, op); err != nil {
		return "", err
	}
	if pkg.PulpHref == "" {
		return "", fmt.Errorf("%s: %w: response carries no pulp_href", op, ErrUnexpectedResponse)
	}
	return pkg.PulpHref, nil
}

// CreateFileContent uploads a generic file into a file repository and
// returns the task href for the caller to poll. The relative path is the
// file name, prefixed with the architecture directory when arch is set.
func (c *Client) CreateFileContent(ctx context.Context, repoPRN string, src FileSource, labels map[string]string, arch string) (string, error) {
	name, err := src.name()
	if err != nil {
		return "", err
	}
	op := "upload file " + name

	relativePath := name
	if arch != "" {
		relativePath = path.Join(arch, name)
	}

	labelField, err := encodeLabels(labels)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	fields := map[string]string{
		"relative_path": relativePath,
		"repository":    repoPRN,
		"pulp_labels":   labelField,
	}
	body, err := c.postMultipart(ctx, c.endpointURL(fileContentEndpoint), fields, src, op)
	if err != nil {
		return "", err
	}

	href := taskHref(body)
	if href == "" {
		return "", fmt.Errorf("%s: %w: response carries no task", op, ErrUnexpectedResponse)
	}
	return href, nil
}

// AddContent attaches content units to a repository through its modify
// endpoint, waits for the resulting task, and returns the task's created
// resources. An empty href list is a no-op.
func (c *Client) AddContent(ctx context.Context, repoHref string, contentHrefs []string) ([]string, error) {
	if len(contentHrefs) == 0 {
		return nil, nil
	}
	op := "modify " + repoHref

	payload := map[string]any{"add_content_units": contentHrefs}
	_, href, err := c.PostHref(ctx, repoHref+"modify/", payload)
	if err != nil {
		return nil, err
	}
	if href == "" {
		return nil, fmt.Errorf("%s: %w: response carries no task", op, ErrUnexpectedResponse)
	}

	task, err := c.WaitForTask(ctx, href, uploadWaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if task.State != TaskCompleted {
		return nil, fmt.Errorf("%s: task %s finished in state %s: %v", op, task.PulpHref, task.State, task.Error)
	}
	return task.CreatedResources, nil
}

// FindFileContentByBuildID lists file content units labeled with the given
// build id, following pagination until exhausted.
func (c *Client) FindFileContentByBuildID(ctx context.Context, buildID string) ([]FileContent, error) {
	query := url.Values{}
	query.Set("pulp_label_select", "build_id~"+buildID)

	var all []FileContent
	for {
		items, page, err := List[FileContent](ctx, c, fileContentEndpoint, query)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if page.Next == "" {
			return all, nil
		}
		query = nextPageQuery(page.Next, query)
	}
}

// nextPageQuery carries the offset cursor from a next URL into the query
// for the following request.
func nextPageQuery(next string, query url.Values) url.Values {
	u, err := url.Parse(next)
	if err != nil {
		return query
	}
	merged := url.Values{}
	for key, vals := range query {
		merged[key] = vals
	}
	for key, vals := range u.Query() {
		merged[key] = vals
	}
	return merged
}

// ContentLabels is the subset of a content unit used to resolve download
// locations and labels for pulled artifacts.
type ContentLabels struct {
	PulpHref     string            `json:"pulp_href"`
	RelativePath string            `json:"relative_path"`
	Artifact     string            `json:"artifact,omitempty"`
	Artifacts    map[string]string `json:"artifacts,omitempty"`
	PulpLabels   map[string]string `json:"pulp_labels,omitempty"`
}

// FindContentByHrefs resolves content units by href through the generic
// content endpoint, chunking the __in filter.
func (c *Client) FindContentByHrefs(ctx context.Context, hrefs []string) ([]ContentLabels, error) {
	return ListChunked[ContentLabels](ctx, c, contentEndpoint, "pulp_href__in", hrefs)
}

// FileLocations maps artifact hrefs to their stored file locations,
// chunking the __in filter.
func (c *Client) FileLocations(ctx context.Context, artifactHrefs []string) (map[string]string, error) {
	artifacts, err := ListChunked[Artifact](ctx, c, artifactsEndpoint, "pulp_href__in", artifactHrefs)
	if err != nil {
		return nil, err
	}
	locations := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		locations[a.PulpHref] = a.File
	}
	return locations, nil
}

// UploadArtifact uploads a raw artifact (outside any repository) and
// returns it. Used for publishing the results document.
func (c *Client) UploadArtifact(ctx context.Context, src FileSource) (*Artifact, error) {
	name, err := src.name()
	if err != nil {
		return nil, err
	}
	op := "upload artifact " + name

	body, err := c.postMultipart(ctx, c.endpointURL(artifactsEndpoint), nil, src, op)
	if err != nil {
		return nil, err
	}

	var artifact Artifact
	if err := c.decode(body, &artifact, op); err != nil {
		return nil, err
	}
	return &artifact, nil
}
