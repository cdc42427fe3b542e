package pulp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pulptool/pkg/logger"
)

// distributionWaitTimeout bounds how long distribution-create tasks are
// polled, a variable so tests can shrink it.
var distributionWaitTimeout = 5 * time.Minute

// RepoType names one of the per-build repositories.
type RepoType string

const (
	RepoRPMs      RepoType = "rpms"
	RepoLogs      RepoType = "logs"
	RepoSBOM      RepoType = "sbom"
	RepoArtifacts RepoType = "artifacts"
)

// RepoTypes lists every repository type a build gets, in provisioning order.
var RepoTypes = []RepoType{RepoRPMs, RepoLogs, RepoSBOM, RepoArtifacts}

// usesRPMFamily reports whether the type lives in the rpm repository and
// distribution family rather than the file family.
func (t RepoType) usesRPMFamily() bool {
	return t == RepoRPMs
}

func (t RepoType) repositoryEndpoint() string {
	if t.usesRPMFamily() {
		return rpmRepositoryEndpoint
	}
	return fileRepositoryEndpoint
}

func (t RepoType) distributionEndpoint() string {
	if t.usesRPMFamily() {
		return rpmDistributionEndpoint
	}
	return fileDistributionEndpoint
}

// RepoRef identifies one provisioned repository and its distribution.
type RepoRef struct {
	Name     string
	PRN      string
	Href     string
	BasePath string
	BaseURL  string
}

// RepositoryRefs holds the full set of per-build repositories.
type RepositoryRefs struct {
	RPMs      RepoRef
	Logs      RepoRef
	SBOM      RepoRef
	Artifacts RepoRef
}

// ByType returns the ref for a repository type.
func (r *RepositoryRefs) ByType(t RepoType) RepoRef {
	switch t {
	case RepoRPMs:
		return r.RPMs
	case RepoLogs:
		return r.Logs
	case RepoSBOM:
		return r.SBOM
	default:
		return r.Artifacts
	}
}

func (r *RepositoryRefs) setByType(t RepoType, ref RepoRef) {
	switch t {
	case RepoRPMs:
		r.RPMs = ref
	case RepoLogs:
		r.Logs = ref
	case RepoSBOM:
		r.SBOM = ref
	default:
		r.Artifacts = ref
	}
}

var buildIDInvalidChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeBuildID normalizes a build id into a repository name segment.
// An optional "namespace/" prefix is stripped; remaining characters outside
// [A-Za-z0-9._-] collapse to "-".
func SanitizeBuildID(buildID string) (string, error) {
	trimmed := strings.TrimSpace(buildID)
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	sanitized := buildIDInvalidChars.ReplaceAllString(trimmed, "-")
	sanitized = strings.Trim(sanitized, "-.")
	if sanitized == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidBuildID, buildID)
	}
	return sanitized, nil
}

// lookupOutcome classifies a name lookup: the resource exists, it does not,
// or the lookup itself could not be completed.
type lookupOutcome int

const (
	lookupFound lookupOutcome = iota
	lookupNotFound
	lookupFailed
)

// classifyLookupErr decides whether a lookup failure can be degraded to
// "not found". Auth failures never are: proceeding to create with broken
// credentials would only produce a second confusing failure.
func (c *Client) classifyLookupErr(err error, op string) (lookupOutcome, error) {
	if IsStatus(err, 401) || IsStatus(err, 403) {
		return lookupFailed, err
	}
	if c.strictLookup {
		return lookupFailed, err
	}
	logger.Warn("Lookup failed, assuming resource does not exist", "operation", op, "error", err)
	return lookupNotFound, nil
}

func (c *Client) lookupRepository(ctx context.Context, endpoint, name string) (*Repository, lookupOutcome, error) {
	query := url.Values{}
	query.Set("name", name)
	repos, _, err := List[Repository](ctx, c, endpoint, query)
	if err != nil {
		outcome, err := c.classifyLookupErr(err, "lookup repository "+name)
		return nil, outcome, err
	}
	for i := range repos {
		if repos[i].Name == name {
			return &repos[i], lookupFound, nil
		}
	}
	return nil, lookupNotFound, nil
}

func (c *Client) lookupDistribution(ctx context.Context, endpoint, name string) (*Distribution, lookupOutcome, error) {
	query := url.Values{}
	query.Set("name", name)
	dists, _, err := List[Distribution](ctx, c, endpoint, query)
	if err != nil {
		outcome, err := c.classifyLookupErr(err, "lookup distribution "+name)
		return nil, outcome, err
	}
	for i := range dists {
		if dists[i].Name == name {
			return &dists[i], lookupFound, nil
		}
	}
	return nil, lookupNotFound, nil
}

// parseCreatedRepository accepts both response shapes the create endpoint
// produces: a direct repository object, or a {"results": [...]} wrapper.
func parseCreatedRepository(body []byte, op string) (*Repository, error) {
	var direct Repository
	if err := json.Unmarshal(body, &direct); err == nil && direct.PulpHref != "" {
		return &direct, nil
	}

	var wrapped struct {
		Results []Repository `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.Results == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnexpectedResponse)
	}
	switch len(wrapped.Results) {
	case 0:
		return nil, fmt.Errorf("%s: %w", op, ErrNotFoundAfterCreate)
	case 1:
		return &wrapped.Results[0], nil
	default:
		return nil, fmt.Errorf("%s: %w: %d results for one create", op, ErrUnexpectedResponse, len(wrapped.Results))
	}
}

// ensureRepository finds or creates a repository by name. On a create
// failure the lookup runs once more so a concurrent invocation that won
// the create race converges on the same repository.
func (c *Client) ensureRepository(ctx context.Context, repoType RepoType, name string) (*Repository, error) {
	endpoint := repoType.repositoryEndpoint()

	repo, outcome, err := c.lookupRepository(ctx, endpoint, name)
	if outcome == lookupFailed {
		return nil, err
	}
	if outcome == lookupFound {
		logger.Debug("Repository exists", "name", name)
		return repo, nil
	}

	logger.Info("Creating repository", "name", name, "type", string(repoType))
	payload := map[string]any{"name": name, "description": "Repository for " + name}
	body, task, err := c.Post(ctx, endpoint, payload)
	if err != nil {
		if repo, outcome, lookupErr := c.lookupRepository(ctx, endpoint, name); lookupErr == nil && outcome == lookupFound {
			logger.Info("Repository appeared after failed create", "name", name)
			return repo, nil
		}
		return nil, err
	}

	if task != "" {
		done, err := c.WaitForTask(ctx, task, distributionWaitTimeout)
		if err != nil {
			return nil, fmt.Errorf("create repository %s: %w", name, err)
		}
		if done.State != TaskCompleted {
			return nil, fmt.Errorf("create repository %s: task finished in state %s: %v", name, done.State, done.Error)
		}
		if len(done.CreatedResources) == 0 {
			return nil, fmt.Errorf("create repository %s: %w", name, ErrNotFoundAfterCreate)
		}
		var created Repository
		if err := c.Get(ctx, done.CreatedResources[0], &created); err != nil {
			return nil, err
		}
		return &created, nil
	}

	return parseCreatedRepository(body, "create repository "+name)
}

// ensureDistribution finds or creates the distribution exposing a
// repository at basePath and returns its public base URL. Creation is
// asynchronous; when the wait fails the distribution may still complete
// server-side, so the error degrades to an empty base URL.
func (c *Client) ensureDistribution(ctx context.Context, repoType RepoType, name, basePath, repoHref string) (string, error) {
	endpoint := repoType.distributionEndpoint()

	dist, outcome, err := c.lookupDistribution(ctx, endpoint, name)
	if outcome == lookupFailed {
		return "", err
	}
	if outcome == lookupFound {
		logger.Debug("Distribution exists", "name", name)
		return dist.BaseURL, nil
	}

	logger.Info("Creating distribution", "name", name, "base_path", basePath)
	payload := map[string]any{
		"name":       name,
		"base_path":  basePath,
		"repository": repoHref,
	}
	_, task, err := c.Post(ctx, endpoint, payload)
	if err != nil {
		if dist, outcome, lookupErr := c.lookupDistribution(ctx, endpoint, name); lookupErr == nil && outcome == lookupFound {
			logger.Info("Distribution appeared after failed create", "name", name)
			return dist.BaseURL, nil
		}
		return "", err
	}
	if task == "" {
		logger.Warn("Distribution create returned no task", "name", name)
		return "", nil
	}

	done, err := c.WaitForTask(ctx, task, distributionWaitTimeout)
	if err != nil || done == nil || done.State != TaskCompleted {
		logger.Warn("Distribution not confirmed, continuing without base URL", "name", name, "error", err)
		return "", nil
	}

	if dist, outcome, err := c.lookupDistribution(ctx, endpoint, name); err == nil && outcome == lookupFound {
		return dist.BaseURL, nil
	}
	return "", nil
}

// ensureRepoAndDistribution provisions one repository type for a build.
func (c *Client) ensureRepoAndDistribution(ctx context.Context, repoType RepoType, buildName string) (RepoRef, error) {
	if buildName == "" {
		return RepoRef{}, fmt.Errorf("%w: empty build name", ErrInvalidConfiguration)
	}
	fullName := buildName + "/" + string(repoType)
	basePath := strings.ReplaceAll(fullName, "/", "-")

	repo, err := c.ensureRepository(ctx, repoType, fullName)
	if err != nil {
		return RepoRef{}, err
	}

	baseURL, err := c.ensureDistribution(ctx, repoType, fullName, basePath, repo.PulpHref)
	if err != nil {
		return RepoRef{}, err
	}

	return RepoRef{
		Name:     fullName,
		PRN:      repo.PRN,
		Href:     repo.PulpHref,
		BasePath: basePath,
		BaseURL:  baseURL,
	}, nil
}

// SetupRepositories provisions the four per-build repositories and their
// distributions concurrently. The first failure cancels the remaining
// provisioning; the result is complete or the call errors, never partial.
func (c *Client) SetupRepositories(ctx context.Context, buildID string) (*RepositoryRefs, error) {
	buildName, err := SanitizeBuildID(buildID)
	if err != nil {
		return nil, err
	}

	logger.Info("Setting up repositories", "build", buildName)

	var refs RepositoryRefs
	g, gctx := errgroup.WithContext(ctx)
	for _, repoType := range RepoTypes {
		g.Go(func() error {
			ref, err := c.ensureRepoAndDistribution(gctx, repoType, buildName)
			if err != nil {
				return fmt.Errorf("setup %s: %w", repoType, err)
			}
			refs.setByType(repoType, ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &refs, nil
}

// CreateRepository provisions a single repository and distribution with an
// explicit name and base path, for operator-driven setup outside the
// per-build naming scheme. The packages flag selects the rpm family.
func (c *Client) CreateRepository(ctx context.Context, name, basePath string, packages bool) (RepoRef, error) {
	if name == "" || basePath == "" {
		return RepoRef{}, fmt.Errorf("%w: name and base path are required", ErrInvalidConfiguration)
	}

	repoType := RepoArtifacts
	if packages {
		repoType = RepoRPMs
	}

	repo, err := c.ensureRepository(ctx, repoType, name)
	if err != nil {
		return RepoRef{}, err
	}
	baseURL, err := c.ensureDistribution(ctx, repoType, name, basePath, repo.PulpHref)
	if err != nil {
		return RepoRef{}, err
	}

	return RepoRef{
		Name:     name,
		PRN:      repo.PRN,
		Href:     repo.PulpHref,
		BasePath: basePath,
		BaseURL:  baseURL,
	}, nil
}
