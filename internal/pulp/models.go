package pulp

// API endpoints, relative to {base_url}{api_root}{domain}/.
const (
	rpmRepositoryEndpoint    = "api/v3/repositories/rpm/rpm/"
	fileRepositoryEndpoint   = "api/v3/repositories/file/file/"
	rpmDistributionEndpoint  = "api/v3/distributions/rpm/rpm/"
	fileDistributionEndpoint = "api/v3/distributions/file/file/"
	rpmPackageUploadEndpoint = "api/v3/content/rpm/packages/upload/"
	fileContentEndpoint      = "api/v3/content/file/files/"
	contentEndpoint          = "api/v3/content/"
	artifactsEndpoint        = "api/v3/artifacts/"
)

// Task states reported by the API.
const (
	TaskWaiting   = "waiting"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
	TaskCanceled  = "canceled"
)

// Task is a server-side asynchronous operation.
type Task struct {
	PulpHref         string         `json:"pulp_href"`
	State            string         `json:"state"`
	Name             string         `json:"name,omitempty"`
	CreatedResources []string       `json:"created_resources"`
	Error            map[string]any `json:"error,omitempty"`
}

// IsComplete reports whether the task reached a terminal state. A failed
// or canceled task is complete; the caller decides how to interpret it.
func (t *Task) IsComplete() bool {
	switch t.State {
	case TaskCompleted, TaskFailed, TaskCanceled:
		return true
	}
	return false
}

// Repository is a Pulp repository of any content family.
type Repository struct {
	PulpHref          string `json:"pulp_href"`
	PRN               string `json:"prn"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	LatestVersionHref string `json:"latest_version_href,omitempty"`
}

// Distribution publishes a repository's content at a public base path.
type Distribution struct {
	PulpHref   string `json:"pulp_href"`
	PRN        string `json:"prn"`
	Name       string `json:"name"`
	BasePath   string `json:"base_path"`
	BaseURL    string `json:"base_url,omitempty"`
	Repository string `json:"repository,omitempty"`
}

// FileContent is a generic file content unit.
type FileContent struct {
	PulpHref     string `json:"pulp_href"`
	RelativePath string `json:"relative_path"`
	SHA256       string `json:"sha256,omitempty"`
	Artifact     string `json:"artifact,omitempty"`
}

// RPMPackage is an RPM package content unit.
type RPMPackage struct {
	PulpHref string `json:"pulp_href"`
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	Release  string `json:"release,omitempty"`
	Arch     string `json:"arch,omitempty"`
	PkgID    string `json:"pkgId,omitempty"`
}

// Artifact is a stored binary blob with its file location.
type Artifact struct {
	PulpHref string `json:"pulp_href"`
	File     string `json:"file,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Page carries the pagination cursors of a list response so callers can
// page manually.
type Page struct {
	Next     string
	Previous string
	Count    int
}
