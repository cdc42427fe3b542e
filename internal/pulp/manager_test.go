package pulp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFastProvisioning(t *testing.T) {
	t.Helper()
	withFastRetry(t)
	withFastPolling(t)
	prev := distributionWaitTimeout
	distributionWaitTimeout = time.Second
	t.Cleanup(func() { distributionWaitTimeout = prev })
}

func TestSanitizeBuildID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "build-42", "build-42", false},
		{"namespace prefix stripped", "team-a/build-42", "build-42", false},
		{"invalid chars collapse", "build 42!x", "build-42-x", false},
		{"dots kept", "pkg-1.2.3", "pkg-1.2.3", false},
		{"empty", "", "", true},
		{"only invalid", "///", "", true},
		{"whitespace", "  \t ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeBuildID(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidBuildID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCreatedRepository(t *testing.T) {
	direct := []byte(`{"pulp_href":"/r/1/","prn":"prn:rpm.rpm:1","name":"n"}`)
	repo, err := parseCreatedRepository(direct, "op")
	require.NoError(t, err)
	assert.Equal(t, "/r/1/", repo.PulpHref)

	wrapped := []byte(`{"results":[{"pulp_href":"/r/2/","name":"n"}]}`)
	repo, err = parseCreatedRepository(wrapped, "op")
	require.NoError(t, err)
	assert.Equal(t, "/r/2/", repo.PulpHref)

	_, err = parseCreatedRepository([]byte(`{"results":[]}`), "op")
	assert.ErrorIs(t, err, ErrNotFoundAfterCreate)

	_, err = parseCreatedRepository([]byte(`{"results":[{"pulp_href":"/r/1/"},{"pulp_href":"/r/2/"}]}`), "op")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)

	_, err = parseCreatedRepository([]byte(`"just a string"`), "op")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

// fakePulp is a minimal in-memory backend covering the provisioning flow.
type fakePulp struct {
	t *testing.T

	mu            sync.Mutex
	repos         map[string]Repository
	dists         map[string]Distribution
	repoCreates   int32
	distCreates   int32
	taskPollCount int32
}

func newFakePulp(t *testing.T) *fakePulp {
	return &fakePulp{
		t:     t,
		repos: map[string]Repository{},
		dists: map[string]Distribution{},
	}
}

func (f *fakePulp) handler() http.Handler {
	mux := http.NewServeMux()

	listOrCreateRepo := func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			name := r.URL.Query().Get("name")
			var results []Repository
			if repo, ok := f.repos[name]; ok {
				results = append(results, repo)
			}
			writeJSON(f.t, w, http.StatusOK, map[string]any{
				"count": len(results), "next": nil, "previous": nil, "results": results,
			})
		case http.MethodPost:
			atomic.AddInt32(&f.repoCreates, 1)
			var req struct {
				Name string `json:"name"`
			}
			require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
			repo := Repository{
				PulpHref: "/pulp/api/v3/repositories/rpm/rpm/" + req.Name + "/",
				PRN:      "prn:repository:" + req.Name,
				Name:     req.Name,
			}
			f.repos[req.Name] = repo
			writeJSON(f.t, w, http.StatusCreated, repo)
		}
	}
	mux.HandleFunc("/pulp/default/api/v3/repositories/rpm/rpm/", listOrCreateRepo)
	mux.HandleFunc("/pulp/default/api/v3/repositories/file/file/", listOrCreateRepo)

	listOrCreateDist := func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			name := r.URL.Query().Get("name")
			var results []Distribution
			if dist, ok := f.dists[name]; ok {
				results = append(results, dist)
			}
			writeJSON(f.t, w, http.StatusOK, map[string]any{
				"count": len(results), "next": nil, "previous": nil, "results": results,
			})
		case http.MethodPost:
			atomic.AddInt32(&f.distCreates, 1)
			var req struct {
				Name     string `json:"name"`
				BasePath string `json:"base_path"`
			}
			require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
			f.dists[req.Name] = Distribution{
				PulpHref: "/pulp/api/v3/distributions/" + req.BasePath + "/",
				PRN:      "prn:distribution:" + req.Name,
				Name:     req.Name,
				BasePath: req.BasePath,
				BaseURL:  "https://cdn.example.com/" + req.BasePath,
			}
			writeJSON(f.t, w, http.StatusAccepted, map[string]string{"task": "/pulp/api/v3/tasks/dist/"})
		}
	}
	mux.HandleFunc("/pulp/default/api/v3/distributions/rpm/rpm/", listOrCreateDist)
	mux.HandleFunc("/pulp/default/api/v3/distributions/file/file/", listOrCreateDist)

	mux.HandleFunc("/pulp/api/v3/tasks/dist/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.taskPollCount, 1)
		writeJSON(f.t, w, http.StatusOK, Task{
			PulpHref:         "/pulp/api/v3/tasks/dist/",
			State:            TaskCompleted,
			CreatedResources: []string{"/pulp/api/v3/distributions/rpm/rpm/abc/"},
		})
	})

	return mux
}

func TestSetupRepositoriesProvisionsAllTypes(t *testing.T) {
	withFastProvisioning(t)
	fake := newFakePulp(t)
	client, _ := newTestClient(t, fake.handler())

	refs, err := client.SetupRepositories(context.Background(), "team-a/build-42")
	require.NoError(t, err)

	assert.Equal(t, "build-42/rpms", refs.RPMs.Name)
	assert.Equal(t, "build-42-rpms", refs.RPMs.BasePath)
	assert.NotEmpty(t, refs.RPMs.PRN)
	assert.NotEmpty(t, refs.RPMs.Href)
	assert.Equal(t, "https://cdn.example.com/build-42-rpms", refs.RPMs.BaseURL)

	assert.Equal(t, "build-42/logs", refs.Logs.Name)
	assert.Equal(t, "build-42/sbom", refs.SBOM.Name)
	assert.Equal(t, "build-42/artifacts", refs.Artifacts.Name)

	assert.EqualValues(t, 4, atomic.LoadInt32(&fake.repoCreates))
	assert.EqualValues(t, 4, atomic.LoadInt32(&fake.distCreates))
}

func TestSetupRepositoriesIsIdempotent(t *testing.T) {
	withFastProvisioning(t)
	fake := newFakePulp(t)
	client, _ := newTestClient(t, fake.handler())

	first, err := client.SetupRepositories(context.Background(), "build-42")
	require.NoError(t, err)

	second, err := client.SetupRepositories(context.Background(), "build-42")
	require.NoError(t, err)

	assert.Equal(t, first.RPMs.PRN, second.RPMs.PRN)
	assert.Equal(t, first.RPMs.Href, second.RPMs.Href)
	assert.Equal(t, first.Artifacts.PRN, second.Artifacts.PRN)

	// The second call found everything by lookup.
	assert.EqualValues(t, 4, atomic.LoadInt32(&fake.repoCreates))
	assert.EqualValues(t, 4, atomic.LoadInt32(&fake.distCreates))
}

func TestSetupRepositoriesRejectsInvalidBuildID(t *testing.T) {
	withFastProvisioning(t)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an invalid build id")
	}))

	_, err := client.SetupRepositories(context.Background(), "///")
	assert.ErrorIs(t, err, ErrInvalidBuildID)
}

func TestLookupForbiddenAlwaysPropagates(t *testing.T) {
	withFastProvisioning(t)
	var posts int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.AddInt32(&posts, 1)
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"forbidden"}`))
	}))

	_, err := client.SetupRepositories(context.Background(), "build-42")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusForbidden))
	assert.Zero(t, atomic.LoadInt32(&posts), "permission failures must not fall through to create")
}

func TestLookupFailureDegradesToCreate(t *testing.T) {
	withFastProvisioning(t)
	fake := newFakePulp(t)

	// The first lookup returns an unclassifiable failure; creation must
	// still proceed because existence could not be confirmed.
	var lookups int32
	wrapped := fake.handler()
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Query().Get("name") != "" {
			if atomic.AddInt32(&lookups, 1) == 1 {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"detail":"malformed"}`))
				return
			}
		}
		wrapped.ServeHTTP(w, r)
	}))

	refs, err := client.SetupRepositories(context.Background(), "build-42")
	require.NoError(t, err)
	assert.NotEmpty(t, refs.RPMs.Href)
}

func TestStrictLookupPropagatesFailures(t *testing.T) {
	withFastProvisioning(t)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"malformed"}`))
	}), WithStrictLookup())

	_, err := client.SetupRepositories(context.Background(), "build-42")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadRequest))
}

func TestCreateFailureRetriesLookupOnce(t *testing.T) {
	withFastProvisioning(t)

	repo := Repository{PulpHref: "/r/1/", PRN: "prn:r:1", Name: "build-42/rpms"}
	var found atomic.Bool
	mux := http.NewServeMux()
	handle := func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			var results []Repository
			if found.Load() && r.URL.Query().Get("name") == repo.Name {
				results = append(results, repo)
			}
			writeJSON(t, w, http.StatusOK, map[string]any{
				"count": len(results), "next": nil, "previous": nil, "results": results,
			})
		case http.MethodPost:
			// A concurrent invocation won the create race.
			found.Store(true)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"name":["This field must be unique."]}`))
		}
	}
	mux.HandleFunc("/pulp/default/api/v3/repositories/rpm/rpm/", handle)
	client, _ := newTestClient(t, mux)

	got, err := client.ensureRepository(context.Background(), RepoRPMs, "build-42/rpms")
	require.NoError(t, err)
	assert.Equal(t, repo.PulpHref, got.PulpHref)
}
