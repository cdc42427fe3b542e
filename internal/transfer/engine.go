package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"pulptool/internal/metrics"
	"pulptool/pkg/logger"
)

// DefaultWorkers is the download pool size when none is configured.
const DefaultWorkers = 4

// Download retry tunables, variables so tests can shrink them.
var (
	downloadRetryMax     = 3
	downloadRetryWaitMin = 1 * time.Second
	downloadRetryWaitMax = 15 * time.Second
)

// Result is the outcome of one artifact download.
type Result struct {
	Item Item
	Path string
	Size int64
	Err  error
}

// PulledArtifacts collects download outcomes across workers. One
// artifact's failure never cancels the others; the report carries both
// sides.
type PulledArtifacts struct {
	mu        sync.Mutex
	completed []Result
	failed    []Result
}

func (p *PulledArtifacts) add(r Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.Err != nil {
		p.failed = append(p.failed, r)
		return
	}
	p.completed = append(p.completed, r)
}

// Completed returns the successful downloads.
func (p *PulledArtifacts) Completed() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Result(nil), p.completed...)
}

// Failed returns the failed downloads.
func (p *PulledArtifacts) Failed() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Result(nil), p.failed...)
}

// Counts returns the completed and failed totals.
func (p *PulledArtifacts) Counts() (completed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.completed), len(p.failed)
}

// Bytes returns the total size of the completed downloads.
func (p *PulledArtifacts) Bytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total int64
	for _, r := range p.completed {
		total += r.Size
	}
	return total
}

// Engine downloads manifest artifacts with a bounded worker pool. The
// underlying HTTP client is shared across workers.
type Engine struct {
	http    *retryablehttp.Client
	workers int
	rec     metrics.Recorder
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithWorkers sets the pool size; values below one fall back to the default.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec metrics.Recorder) EngineOption {
	return func(e *Engine) {
		e.rec = rec
	}
}

// WithHTTPClient sets a custom HTTP client under the retry layer.
func WithHTTPClient(hc *http.Client) EngineOption {
	return func(e *Engine) {
		e.http.HTTPClient = hc
	}
}

// NewEngine creates a download engine.
func NewEngine(opts ...EngineOption) *Engine {
	h := retryablehttp.NewClient()
	h.RetryMax = downloadRetryMax
	h.RetryWaitMin = downloadRetryWaitMin
	h.RetryWaitMax = downloadRetryWaitMax
	h.Logger = nil

	e := &Engine{
		http:    h,
		workers: DefaultWorkers,
		rec:     metrics.Nop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Download fetches the items into outDir concurrently and collects every
// outcome. Failures are recorded per artifact; the call itself only errors
// when the output directory cannot be created.
func (e *Engine) Download(ctx context.Context, items []Item, outDir string) (*PulledArtifacts, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	pulled := &PulledArtifacts{}
	if len(items) == 0 {
		return pulled, nil
	}

	workers := min(e.workers, len(items))
	logger.Info("Downloading artifacts", "count", len(items), "workers", workers, "output", outDir)

	queue := make(chan Item)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				localPath, size, err := e.fetch(ctx, item, outDir)
				e.rec.RecordDownload(err)
				if err != nil {
					logger.Warn("Download failed", "artifact", item.Name, "error", err)
				} else {
					logger.Debug("Downloaded artifact", "artifact", item.Name, "path", localPath, "size", size)
				}
				pulled.add(Result{Item: item, Path: localPath, Size: size, Err: err})
			}
		}()
	}

	for _, item := range items {
		queue <- item
	}
	close(queue)
	wg.Wait()

	completed, failed := pulled.Counts()
	logger.Info("Transfer finished", "completed", completed, "failed", failed)
	return pulled, nil
}

// fetch downloads one artifact to a temp file in outDir and renames it
// into place, so a partial download never masquerades as a complete file.
func (e *Engine) fetch(ctx context.Context, item Item, outDir string) (string, int64, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request for %s: %w", item.URL, err)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to fetch %s: %w", item.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, item.URL)
	}

	tmp, err := os.CreateTemp(outDir, "."+item.Name+"-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("failed to write %s: %w", item.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close %s: %w", item.Name, err)
	}

	finalPath := filepath.Join(outDir, item.Name)
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", 0, fmt.Errorf("failed to move %s into place: %w", item.Name, err)
	}
	return finalPath, size, nil
}
