// Package transfer resolves manifest artifacts to download URLs and
// fetches them concurrently, tolerating per-artifact failures.
package transfer

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"pulptool/pkg/archdetect"
	"pulptool/pkg/logger"
)

// ArtifactMeta describes one named artifact in a transfer manifest.
type ArtifactMeta struct {
	Labels map[string]string `json:"labels"`
}

// Manifest maps artifact names to their labels and content types to the
// distribution base URLs they are published under.
type Manifest struct {
	Artifacts     map[string]ArtifactMeta `json:"artifacts"`
	Distributions map[string]string       `json:"distributions"`
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(manifestPath string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", manifestPath, err)
	}
	return &m, nil
}

// Item is one artifact resolved to a concrete download URL.
type Item struct {
	Name string
	Type archdetect.Type
	Arch string
	URL  string
}

// Filter is a pair of optional allow-lists applied before queueing
// downloads. An empty list admits everything.
type Filter struct {
	Types []string
	Archs []string
}

func (f Filter) admits(item Item) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, string(item.Type)) {
		return false
	}
	if len(f.Archs) > 0 && !slices.Contains(f.Archs, item.Arch) {
		return false
	}
	return true
}

// distributionKey maps a content type to its key in the distributions map.
func distributionKey(t archdetect.Type) string {
	switch t {
	case archdetect.TypeRPM:
		return "rpms"
	case archdetect.TypeLog:
		return "logs"
	default:
		return "sbom"
	}
}

// buildURL resolves the download URL for one artifact. A missing base URL
// for the type yields a relative best-effort path rather than an error.
func (m *Manifest) buildURL(name string, t archdetect.Type, arch string) string {
	base := strings.TrimSuffix(m.Distributions[distributionKey(t)], "/")

	var rel string
	switch t {
	case archdetect.TypeRPM:
		first := strings.ToLower(name[:1])
		rel = path.Join("Packages", first, name)
	case archdetect.TypeLog:
		if arch != "" {
			rel = path.Join(arch, name)
		} else {
			rel = name
		}
	default:
		rel = name
	}

	if base == "" {
		logger.Warn("No distribution base URL for content type", "type", string(t), "artifact", name)
		return rel
	}
	return base + "/" + rel
}

// Categorize resolves every manifest artifact to a download item, applying
// type detection and the optional filters. Artifacts with unrecognizable
// names or filtered out are skipped, not errors.
func (m *Manifest) Categorize(filter Filter) []Item {
	items := make([]Item, 0, len(m.Artifacts))
	for name, meta := range m.Artifacts {
		t, ok := archdetect.TypeFromName(name)
		if !ok {
			logger.Debug("Skipping artifact with unrecognized type", "artifact", name)
			continue
		}

		item := Item{
			Name: name,
			Type: t,
			Arch: meta.Labels["arch"],
			URL:  m.buildURL(name, t, meta.Labels["arch"]),
		}
		if !filter.admits(item) {
			logger.Debug("Artifact filtered out", "artifact", name, "type", string(t), "arch", item.Arch)
			continue
		}
		items = append(items, item)
	}
	return items
}
