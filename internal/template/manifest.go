package template

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/orchestrator/internal/models"
)

// ManifestEntry describes one template's metadata and default parameters.
type ManifestEntry struct {
	Name            string                  `toml:"name"`
	ModelFamilies   []string                `toml:"model_families"`
	AcceptsImg2Img  bool                    `toml:"accepts_img2img"`
	AcceptsAdapters bool                    `toml:"accepts_adapters"`
	Defaults        map[string]interface{}  `toml:"defaults"`
	Graph           map[string]GraphNodeDef `toml:"graph"`
}

// GraphNodeDef is the on-disk representation of one JobGraph node.
type GraphNodeDef struct {
	Class  string                 `toml:"class"`
	Inputs map[string]interface{} `toml:"inputs"`
}

// Manifest is the parsed set of all template entries, keyed by name.
type Manifest struct {
	Entries map[string]ManifestEntry `toml:"templates"`
}

// supportsModelFamily reports whether e.ModelFamilies contains family.
func (e ManifestEntry) supportsModelFamily(family models.Capability) bool {
	for _, f := range e.ModelFamilies {
		if f == string(family) {
			return true
		}
	}
	return false
}

// LoadManifest reads and parses the template manifest TOML file at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse template manifest %s: %w", path, err)
	}

	return &manifest, nil
}

// LoadManifestDir reads every *.toml file directly under dir and merges
// their template entries into one Manifest. A name declared in more than
// one file is overwritten by whichever file sorts last.
func LoadManifestDir(dir string) (*Manifest, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, fmt.Errorf("glob template manifest dir %s: %w", dir, err)
	}

	merged := &Manifest{Entries: make(map[string]ManifestEntry)}
	for _, path := range matches {
		m, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		for name, entry := range m.Entries {
			merged.Entries[name] = entry
		}
	}

	return merged, nil
}
