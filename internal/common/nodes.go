package common

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/orchestrator/internal/models"
)

// nodesFile is the on-disk shape of the declarative node inventory: a flat
// list of node definitions under a single top-level key.
type nodesFile struct {
	Nodes []models.Node `toml:"nodes"`
}

// LoadNodes reads and parses the declarative node inventory named by path.
func LoadNodes(path string) ([]models.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read node inventory %s: %w", path, err)
	}

	var file nodesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse node inventory %s: %w", path, err)
	}

	return file.Nodes, nil
}
