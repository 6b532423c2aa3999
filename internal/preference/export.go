package preference

import (
	"encoding/json"
	"fmt"

	"github.com/ternarybob/orchestrator/internal/models"
)

const exportSchemaVersion = 1

// exportDocument is the stable on-disk/over-the-wire export format: a
// version tag, the append-only record log, and the derived stats snapshot.
type exportDocument struct {
	SchemaVersion int                       `json:"schema_version"`
	Records       []models.PreferenceRecord `json:"records"`
	Stats         []statEntry               `json:"stats"`
}

// statEntry flattens one map[StatKey]Stat pair for JSON round-tripping,
// since StatKey is not a valid JSON object key on its own.
type statEntry struct {
	Key  models.StatKey `json:"key"`
	Stat models.Stat    `json:"stat"`
}

// Export serializes the engine's current state to the versioned export
// format.
func (e *Engine) Export() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	doc := exportDocument{
		SchemaVersion: exportSchemaVersion,
		Records:       append([]models.PreferenceRecord(nil), e.records...),
		Stats:         make([]statEntry, 0, len(e.stats)),
	}
	for k, v := range e.stats {
		doc.Stats = append(doc.Stats, statEntry{Key: k, Stat: v})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal preference export: %w", err)
	}
	return data, nil
}

// Import atomically replaces the engine's current state from a previously
// exported document. Fails with ErrCorruptExport on a malformed or
// partially-decoded document, or a schema version this build doesn't
// understand.
func (e *Engine) Import(data []byte) error {
	var doc exportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode preference export: %w", models.ErrCorruptExport)
	}
	if doc.SchemaVersion != exportSchemaVersion {
		return fmt.Errorf("preference export schema version %d (want %d): %w", doc.SchemaVersion, exportSchemaVersion, models.ErrCorruptExport)
	}

	stats := make(map[models.StatKey]models.Stat, len(doc.Stats))
	for _, entry := range doc.Stats {
		if entry.Stat.Selected > entry.Stat.Total {
			return fmt.Errorf("stat %+v has selected > total: %w", entry.Key, models.ErrCorruptExport)
		}
		stats[entry.Key] = entry.Stat
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append([]models.PreferenceRecord(nil), doc.Records...)
	e.stats = stats
	return nil
}
