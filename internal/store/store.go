// Package store persists a node's CRDT log to disk so it survives restarts.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/neviim/ghostmesh/internal/crdt"
)

const dataDir = "data"

// Save serializes log as pretty-printed JSON and atomically replaces
// data/storage_<port>.json. The write goes to a temp file in the same
// directory followed by a rename, so a concurrent reader never observes a
// partially written file (spec.md §9: a strengthening over a plain write).
func Save(port int, log *crdt.GSet) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("store: creating %s: %w", dataDir, err)
	}

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encoding snapshot: %w", err)
	}

	path := snapshotPath(port)
	tmp, err := os.CreateTemp(dataDir, "storage_*.tmp")
	if err != nil {
		return fmt.Errorf("store: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("store: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: renaming into place: %w", err)
	}
	return nil
}

// Load reads data/storage_<port>.json. A missing file is not an error — it
// returns a fresh empty set, matching a node's first-ever launch on a port.
// A parse failure is returned to the caller, which treats it as fatal at
// startup and as a log-and-continue event at runtime (spec.md §4.3).
func Load(port int) (*crdt.GSet, error) {
	path := snapshotPath(port)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return crdt.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading %s: %w", path, err)
	}

	log := crdt.New()
	if err := json.Unmarshal(data, log); err != nil {
		return nil, fmt.Errorf("store: parsing %s: %w", path, err)
	}
	return log, nil
}

func snapshotPath(port int) string {
	return filepath.Join(dataDir, fmt.Sprintf("storage_%d.json", port))
}
