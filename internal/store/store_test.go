package store

import (
	"os"
	"reflect"
	"testing"

	"github.com/neviim/ghostmesh/internal/crdt"
)

func TestLoadMissingFileReturnsEmptySet(t *testing.T) {
	restore := chdir(t)
	defer restore()

	log, err := Load(4001)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if log.Len() != 0 {
		t.Fatalf("expected empty set, got %d entries", log.Len())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	restore := chdir(t)
	defer restore()

	log := crdt.New()
	log.Insert("hello")
	log.Insert("world")

	if err := Save(4001, log); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(4001)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !reflect.DeepEqual(log.Sorted(), loaded.Sorted()) {
		t.Fatalf("round-trip mismatch: %v != %v", log.Sorted(), loaded.Sorted())
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	restore := chdir(t)
	defer restore()

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(snapshotPath(4001), []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Load(4001); err == nil {
		t.Fatal("expected parse error for corrupt snapshot")
	}
}

func chdir(t *testing.T) func() {
	t.Helper()
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	return func() { os.Chdir(cwd) }
}
