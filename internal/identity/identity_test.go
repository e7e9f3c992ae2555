package identity

import (
	"os"
	"testing"
)

func TestLoadOrCreatePersistsAcrossColdStarts(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	first, err := LoadOrCreate(4001)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}

	if _, err := os.Stat(keyFilePath(4001)); err != nil {
		t.Fatalf("expected identity file to exist: %v", err)
	}

	second, err := LoadOrCreate(4001)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}

	if first.String() != second.String() {
		t.Fatalf("peer ID changed across cold starts: %s != %s", first.String(), second.String())
	}
}

func TestLoadOrCreateIsPerPort(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	a, err := LoadOrCreate(4001)
	if err != nil {
		t.Fatalf("port 4001: %v", err)
	}
	b, err := LoadOrCreate(4002)
	if err != nil {
		t.Fatalf("port 4002: %v", err)
	}

	if a.String() == b.String() {
		t.Fatalf("expected distinct identities per port")
	}
}

func TestLoadOrCreateRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	if err := os.MkdirAll(keyDir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(keyFilePath(4001), []byte("not a keypair"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadOrCreate(4001); err == nil {
		t.Fatal("expected corrupt key file to be fatal")
	}
}

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	return func() { os.Chdir(cwd) }
}
