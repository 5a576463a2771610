package replaycatalog

import (
	"os"
	"path/filepath"
	"testing"

	"diamondsim/engine/internal/replay"
)

func writeHeader(t *testing.T, root, dir string, header replay.Header) string {
	t.Helper()
	path := filepath.Join(root, dir, "header.json")
	header.SchemaVersion = replay.HeaderSchemaVersion
	header.FilePointer = "manifest.json"
	if err := replay.WriteHeader(path, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	return path
}

func TestListCollectsHeadersInPlayOrder(t *testing.T) {
	root := t.TempDir()
	writeHeader(t, root, "b-bundle", replay.Header{PlayID: "play-b", Result: "single", Seed: 2})
	headerPath := writeHeader(t, root, "a-bundle", replay.Header{PlayID: "play-a", Result: "ground_out", Seed: 1})
	writeHeader(t, root, filepath.Join("nested", "c-bundle"), replay.Header{PlayID: "play-c", Result: "single"})
	//1.- Files that are not headers are ignored.
	if err := os.WriteFile(filepath.Join(root, "a-bundle", "manifest.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	entries, err := List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Header.PlayID != "play-a" || entries[0].HeaderPath != headerPath {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[0].BundlePath != filepath.Join(root, "a-bundle", "manifest.json") {
		t.Fatalf("unexpected bundle path %s", entries[0].BundlePath)
	}
	tally := Tally(entries)
	if tally["single"] != 2 || tally["ground_out"] != 1 {
		t.Fatalf("unexpected tally %v", tally)
	}
	payload, err := MarshalEntries(entries)
	if err != nil || len(payload) == 0 {
		t.Fatalf("MarshalEntries: %v", err)
	}
}

func TestListRejectsFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := List(path); err == nil {
		t.Fatalf("expected a non-directory root to be rejected")
	}
	if _, err := List(" "); err == nil {
		t.Fatalf("expected an empty root to be rejected")
	}
}
