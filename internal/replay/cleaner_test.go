package replay

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"diamondsim/engine/internal/logging"
)

// writeBundle seeds a bundle directory of the given size whose files all carry modTime.
func writeBundle(t *testing.T, root, name string, modTime time.Time, size int, complete bool) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string][]byte{
		manifestFile: []byte(`{"version":1}`),
		framesFile:   make([]byte, size),
	}
	if complete {
		files[headerFile] = []byte(`{}`)
	}
	for file, body := range files {
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, body, 0o644); err != nil {
			t.Fatalf("write %s: %v", file, err)
		}
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	if err := os.Chtimes(dir, modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func listBundles(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

func TestCleanerEnforcesMaxBundles(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	//1.- Seed three finished plays so the cleaner has bundles to prune.
	writeBundle(t, tmp, "alpha", now.Add(-3*time.Hour), 64, true)
	writeBundle(t, tmp, "bravo", now.Add(-2*time.Hour), 32, true)
	writeBundle(t, tmp, "charlie", now.Add(-time.Hour), 48, true)

	cleaner := NewCleaner(tmp, RetentionPolicy{MaxBundles: 2}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.RunOnce()

	remaining := listBundles(t, tmp)
	if len(remaining) != 2 || remaining[0] != "bravo" || remaining[1] != "charlie" {
		t.Fatalf("unexpected retained bundles: %v", remaining)
	}
	stats := cleaner.Stats()
	//2.- Each bundle carries a 13 byte manifest and a 2 byte header besides its frames.
	if stats.Bundles != 2 || stats.Incomplete != 0 || stats.Bytes != int64(32+48+2*(13+2)) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !stats.LastSweep.Equal(now) {
		t.Fatalf("expected the sweep time to be recorded, got %s", stats.LastSweep)
	}
}

func TestCleanerPrunesByAgeAndAbandonedBundles(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2024, 7, 16, 9, 0, 0, 0, time.UTC)
	writeBundle(t, tmp, "delta", now.Add(-48*time.Hour), 16, true)
	writeBundle(t, tmp, "echo", now.Add(-time.Hour), 8, true)
	writeBundle(t, tmp, "foxtrot", now.Add(-3*time.Hour), 4, false)
	writeBundle(t, tmp, "golf", now.Add(-time.Minute), 4, false)
	//1.- Loose files and foreign directories are not bundles.
	if err := os.WriteFile(filepath.Join(tmp, "notes.txt"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}
	if err := os.Mkdir(filepath.Join(tmp, "scratch"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cleaner := NewCleaner(tmp, RetentionPolicy{MaxAge: 36 * time.Hour, MaxBundles: 5, IncompleteGrace: time.Hour}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.RunOnce()

	remaining := listBundles(t, tmp)
	want := []string{"echo", "golf", "notes.txt", "scratch"}
	if len(remaining) != len(want) {
		t.Fatalf("expected %v, got %v", want, remaining)
	}
	for i := range want {
		if remaining[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, remaining)
		}
	}
	if stats := cleaner.Stats(); stats.Bundles != 1 || stats.Incomplete != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
