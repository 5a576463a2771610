package replaycatalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"diamondsim/engine/internal/replay"
)

// Entry captures a replay header alongside its resolved bundle path.
type Entry struct {
	HeaderPath string        `json:"header_path"`
	BundlePath string        `json:"bundle_path"`
	Header     replay.Header `json:"header"`
}

// List walks the directory tree and returns the header of every finished
// bundle, ordered by play identifier.
func List(root string) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != "header.json" {
			return nil
		}
		header, err := replay.ReadHeader(path)
		if err != nil {
			return err
		}
		bundlePath := header.FilePointer
		if !filepath.IsAbs(bundlePath) {
			bundlePath = filepath.Join(filepath.Dir(path), bundlePath)
		}
		entries = append(entries, Entry{HeaderPath: path, BundlePath: bundlePath, Header: header})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Header.PlayID == entries[j].Header.PlayID {
			return entries[i].BundlePath < entries[j].BundlePath
		}
		return entries[i].Header.PlayID < entries[j].Header.PlayID
	})
	return entries, nil
}

// Tally counts entries per play result.
func Tally(entries []Entry) map[string]int {
	counts := make(map[string]int)
	for _, entry := range entries {
		result := entry.Header.Result
		if result == "" {
			result = "unknown"
		}
		counts[result]++
	}
	return counts
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}
