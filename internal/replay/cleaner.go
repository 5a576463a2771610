package replay

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"diamondsim/engine/internal/logging"
)

// RetentionPolicy defines how many replay bundles are retained on disk.
type RetentionPolicy struct {
	MaxBundles int
	MaxAge     time.Duration
	// IncompleteGrace is how long a bundle without a header may sit before it
	// is treated as abandoned. Zero keeps such bundles.
	IncompleteGrace time.Duration
}

// StorageStats summarises the disk footprint of persisted replays.
type StorageStats struct {
	Bundles    int       `json:"bundles"`
	Incomplete int       `json:"incomplete"`
	Bytes      int64     `json:"bytes"`
	LastSweep  time.Time `json:"last_sweep"`
}

// Cleaner periodically prunes replay bundles according to a retention policy.
type Cleaner struct {
	mu     sync.RWMutex
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time
	stats  StorageStats
}

// NewCleaner constructs a cleaner for the provided replay directory.
func NewCleaner(dir string, policy RetentionPolicy, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.L()
	}
	return &Cleaner{dir: dir, policy: policy, log: logger, now: time.Now}
}

// Run executes retention sweeps until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	if c == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	//1.- Sweep eagerly so retention applies on startup.
	c.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// RunOnce performs a single retention sweep.
func (c *Cleaner) RunOnce() {
	if c == nil {
		return
	}
	c.sweep()
}

// Stats returns the last recorded storage statistics.
func (c *Cleaner) Stats() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

type bundleDir struct {
	name     string
	path     string
	complete bool
	size     int64
	modTime  time.Time
}

func (c *Cleaner) sweep() {
	if c == nil || strings.TrimSpace(c.dir) == "" {
		return
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("replay retention scan failed", logging.Error(err), logging.String("directory", c.dir))
		return
	}
	bundles := c.collect(entries)
	now := c.now()
	kept := 0
	stats := StorageStats{LastSweep: now}
	for _, bundle := range bundles {
		if remove, reason := c.shouldRemove(bundle, now, kept); remove {
			err := os.RemoveAll(bundle.path)
			if err == nil {
				c.log.Info("replay retention removed bundle", logging.String("bundle", bundle.name), logging.String("reason", reason))
				continue
			}
			c.log.Warn("replay retention removal failed", logging.Error(err), logging.String("bundle", bundle.name))
		}
		//1.- Anything left on disk counts toward the published footprint.
		if bundle.complete {
			kept++
			stats.Bundles++
		} else {
			stats.Incomplete++
		}
		stats.Bytes += bundle.size
	}
	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

// collect lists bundle directories newest first. Loose files are not bundles
// and are left alone.
func (c *Cleaner) collect(entries []os.DirEntry) []*bundleDir {
	bundles := make([]*bundleDir, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		if _, err := os.Stat(filepath.Join(path, manifestFile)); err != nil {
			continue
		}
		size, modTime, err := directoryFootprint(path)
		if err != nil {
			c.log.Warn("replay retention size failed", logging.Error(err), logging.String("path", path))
			continue
		}
		_, headerErr := os.Stat(filepath.Join(path, headerFile))
		bundles = append(bundles, &bundleDir{name: entry.Name(), path: path, complete: headerErr == nil, size: size, modTime: modTime})
	}
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].modTime.After(bundles[j].modTime) })
	return bundles
}

func (c *Cleaner) shouldRemove(bundle *bundleDir, now time.Time, kept int) (bool, string) {
	age := now.Sub(bundle.modTime)
	if !bundle.complete {
		if c.policy.IncompleteGrace > 0 && age > c.policy.IncompleteGrace {
			return true, fmt.Sprintf("incomplete for %s", age.Truncate(time.Second))
		}
		return false, ""
	}
	reasons := make([]string, 0, 2)
	if c.policy.MaxAge > 0 && age > c.policy.MaxAge {
		reasons = append(reasons, fmt.Sprintf("age>%s", c.policy.MaxAge))
	}
	if c.policy.MaxBundles > 0 && kept >= c.policy.MaxBundles {
		reasons = append(reasons, fmt.Sprintf(">=%d bundles", c.policy.MaxBundles))
	}
	return len(reasons) > 0, strings.Join(reasons, ", ")
}

// directoryFootprint sums file sizes and finds the latest modification below root.
func directoryFootprint(root string) (int64, time.Time, error) {
	var total int64
	var latest time.Time
	walkErr := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		if !d.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, latest, walkErr
}
