package panels

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNoCachedPayload is returned by LoadLatest when a panel has no cache files.
var ErrNoCachedPayload = errors.New("no cached payload")

// DiskCache keeps the last few successful payloads of each panel on disk.
// Files are named <panel>_<unix millis>.json inside dir.
type DiskCache struct {
	dir      string
	maxFiles int
}

// NewDiskCache creates a DiskCache that stores files in dir and keeps at most
// maxFiles per panel.
func NewDiskCache(dir string, maxFiles int) *DiskCache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &DiskCache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Dir returns the cache directory.
func (c *DiskCache) Dir() string {
	return c.dir
}

// Write saves data to a timestamped file and prunes the panel's old files beyond maxFiles.
func (c *DiskCache) Write(panel string, data []byte, ts time.Time) error {
	if err := validPanelName(panel); err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%d.json", panel, ts.UnixMilli())
	path := filepath.Join(c.dir, filename)

	// Write then rename so a crash never leaves a truncated newest file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming cache file: %w", err)
	}

	return c.prune(panel)
}

// LoadLatest reads the panel's newest cache file by timestamp in the filename.
func (c *DiskCache) LoadLatest(panel string) ([]byte, time.Time, error) {
	if err := validPanelName(panel); err != nil {
		return nil, time.Time{}, err
	}
	files, err := c.listFiles(panel)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, ErrNoCachedPayload
	}

	// Files are sorted oldest first; take the last one.
	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

func (c *DiskCache) listFiles(panel string) ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	prefix := panel + "_"
	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		millis, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.UnixMilli(millis)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (c *DiskCache) prune(panel string) error {
	files, err := c.listFiles(panel)
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}

	// Remove oldest files.
	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}

// validPanelName rejects names that could escape the cache dir or collide
// with another panel's prefix.
func validPanelName(name string) error {
	if name == "" {
		return errors.New("empty panel name")
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return fmt.Errorf("invalid panel name %q", name)
		}
	}
	return nil
}
