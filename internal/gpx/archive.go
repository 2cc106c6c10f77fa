package gpx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// ArchivedFile is a GPX file found in the archive directory.
type ArchivedFile struct {
	RelPath string // path relative to the archive root, forward slashes
	AbsPath string
}

// Archive writes route GPX exports under a root directory, capped per run.
type Archive struct {
	root      string
	maxPerRun int

	mu      sync.Mutex
	written int
}

// NewArchive creates an archive rooted at root. maxPerRun <= 0 means unlimited.
func NewArchive(root string, maxPerRun int) *Archive {
	return &Archive{root: root, maxPerRun: maxPerRun}
}

var unsafeChars = regexp.MustCompile(`[^\pL\pN._-]+`)

// FileName returns the archive file name for a route.
func FileName(routeID int64, name string) string {
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
	if r := []rune(slug); len(r) > 60 {
		slug = string(r[:60])
	}
	if slug == "" {
		return fmt.Sprintf("%d.gpx", routeID)
	}
	return fmt.Sprintf("%d_%s.gpx", routeID, slug)
}

// Save writes text for the route unless the file already exists or the per-run cap is reached.
// It reports whether a file was written.
func (a *Archive) Save(routeID int64, name, text string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.maxPerRun > 0 && a.written >= a.maxPerRun {
		return false, nil
	}
	if err := os.MkdirAll(a.root, 0o755); err != nil {
		return false, fmt.Errorf("failed to create gpx directory: %w", err)
	}

	path := filepath.Join(a.root, FileName(routeID, name))
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	a.written++
	return true, nil
}

// Reset starts a new run: the per-run cap counts from zero again.
func (a *Archive) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.written = 0
}

// Written returns how many files Save wrote since the last Reset.
func (a *Archive) Written() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.written
}

// Scan lists the .gpx files under the archive root.
func (a *Archive) Scan(ctx context.Context) ([]ArchivedFile, error) {
	var files []ArchivedFile

	if _, err := os.Stat(a.root); os.IsNotExist(err) {
		return nil, nil
	}

	err := filepath.Walk(a.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			if path != a.root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".gpx") {
			return nil
		}

		relPath, err := filepath.Rel(a.root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		files = append(files, ArchivedFile{RelPath: filepath.ToSlash(relPath), AbsPath: path})
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("failed to scan gpx archive: %w", err)
	}

	return files, nil
}
