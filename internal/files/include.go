package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Entry is a regular file picked for upload
type Entry struct {
	Path         string // Absolute path on disk
	RelativePath string // Slash-separated path shown to users and sent as the filename
	Size         int64
	ContentType  string
}

// Enumerate expands the given files and folders into regular files.
// Folders are walked recursively; hidden entries (leading ".") are skipped,
// as are files matching any exclude pattern. Relative paths of files found inside
// a folder are relative to that folder; a file given directly keeps its base name.
func Enumerate(roots []string, exclude []string) ([]Entry, error) {
	excludePatterns := normalizePatterns(exclude)

	var entries []Entry
	seen := make(map[string]bool)

	add := func(abs, rel string, size int64) {
		if seen[abs] {
			return
		}
		seen[abs] = true
		entries = append(entries, Entry{
			Path:         abs,
			RelativePath: rel,
			Size:         size,
			ContentType:  ContentTypeFromExtension(abs),
		})
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("path not found: %s", root)
			}
			return nil, fmt.Errorf("failed to read %s: %w", root, err)
		}

		if !info.IsDir() {
			name := filepath.Base(abs)
			if !isExcluded(name, excludePatterns) {
				add(abs, name, info.Size())
			}
			continue
		}

		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == abs {
				return nil
			}

			if isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			rel, err := filepath.Rel(abs, path)
			if err != nil {
				return err
			}
			normalizedPath := filepath.ToSlash(rel)

			if d.IsDir() {
				if isExcluded(normalizedPath+"/", excludePatterns) {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() || isExcluded(normalizedPath, excludePatterns) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}
			add(path, normalizedPath, info.Size())
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// isHidden reports names the uploader never picks up, including macOS "._" resource forks
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// isExcluded matches the relative path, and its base name, against every pattern
func isExcluded(path string, patterns []string) bool {
	base := filepath.Base(strings.TrimSuffix(path, "/"))
	for _, pattern := range patterns {
		if matchesGlob(path, pattern) || matchesGlob(base, pattern) {
			return true
		}
	}
	return false
}

// normalizePatterns cleans up the patterns for consistent matching
func normalizePatterns(patterns []string) []string {
	var normalized []string
	for _, pattern := range patterns {
		p := strings.TrimSpace(pattern)
		if p == "" {
			continue
		}

		p = filepath.ToSlash(p)
		p = strings.TrimPrefix(p, "./")

		// "proxies/" excludes everything below a proxies folder
		if strings.HasSuffix(p, "/") {
			p = p + "**"
		}

		normalized = append(normalized, p)
	}
	return normalized
}

// matchesGlob checks if path matches a glob-style pattern (e.g., **/*.tmp)
func matchesGlob(path, pattern string) bool {
	matched, err := doublestar.Match(pattern, path)
	if err != nil {
		return false
	}
	return matched
}

// TotalSize sums the sizes of the entries
func TotalSize(entries []Entry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return total
}
