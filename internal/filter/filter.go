// Package filter recognises files that should never be filed away, such as
// operating system thumbnails and metadata.
package filter

import (
	"path/filepath"
	"strings"

	"movephotos/internal/scanner"
)

// DefaultUnwantedPatterns returns the OS junk files removed before sorting.
func DefaultUnwantedPatterns() []string {
	return []string{
		"Thumbs.db",   // Windows thumbnail cache
		".DS_Store",   // macOS folder metadata
		"desktop.ini", // Windows folder settings
		"._*",         // macOS resource forks on foreign filesystems
	}
}

// PartialDownloadPatterns returns patterns for files that are still being
// written and should be left alone by the watcher.
func PartialDownloadPatterns() []string {
	return []string{
		"*.tmp",
		"*.part",
		"*.download",
		"*.crdownload", // Chrome partial downloads
		"*.partial",    // Generic partial file
		".~*",          // Hidden temp files (e.g., .~lock)
	}
}

// FileFilter matches file names against glob patterns, ignoring case.
type FileFilter struct {
	patterns []string
}

// New creates a FileFilter with the given patterns.
// If patterns is nil or empty, DefaultUnwantedPatterns are used.
func New(patterns []string) *FileFilter {
	if len(patterns) == 0 {
		patterns = DefaultUnwantedPatterns()
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &FileFilter{
		patterns: lowered,
	}
}

// Matches checks if a file path matches any of the patterns.
// It matches against the filename (base name) only.
// Patterns support glob syntax:
//   - * matches any sequence of non-separator characters
//   - ? matches any single non-separator character
//   - [abc] matches any character in the set
//   - [a-z] matches any character in the range
func (f *FileFilter) Matches(path string) bool {
	filename := strings.ToLower(filepath.Base(path))

	for _, pattern := range f.patterns {
		if matched, err := filepath.Match(pattern, filename); err == nil && matched {
			return true
		}

		// ".tmp" style patterns match as a suffix.
		if strings.HasPrefix(pattern, ".") && !strings.ContainsAny(pattern, "*?[") {
			if strings.HasSuffix(filename, pattern) {
				return true
			}
		}
	}
	return false
}

// Partition splits files into the ones to keep and the ones matching the
// filter. Both slices keep the input order.
func (f *FileFilter) Partition(files []scanner.FileEntry) (wanted, unwanted []scanner.FileEntry) {
	for _, file := range files {
		if f.Matches(file.FullPath) {
			unwanted = append(unwanted, file)
		} else {
			wanted = append(wanted, file)
		}
	}
	return wanted, unwanted
}

// Patterns returns the current patterns.
func (f *FileFilter) Patterns() []string {
	result := make([]string, len(f.patterns))
	copy(result, f.patterns)
	return result
}
