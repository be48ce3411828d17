// Package scanner enumerates the candidate files under a source directory.
package scanner

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ScanErrorType represents the type of scanning error.
type ScanErrorType string

const (
	// DirectoryNotFound indicates the source does not exist.
	DirectoryNotFound ScanErrorType = "DIRECTORY_NOT_FOUND"
	// NotADirectory indicates the source exists but is not a directory.
	NotADirectory ScanErrorType = "NOT_A_DIRECTORY"
	// PermissionDenied indicates a directory could not be read.
	PermissionDenied ScanErrorType = "PERMISSION_DENIED"
)

// ScanError represents an error that occurred during directory scanning.
type ScanError struct {
	Type ScanErrorType
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return string(e.Type) + ": " + e.Path + " (" + e.Err.Error() + ")"
	}
	return string(e.Type) + ": " + e.Path
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Options configures a scan.
type Options struct {
	// FollowSymlinks descends into symlinked directories below the root.
	// Symlinked files are never listed: moving one would move the link.
	FollowSymlinks bool
}

// FileEntry represents a file found during scanning.
type FileEntry struct {
	Name     string    // Filename only
	FullPath string    // Absolute path
	Size     int64     // Size in bytes
	ModTime  time.Time // Last modification time
}

// Scan recursively enumerates the regular files under root, skipping
// symlinks below it.
func Scan(root string) ([]FileEntry, error) {
	return ScanWithOptions(root, Options{})
}

// ScanWithOptions recursively enumerates the regular files under root. The
// root itself may be a symlink to a directory; it is always resolved.
func ScanWithOptions(root string, opts Options) ([]FileEntry, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, classify(absRoot, err)
	}
	if !info.IsDir() {
		return nil, &ScanError{Type: NotADirectory, Path: absRoot, Err: errors.New("path is not a directory")}
	}

	w := &walker{opts: opts, visited: make(map[string]struct{})}
	if err := w.walk(absRoot); err != nil {
		return nil, err
	}
	return w.files, nil
}

type walker struct {
	opts    Options
	visited map[string]struct{} // resolved directories, guards symlink loops
	files   []FileEntry
}

func (w *walker) walk(dir string) error {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		if _, seen := w.visited[resolved]; seen {
			return nil
		}
		w.visited[resolved] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return classify(dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Lstat(path)
		if err != nil {
			continue // removed since ReadDir
		}

		if info.Mode()&os.ModeSymlink != 0 {
			if !w.opts.FollowSymlinks {
				continue
			}
			target, err := os.Stat(path)
			if err != nil || !target.IsDir() {
				continue
			}
			info = target
		}

		switch {
		case info.IsDir():
			if err := w.walk(path); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			// Sockets, devices and pipes fall through.
			w.files = append(w.files, FileEntry{
				Name:     entry.Name(),
				FullPath: path,
				Size:     info.Size(),
				ModTime:  info.ModTime(),
			})
		}
	}
	return nil
}

func classify(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &ScanError{Type: DirectoryNotFound, Path: path, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return &ScanError{Type: PermissionDenied, Path: path, Err: err}
	}
	return err
}

// TotalSize returns the sum of the sizes of files.
func TotalSize(files []FileEntry) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
