// Package organizer moves and deletes files on behalf of the orchestrator.
// It never overwrites an existing destination.
package organizer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MoveErrorType represents the type of move error.
type MoveErrorType string

const (
	// SourceNotFound indicates the source file does not exist.
	SourceNotFound MoveErrorType = "SOURCE_NOT_FOUND"
	// DestinationExists indicates a file already exists at the destination.
	DestinationExists MoveErrorType = "DESTINATION_EXISTS"
	// PermissionDenied indicates insufficient permissions for the operation.
	PermissionDenied MoveErrorType = "PERMISSION_DENIED"
	// IOFailure covers any other filesystem error.
	IOFailure MoveErrorType = "IO_FAILURE"
)

// MoveError represents an error that occurred during file movement.
type MoveError struct {
	Type MoveErrorType
	Path string
	Err  error
}

func (e *MoveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Path)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

// MoveResult represents the result of a successful file move operation.
type MoveResult struct {
	SourcePath      string
	DestinationPath string
	Bytes           int64
	Copied          bool // True if a cross-device copy+delete was needed
}

// classify wraps err in a MoveError for path.
func classify(path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &MoveError{Type: SourceNotFound, Path: path, Err: err}
	case errors.Is(err, os.ErrPermission):
		return &MoveError{Type: PermissionDenied, Path: path, Err: err}
	default:
		return &MoveError{Type: IOFailure, Path: path, Err: err}
	}
}

// Move moves source to dest, creating dest's directory. It refuses to replace
// an existing dest. If rename fails (e.g. across devices) it falls back to
// copy and delete.
func Move(source, dest string) (*MoveResult, error) {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return nil, classify(source, err)
	}

	if FileExists(dest) {
		return nil, &MoveError{Type: DestinationExists, Path: dest}
	}

	destDir := filepath.Dir(dest)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, &MoveError{Type: PermissionDenied, Path: destDir, Err: err}
		}
		return nil, &MoveError{Type: IOFailure, Path: destDir, Err: err}
	}

	result := &MoveResult{
		SourcePath:      source,
		DestinationPath: dest,
		Bytes:           srcInfo.Size(),
	}

	if err := os.Rename(source, dest); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, &MoveError{Type: PermissionDenied, Path: source, Err: err}
		}
		if err := copyAndDelete(source, dest, srcInfo.Mode()); err != nil {
			return nil, err
		}
		result.Copied = true
	}

	return result, nil
}

// Delete removes a single file.
func Delete(path string) error {
	if err := os.Remove(path); err != nil {
		return classify(path, err)
	}
	return nil
}

// copyAndDelete streams src into a new dst and deletes src. dst is removed
// again if anything fails, so no half-written file is left behind.
func copyAndDelete(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return classify(src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode.Perm())
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return &MoveError{Type: DestinationExists, Path: dst, Err: err}
		}
		return classify(dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return classify(dst, err)
	}
	// The source is removed next, so the copy must be on disk first.
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return classify(dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return classify(dst, err)
	}

	in.Close()
	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		return classify(src, err)
	}

	return nil
}
