// Package comparer decides whether a source file is already present, byte for
// byte, at its candidate destination.
package comparer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrorType represents the side of the comparison that failed.
type ErrorType string

const (
	// SourceUnavailable indicates the source file is missing or unreadable.
	SourceUnavailable ErrorType = "SOURCE_UNAVAILABLE"
	// DestinationUnreadable indicates the destination exists but could not be read.
	DestinationUnreadable ErrorType = "DESTINATION_UNREADABLE"
)

// Error reports a comparison that could not be completed. It is never used to
// mean "the files differ".
type Error struct {
	Type ErrorType
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%v)", e.Type, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Hasher computes a content hash for a file.
type Hasher interface {
	Hash(ctx context.Context, path string) (string, error)
}

// Cached is implemented by hashers that may answer from stored hashes
// instead of reading the file.
type Cached interface {
	Hasher
	// Underlying returns the hasher that reads file content.
	Underlying() Hasher
}

// Direct returns a hasher that always reads the bytes on disk: h itself, or
// the hasher underneath it when h is a cache.
func Direct(h Hasher) Hasher {
	for {
		c, ok := h.(Cached)
		if !ok {
			return h
		}
		h = c.Underlying()
	}
}

// SHA256Hasher streams a file through SHA-256.
type SHA256Hasher struct{}

// Hash returns the hex SHA-256 of the file at path.
func (SHA256Hasher) Hash(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileComparer pairs a source file with a candidate destination path.
type FileComparer struct {
	Source      string
	Destination string
	hasher      Hasher
}

// New creates a FileComparer. A nil hasher means SHA256Hasher.
func New(source, destination string, hasher Hasher) *FileComparer {
	if hasher == nil {
		hasher = SHA256Hasher{}
	}
	return &FileComparer{
		Source:      source,
		Destination: destination,
		hasher:      hasher,
	}
}

// BothExistAndIdentical reports whether source and destination are both
// regular files with the same content hash. A missing destination is simply
// false. A missing or unreadable source, or an unreadable destination, is an
// *Error.
func (c *FileComparer) BothExistAndIdentical(ctx context.Context) (bool, error) {
	srcInfo, err := os.Stat(c.Source)
	if err != nil {
		return false, &Error{Type: SourceUnavailable, Path: c.Source, Err: err}
	}
	if !srcInfo.Mode().IsRegular() {
		return false, &Error{Type: SourceUnavailable, Path: c.Source, Err: errors.New("not a regular file")}
	}

	destInfo, err := os.Stat(c.Destination)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, &Error{Type: DestinationUnreadable, Path: c.Destination, Err: err}
	}
	if !destInfo.Mode().IsRegular() {
		return false, nil
	}

	srcHash, err := c.hasher.Hash(ctx, c.Source)
	if err != nil {
		return false, &Error{Type: SourceUnavailable, Path: c.Source, Err: err}
	}
	destHash, err := c.hasher.Hash(ctx, c.Destination)
	if err != nil {
		return false, &Error{Type: DestinationUnreadable, Path: c.Destination, Err: err}
	}

	return srcHash == destHash, nil
}

// DestinationExists reports whether anything occupies the destination path.
func (c *FileComparer) DestinationExists() bool {
	_, err := os.Lstat(c.Destination)
	return err == nil
}
