package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"
)

var (
	// ErrFileNotFound is returned when the file disappears while waiting.
	ErrFileNotFound = errors.New("file not found")
	// ErrFileUnstable is returned when the file keeps changing past the timeout.
	ErrFileUnstable = errors.New("file did not stabilize within timeout")
)

// StabilityChecker waits until a file stops growing. A camera import or a
// browser download fires its first event long before the last byte lands.
type StabilityChecker struct {
	threshold time.Duration // size must stay unchanged this long
	timeout   time.Duration
	interval  time.Duration
}

// NewStabilityChecker polls at threshold/4 (at least 50ms) and gives up
// after 30 seconds.
func NewStabilityChecker(threshold time.Duration) *StabilityChecker {
	interval := threshold / 4
	if interval < 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}
	return &StabilityChecker{
		threshold: threshold,
		timeout:   30 * time.Second,
		interval:  interval,
	}
}

// WaitForStable blocks until the size of path has not changed for the
// threshold, the timeout passes, or ctx is done.
func (s *StabilityChecker) WaitForStable(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lastSize, err := fileSize(path)
	if err != nil {
		return err
	}
	lastChange := time.Now()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrFileUnstable
			}
			return ctx.Err()
		case <-ticker.C:
			size, err := fileSize(path)
			if err != nil {
				return err
			}
			if size != lastSize {
				lastSize = size
				lastChange = time.Now()
			} else if time.Since(lastChange) >= s.threshold {
				return nil
			}
		}
	}
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrFileNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}
