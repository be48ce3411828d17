package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"movephotos/internal/audit"
	"movephotos/internal/comparer"
	"movephotos/internal/datestamp"
	"movephotos/internal/deduction"
	"movephotos/internal/hashcache"
	"movephotos/internal/output"
	"movephotos/internal/prompt"
)

// workspace returns fresh source and destination directories whose paths
// hold no digits, so only the file names under them can carry a date.
func workspace(t *testing.T) (src, dest string) {
	t.Helper()

	root := t.TempDir()
	if strings.ContainsAny(root, "0123456789") {
		letters := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return 'g' + (r - '0')
			}
			return r
		}, uuid.NewString())
		root = filepath.Join(os.TempDir(), "movephotos-"+letters)
		if strings.ContainsAny(root, "0123456789") {
			t.Skipf("temporary directory %s contains digits", os.TempDir())
		}
		require.NoError(t, os.MkdirAll(root, 0755))
		t.Cleanup(func() { os.RemoveAll(root) })
	}

	src = filepath.Join(root, "src")
	dest = filepath.Join(root, "dest")
	require.NoError(t, os.MkdirAll(src, 0755))
	require.NoError(t, os.MkdirAll(dest, 0755))
	return src, dest
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fixed always deduces the given date at the given level.
func fixed(level deduction.Confidence, y, m, d string) deduction.Strategy {
	return func(_ context.Context, source, destRoot string) deduction.Deduction {
		ds, err := datestamp.FromStrings(y, m, d)
		if err != nil {
			return deduction.NewFailure(err.Error())
		}
		s, err := deduction.NewSuccess(level, ds, "fixed "+ds.String(), deduction.DestinationFor(destRoot, ds, source))
		if err != nil {
			return deduction.NewFailure(err.Error())
		}
		return s
	}
}

type harness struct {
	opts     Options
	prompter *prompt.Scripted
	out      *bytes.Buffer
}

func newHarness(src, dest string) *harness {
	var buf bytes.Buffer
	p := &prompt.Scripted{}
	return &harness{
		prompter: p,
		out:      &buf,
		opts: Options{
			Source:      src,
			Destination: dest,
			Strategies:  []deduction.Strategy{deduction.FilePath},
			Prompter:    p,
			Concurrency: 4,
			Logger:      zap.NewNop(),
			Output:      output.New(output.Config{Writer: &buf, ErrWriter: &buf}),
		},
	}
}

func (h *harness) run(t *testing.T) *Summary {
	t.Helper()
	o, err := New(h.opts)
	require.NoError(t, err)
	s, err := o.Run(context.Background())
	require.NoError(t, err)
	return s
}

func sources(us []Unresolved) []string {
	out := make([]string, len(us))
	for i, u := range us {
		out[i] = filepath.Base(u.Source)
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	src, dest := workspace(t)
	writeFile(t, filepath.Join(src, "IMG_2012-08-06_001.jpg"), "jpeg bytes")
	writeFile(t, filepath.Join(src, "Thumbs.db"), "thumbs")
	writeFile(t, filepath.Join(src, "random.txt"), "notes")

	h := newHarness(src, dest)
	h.prompter.Answers = []prompt.Answer{prompt.Yes, prompt.Yes}

	s := h.run(t)

	assert.Equal(t, []string{"Delete 1 unwanted files?", "Move 1 files?"}, h.prompter.Asked)
	assert.False(t, exists(filepath.Join(src, "Thumbs.db")))

	moved := filepath.Join(dest, "2012", "2012_08_06", "IMG_2012-08-06_001.jpg")
	assert.Equal(t, "jpeg bytes", readFile(t, moved))
	assert.False(t, exists(filepath.Join(src, "IMG_2012-08-06_001.jpg")))
	assert.True(t, exists(filepath.Join(src, "random.txt")))

	assert.Equal(t, 3, s.TotalFiles)
	assert.Equal(t, int64(len("jpeg bytes")+len("thumbs")+len("notes")), s.SourceBytes)
	assert.Equal(t, 1, s.Unwanted)
	assert.Equal(t, 1, s.DeletedUnwanted)
	assert.Equal(t, 1, s.HighConfidence)
	assert.Equal(t, 1, s.Moved)
	assert.Equal(t, int64(len("jpeg bytes")), s.MovedBytes)
	require.Len(t, s.Unresolved, 1)
	assert.Equal(t, "random.txt", filepath.Base(s.Unresolved[0].Source))
	assert.Equal(t, ReasonNoDeduction, s.Unresolved[0].Reason)
	require.Len(t, s.Unresolved[0].Explanations, 1)
	assert.Contains(t, s.Unresolved[0].Explanations[0], "does not contain a datestamp")
	assert.Equal(t, 0, s.ExitCode())

	assert.Contains(t, h.out.String(), "Thumbs.db")
	assert.Contains(t, h.out.String(), "-> "+moved)
}

func TestRun_DryRunChangesNothing(t *testing.T) {
	src, dest := workspace(t)
	writeFile(t, filepath.Join(src, "IMG_2012-08-06_001.jpg"), "jpeg bytes")
	writeFile(t, filepath.Join(src, "Thumbs.db"), "thumbs")
	writeFile(t, filepath.Join(src, "random.txt"), "notes")

	h := newHarness(src, dest)
	h.opts.DryRun = true

	s := h.run(t)

	assert.Empty(t, h.prompter.Asked)
	assert.True(t, exists(filepath.Join(src, "Thumbs.db")))
	assert.True(t, exists(filepath.Join(src, "IMG_2012-08-06_001.jpg")))
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Equal(t, []string{filepath.Join(src, "Thumbs.db")}, s.PlannedDeletions)
	require.Len(t, s.PlannedMoves, 1)
	assert.Equal(t, filepath.Join(dest, "2012", "2012_08_06", "IMG_2012-08-06_001.jpg"), s.PlannedMoves[0].Destination)
	assert.Equal(t, deduction.Medium, s.PlannedMoves[0].Confidence)
	assert.Equal(t, []string{"random.txt"}, sources(s.Unresolved))
	assert.Equal(t, 0, s.Moved)
}

func TestRun_AbortDisablesLaterSteps(t *testing.T) {
	src, dest := workspace(t)
	writeFile(t, filepath.Join(src, "IMG_2012-08-06_001.jpg"), "jpeg bytes")
	writeFile(t, filepath.Join(src, ".DS_Store"), "meta")

	h := newHarness(src, dest)
	h.prompter.Answers = []prompt.Answer{prompt.Abort, prompt.Yes}

	s := h.run(t)

	assert.Equal(t, []string{"Delete 1 unwanted files?"}, h.prompter.Asked)
	assert.True(t, exists(filepath.Join(src, ".DS_Store")))
	assert.True(t, exists(filepath.Join(src, "IMG_2012-08-06_001.jpg")))
	assert.True(t, s.Aborted)
	assert.Equal(t, 1, s.HighConfidence)
	assert.Equal(t, 0, s.Moved)
	assert.Equal(t, 1, s.ExitCode())
}

func TestRun_DeclinedDeletionStillMoves(t *testing.T) {
	src, dest := workspace(t)
	writeFile(t, filepath.Join(src, "trip", "2019_07_04.png"), "png")
	writeFile(t, filepath.Join(src, "trip", "Thumbs.db"), "thumbs")

	h := newHarness(src, dest)
	h.prompter.Answers = []prompt.Answer{prompt.No, prompt.Yes}

	s := h.run(t)

	assert.True(t, exists(filepath.Join(src, "trip", "Thumbs.db")))
	assert.True(t, exists(filepath.Join(dest, "2019", "2019_07_04", "2019_07_04.png")))
	assert.False(t, s.Aborted)
	assert.Equal(t, 0, s.DeletedUnwanted)
	assert.Equal(t, 1, s.Moved)
}

func TestRun_RerunFindsRedundantCopies(t *testing.T) {
	src, dest := workspace(t)
	img := filepath.Join(src, "IMG_20120806_001.jpg")
	writeFile(t, img, "jpeg bytes")

	first := newHarness(src, dest)
	first.prompter.Answers = []prompt.Answer{prompt.Yes}
	s := first.run(t)
	require.Equal(t, 1, s.Moved)

	// The same photo turns up in the source again.
	writeFile(t, img, "jpeg bytes")

	second := newHarness(src, dest)
	second.prompter.Answers = []prompt.Answer{prompt.Yes}
	s = second.run(t)

	assert.Equal(t, []string{"Delete 1 redundant source files?"}, second.prompter.Asked)
	assert.Equal(t, 1, s.Redundant)
	assert.Equal(t, 1, s.DeletedRedundant)
	assert.Equal(t, 0, s.Moved)
	assert.False(t, exists(img))
	assert.Equal(t, "jpeg bytes", readFile(t, filepath.Join(dest, "2012", "2012_08_06", "IMG_20120806_001.jpg")))
}

func TestRun_Collisions(t *testing.T) {
	tests := []struct {
		name         string
		prompter     func(h *harness)
		wantMovedTo  string
		wantAborted  bool
		wantUnsolved bool
	}{
		{
			name: "keep both",
			prompter: func(h *harness) {
				h.prompter.Choices = []string{"keep-both"}
			},
			wantMovedTo: "IMG_2012-08-06_2.jpg",
		},
		{
			name: "skip",
			prompter: func(h *harness) {
				h.prompter.Choices = []string{"skip"}
			},
			wantUnsolved: true,
		},
		{
			name:         "abort",
			prompter:     func(h *harness) {},
			wantAborted:  true,
			wantUnsolved: true,
		},
		{
			name: "no terminal",
			prompter: func(h *harness) {
				h.opts.Prompter = prompt.AssumeNo{}
			},
			wantUnsolved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dest := workspace(t)
			writeFile(t, filepath.Join(src, "IMG_2012-08-06.jpg"), "new photo")
			occupied := filepath.Join(dest, "2012", "2012_08_06", "IMG_2012-08-06.jpg")
			writeFile(t, occupied, "old photo")

			h := newHarness(src, dest)
			tt.prompter(h)
			s := h.run(t)

			assert.Equal(t, "old photo", readFile(t, occupied))
			assert.Equal(t, tt.wantAborted, s.Aborted)
			if tt.wantMovedTo != "" {
				assert.Equal(t, "new photo", readFile(t, filepath.Join(dest, "2012", "2012_08_06", tt.wantMovedTo)))
				assert.Equal(t, 1, s.Moved)
			}
			if tt.wantUnsolved {
				require.Len(t, s.Unresolved, 1)
				assert.Equal(t, ReasonDestinationOccupied, s.Unresolved[0].Reason)
				assert.True(t, exists(filepath.Join(src, "IMG_2012-08-06.jpg")))
			}
		})
	}
}

func TestRun_UnresolvedReasons(t *testing.T) {
	src, dest := workspace(t)
	writeFile(t, filepath.Join(src, "a.jpg"), "a")

	tests := []struct {
		name       string
		strategies []deduction.Strategy
		want       Reason
	}{
		{"conflicted", []deduction.Strategy{
			fixed(deduction.Medium, "2012", "08", "06"),
			fixed(deduction.Medium, "2013", "01", "02"),
		}, ReasonConflicted},
		{"conflict below the top level still counts", []deduction.Strategy{
			fixed(deduction.High, "2012", "08", "06"),
			fixed(deduction.Low, "2013", "01", "02"),
		}, ReasonConflicted},
		{"low confidence", []deduction.Strategy{
			fixed(deduction.Low, "2012", "08", "06"),
		}, ReasonLowConfidence},
		{"no deduction", []deduction.Strategy{deduction.FilePath}, ReasonNoDeduction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(src, dest)
			h.opts.Strategies = tt.strategies
			s := h.run(t)

			require.Len(t, s.Unresolved, 1)
			assert.Equal(t, tt.want, s.Unresolved[0].Reason)
			assert.Len(t, s.Unresolved[0].Explanations, len(tt.strategies))
			assert.Empty(t, h.prompter.Asked)
			assert.True(t, exists(filepath.Join(src, "a.jpg")))
		})
	}
}

type failingHasher struct {
	failPath string
}

func (f failingHasher) Hash(ctx context.Context, path string) (string, error) {
	if path == f.failPath {
		return "", os.ErrPermission
	}
	return comparer.SHA256Hasher{}.Hash(ctx, path)
}

func TestRun_UnreadableDestinationIsReported(t *testing.T) {
	src, dest := workspace(t)
	writeFile(t, filepath.Join(src, "IMG_2012-08-06.jpg"), "photo")
	occupied := filepath.Join(dest, "2012", "2012_08_06", "IMG_2012-08-06.jpg")
	writeFile(t, occupied, "photo")

	h := newHarness(src, dest)
	h.opts.Hasher = failingHasher{failPath: occupied}
	s := h.run(t)

	require.Len(t, s.Errors, 1)
	assert.Equal(t, "compare", s.Errors[0].Op)
	var cmpErr *comparer.Error
	assert.True(t, errors.As(s.Errors[0], &cmpErr))
	assert.True(t, errors.Is(s.Errors[0], os.ErrPermission))
	assert.Empty(t, h.prompter.Asked)
	assert.True(t, exists(filepath.Join(src, "IMG_2012-08-06.jpg")))
	assert.Equal(t, 1, s.ExitCode())
}

func openCache(t *testing.T) *hashcache.Cache {
	t.Helper()
	c, err := hashcache.Open(filepath.Join(t.TempDir(), "hashes.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// The cache only looks at size and mtime, so a same-size rewrite with the
// old mtime goes unnoticed while planning. The check right before deleting
// must read the bytes.
func TestRun_ProgressCountsFinishedFiles(t *testing.T) {
	src, dest := workspace(t)
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		writeFile(t, filepath.Join(src, name), name)
	}

	h := newHarness(src, dest)
	h.opts.Concurrency = 1
	h.opts.Output = output.New(output.Config{Writer: h.out, ErrWriter: h.out, IsTTY: true})

	var started int
	var early []string
	h.opts.Strategies = []deduction.Strategy{func(context.Context, string, string) deduction.Deduction {
		started++
		time.Sleep(10 * time.Millisecond)
		if line := fmt.Sprintf("Deducing dates %d/3", started); strings.Contains(h.out.String(), line) {
			early = append(early, line)
		}
		return deduction.NewFailure("no date")
	}}

	s := h.run(t)

	assert.Empty(t, early, "progress reported before the file was deduced")
	assert.Contains(t, h.out.String(), "Deducing dates 3/3")
	assert.Len(t, s.Unresolved, 3)
}

func TestRun_SymlinkedSourceRoot(t *testing.T) {
	src, dest := workspace(t)
	writeFile(t, filepath.Join(src, "IMG_2012-08-06_001.jpg"), "jpeg bytes")
	link := filepath.Join(filepath.Dir(src), "camera")
	require.NoError(t, os.Symlink(src, link))

	h := newHarness(link, dest)
	h.prompter.Answers = []prompt.Answer{prompt.Yes}

	s := h.run(t)

	assert.Equal(t, 1, s.TotalFiles)
	assert.Equal(t, 1, s.Moved)
	assert.Equal(t, "jpeg bytes", readFile(t, filepath.Join(dest, "2012", "2012_08_06", "IMG_2012-08-06_001.jpg")))
	assert.False(t, exists(filepath.Join(src, "IMG_2012-08-06_001.jpg")))
}

func TestRun_StaleHashCacheKeepsDifferingSource(t *testing.T) {
	src, dest := workspace(t)
	source := filepath.Join(src, "IMG_2012-08-06_001.jpg")
	placed := filepath.Join(dest, "2012", "2012_08_06", "IMG_2012-08-06_001.jpg")
	writeFile(t, source, "AAAA")
	writeFile(t, placed, "AAAA")

	cache := openCache(t)
	identical, err := comparer.New(source, placed, cache).BothExistAndIdentical(context.Background())
	require.NoError(t, err)
	require.True(t, identical)

	info, err := os.Stat(placed)
	require.NoError(t, err)
	writeFile(t, placed, "BBBB")
	require.NoError(t, os.Chtimes(placed, info.ModTime(), info.ModTime()))

	h := newHarness(src, dest)
	h.opts.Hasher = cache
	h.prompter.Answers = []prompt.Answer{prompt.Yes}
	s := h.run(t)

	assert.Equal(t, []string{"Delete 1 redundant source files?"}, h.prompter.Asked)
	assert.Zero(t, s.DeletedRedundant)
	assert.Equal(t, "AAAA", readFile(t, source))
	assert.Equal(t, "BBBB", readFile(t, placed))
	require.Len(t, s.Unresolved, 1)
	assert.Equal(t, ReasonDestinationOccupied, s.Unresolved[0].Reason)
}

func TestRun_DeletedSourcesLeaveHashCache(t *testing.T) {
	src, dest := workspace(t)
	writeFile(t, filepath.Join(src, "IMG_2012-08-06_001.jpg"), "jpeg")
	writeFile(t, filepath.Join(dest, "2012", "2012_08_06", "IMG_2012-08-06_001.jpg"), "jpeg")

	cache := openCache(t)
	h := newHarness(src, dest)
	h.opts.Hasher = cache
	h.prompter.Answers = []prompt.Answer{prompt.Yes}
	s := h.run(t)
	require.Equal(t, 1, s.DeletedRedundant)

	// Only the destination's hash is still worth keeping.
	n, err := cache.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_AuditTrail(t *testing.T) {
	src, dest := workspace(t)
	writeFile(t, filepath.Join(src, "IMG_2012-08-06_001.jpg"), "jpeg bytes")
	writeFile(t, filepath.Join(src, "Thumbs.db"), "thumbs")
	writeFile(t, filepath.Join(src, "random.txt"), "notes")

	w, err := audit.NewAuditWriter(audit.AuditConfig{LogDirectory: t.TempDir()})
	require.NoError(t, err)

	h := newHarness(src, dest)
	h.opts.Audit = w
	h.opts.AppVersion = "test"
	h.prompter.Answers = []prompt.Answer{prompt.Yes, prompt.Yes}
	s := h.run(t)
	require.NoError(t, w.Close())

	events, err := audit.ReadEvents(w.LogPath())
	require.NoError(t, err)

	var types []audit.EventType
	for _, e := range events {
		types = append(types, e.EventType)
		assert.Equal(t, s.RunID, e.RunID)
	}
	assert.Equal(t, []audit.EventType{
		audit.EventRunStart,
		audit.EventDeleteUnwanted,
		audit.EventMove,
		audit.EventUnresolved,
		audit.EventRunEnd,
	}, types)
	assert.Equal(t, audit.ReasonNoDeduction, events[3].ReasonCode)
	assert.Equal(t, string(audit.RunStatusCompleted), events[4].Metadata["status"])
}

func TestRun_DryRunWritesNoAudit(t *testing.T) {
	src, dest := workspace(t)
	writeFile(t, filepath.Join(src, "IMG_2012-08-06_001.jpg"), "jpeg bytes")

	w, err := audit.NewAuditWriter(audit.AuditConfig{LogDirectory: t.TempDir()})
	require.NoError(t, err)

	h := newHarness(src, dest)
	h.opts.Audit = w
	h.opts.DryRun = true
	s := h.run(t)
	require.NoError(t, w.Close())

	assert.Empty(t, s.RunID)
	events, err := audit.ReadEvents(w.LogPath())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRun_Errors(t *testing.T) {
	src, dest := workspace(t)

	t.Run("missing source", func(t *testing.T) {
		o, err := New(newHarness(filepath.Join(src, "nope"), dest).opts)
		require.NoError(t, err)
		_, err = o.Run(context.Background())
		assert.Error(t, err)
	})

	t.Run("missing destination", func(t *testing.T) {
		o, err := New(newHarness(src, filepath.Join(dest, "nope")).opts)
		require.NoError(t, err)
		_, err = o.Run(context.Background())
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("cancelled", func(t *testing.T) {
		writeFile(t, filepath.Join(src, "IMG_2012-08-06.jpg"), "photo")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		o, err := New(newHarness(src, dest).opts)
		require.NoError(t, err)
		s, err := o.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, s)
		assert.Equal(t, 1, s.ExitCode())
	})
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Destination: "d", Strategies: []deduction.Strategy{deduction.FilePath}})
	assert.Error(t, err)
	_, err = New(Options{Source: "s", Destination: "d"})
	assert.Error(t, err)

	o, err := New(Options{Source: "s", Destination: "d", Strategies: []deduction.Strategy{deduction.FilePath}})
	require.NoError(t, err)
	assert.NotNil(t, o.filter)
	assert.NotNil(t, o.hasher)
	assert.IsType(t, prompt.AssumeNo{}, o.prompter)
	assert.Positive(t, o.concurrency)
}
