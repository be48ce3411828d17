package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Feature: photo-scan, Property 1: recursive scan returns every file and no directory

// DirectoryStructure represents a generated directory tree for testing.
type DirectoryStructure struct {
	Files       []string // Files in the root
	Directories []string // Subdirectories, each holding one nested file
}

// genName generates a lower-case name of 1-12 characters.
func genName() gopter.Gen {
	return gen.IntRange(1, 12).FlatMap(func(length interface{}) gopter.Gen {
		return gen.SliceOfN(length.(int), gen.AlphaLowerChar())
	}, reflect.TypeOf([]rune{})).Map(func(chars []rune) string {
		return string(chars)
	})
}

func genDirectoryStructure() gopter.Gen {
	return gopter.CombineGens(
		gen.SliceOfN(5, genName()),
		gen.SliceOfN(3, genName()),
	).Map(func(vals []interface{}) DirectoryStructure {
		seen := make(map[string]bool)
		var files, dirs []string
		for _, f := range vals[0].([]string) {
			name := f + ".jpg"
			if !seen[name] {
				seen[name] = true
				files = append(files, name)
			}
		}
		for _, d := range vals[1].([]string) {
			name := "dir_" + d
			if !seen[name] {
				seen[name] = true
				dirs = append(dirs, name)
			}
		}
		return DirectoryStructure{Files: files, Directories: dirs}
	})
}

// setupTestDirectory creates a temporary tree and returns its root and the
// expected set of relative file paths.
func setupTestDirectory(t *testing.T, structure DirectoryStructure) (string, []string) {
	tmpDir := t.TempDir()
	var expected []string

	for _, fileName := range structure.Files {
		if err := os.WriteFile(filepath.Join(tmpDir, fileName), []byte("test content"), 0644); err != nil {
			t.Fatalf("Failed to create file %s: %v", fileName, err)
		}
		expected = append(expected, fileName)
	}

	for _, dirName := range structure.Directories {
		dirPath := filepath.Join(tmpDir, dirName)
		if err := os.MkdirAll(filepath.Join(dirPath, "deeper"), 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dirName, err)
		}
		nested := filepath.Join(dirName, "deeper", "nested.jpg")
		if err := os.WriteFile(filepath.Join(tmpDir, nested), []byte("nested"), 0644); err != nil {
			t.Fatalf("Failed to create file %s: %v", nested, err)
		}
		expected = append(expected, nested)
	}

	sort.Strings(expected)
	return tmpDir, expected
}

func relPaths(t *testing.T, root string, entries []FileEntry) []string {
	t.Helper()
	absRoot, err := filepath.Abs(root)
	if err != nil {
		t.Fatalf("Abs: %v", err)
	}
	var rels []string
	for _, e := range entries {
		rel, err := filepath.Rel(absRoot, e.FullPath)
		if err != nil {
			t.Fatalf("Rel: %v", err)
		}
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	return rels
}

func TestScannerReturnsEveryFile(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("Scan returns all nested files and no directories", prop.ForAll(
		func(structure DirectoryStructure) bool {
			tmpDir, expected := setupTestDirectory(t, structure)

			entries, err := Scan(tmpDir)
			if err != nil {
				t.Logf("Scan failed: %v", err)
				return false
			}

			got := relPaths(t, tmpDir, entries)
			if !reflect.DeepEqual(got, expected) && !(len(got) == 0 && len(expected) == 0) {
				t.Logf("Expected %v, got %v", expected, got)
				return false
			}

			for _, entry := range entries {
				info, err := os.Stat(entry.FullPath)
				if err != nil || info.IsDir() {
					t.Logf("Entry %s is not a file", entry.FullPath)
					return false
				}
				if entry.Size != info.Size() || filepath.Base(entry.FullPath) != entry.Name {
					t.Logf("Entry %s has stale metadata", entry.FullPath)
					return false
				}
			}
			return true
		},
		genDirectoryStructure(),
	))

	properties.TestingRun(t)
}

func TestScanTotalSize(t *testing.T) {
	tmpDir, _ := setupTestDirectory(t, DirectoryStructure{
		Files:       []string{"top.jpg"},
		Directories: []string{"sub"},
	})

	entries, err := Scan(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 files, got %d", len(entries))
	}
	if TotalSize(entries) != int64(len("test content")+len("nested")) {
		t.Errorf("unexpected total size %d", TotalSize(entries))
	}
}

func symlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
}

func TestScanSymlinkedRoot(t *testing.T) {
	target, expected := setupTestDirectory(t, DirectoryStructure{
		Files:       []string{"top.jpg"},
		Directories: []string{"sub"},
	})
	link := filepath.Join(t.TempDir(), "camera")
	symlink(t, target, link)

	entries, err := Scan(link)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := relPaths(t, link, entries); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestScanSymlinksBelowRoot(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "real.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "linked.jpg"), []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}
	symlink(t, filepath.Join(tmpDir, "real.jpg"), filepath.Join(tmpDir, "link.jpg"))
	symlink(t, outside, filepath.Join(tmpDir, "album"))

	entries, err := Scan(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := relPaths(t, tmpDir, entries); !reflect.DeepEqual(got, []string{"real.jpg"}) {
		t.Errorf("default scan should skip links, got %v", got)
	}

	entries, err = ScanWithOptions(tmpDir, Options{FollowSymlinks: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{filepath.Join("album", "linked.jpg"), "real.jpg"}
	if got := relPaths(t, tmpDir, entries); !reflect.DeepEqual(got, want) {
		t.Errorf("follow should descend into linked directories only, got %v", got)
	}
}

func TestScanSymlinkLoop(t *testing.T) {
	tmpDir := t.TempDir()
	sub := filepath.Join(tmpDir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	symlink(t, tmpDir, filepath.Join(sub, "up"))

	entries, err := ScanWithOptions(tmpDir, Options{FollowSymlinks: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := relPaths(t, tmpDir, entries); !reflect.DeepEqual(got, []string{filepath.Join("sub", "a.jpg")}) {
		t.Errorf("expected each file once, got %v", got)
	}
}

func TestScanMissingDirectory(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"))

	var scanErr *ScanError
	if !errors.As(err, &scanErr) {
		t.Fatalf("expected *ScanError, got %T", err)
	}
	if scanErr.Type != DirectoryNotFound {
		t.Errorf("expected DirectoryNotFound, got %s", scanErr.Type)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("ScanError should unwrap to os.ErrNotExist")
	}
}

func TestScanFileIsNotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.jpg")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Scan(file)
	var scanErr *ScanError
	if !errors.As(err, &scanErr) || scanErr.Type != NotADirectory {
		t.Errorf("expected NotADirectory, got %v", err)
	}
}
