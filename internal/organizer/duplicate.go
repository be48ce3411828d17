package organizer

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileExists checks if anything exists at the given path.
func FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// AlternatePath returns a free path next to dest for keeping both files when
// dest is already taken: "IMG_0001.jpg" becomes "IMG_0001_2.jpg", then
// "IMG_0001_3.jpg", and so on. If dest itself is free it is returned as is.
func AlternatePath(dest string) string {
	if !FileExists(dest) {
		return dest
	}

	dir := filepath.Dir(dest)
	filename := filepath.Base(dest)
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	for n := 2; ; n++ {
		candidate := filepath.Join(dir, base+"_"+strconv.Itoa(n)+ext)
		if !FileExists(candidate) {
			return candidate
		}
	}
}
