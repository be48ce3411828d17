package deduction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"movephotos/internal/datestamp"
)

// SiblingFolder deduces a date by majority vote over the dates found in the
// names of the other files in the same folder. It is meant for files such as
// videos that carry no date of their own, and yields a Low confidence
// deduction only when a strict majority of the dated siblings agree.
func SiblingFolder(_ context.Context, source, destRoot string) Deduction {
	dir := filepath.Dir(source)
	self := filepath.Base(source)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return NewFailure(fmt.Sprintf("The folder '%s' could not be listed: %v.", dir, err))
	}

	votes := make(map[string]int)
	dates := make(map[string]datestamp.Datestamp)
	dated := 0
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == self {
			continue
		}
		_, ds, matched, err := findDatestamp(entry.Name())
		if !matched || err != nil {
			continue
		}
		dated++
		key := ds.String()
		votes[key]++
		dates[key] = ds
	}

	if dated == 0 {
		return NewFailure(fmt.Sprintf("No other file in '%s' has a datestamp in its name.", dir))
	}

	keys := make([]string, 0, len(votes))
	for k := range votes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if votes[keys[i]] != votes[keys[j]] {
			return votes[keys[i]] > votes[keys[j]]
		}
		return keys[i] < keys[j]
	})

	best := keys[0]
	if votes[best]*2 <= dated {
		return NewFailure(fmt.Sprintf("The %d dated files in '%s' do not agree on a date.", dated, dir))
	}

	ds := dates[best]
	s, err := NewSuccess(
		Low,
		ds,
		fmt.Sprintf("%d of %d dated files in '%s' are from %s.", votes[best], dated, dir, best),
		DestinationFor(destRoot, ds, source),
	)
	if err != nil {
		return NewFailure(err.Error())
	}
	return s
}
