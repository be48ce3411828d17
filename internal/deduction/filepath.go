package deduction

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	"movephotos/internal/datestamp"
)

// datePattern matches YYYY[-_]?MM[-_]?DD with a 19xx/20xx year. Months and
// days are only plausibility-checked here; datestamp does the validation.
var datePattern = regexp.MustCompile(`(?P<date>(?P<year>(?:19|20)\d\d)[-_]?(?P<month>[01]\d)[-_]?(?P<day>[0-3]\d))`)

// findDatestamp returns the first date-shaped substring of s and the result of
// validating it. matched is false when s holds no such substring.
func findDatestamp(s string) (match string, ds datestamp.Datestamp, matched bool, err error) {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return "", datestamp.Datestamp{}, false, nil
	}
	get := func(name string) string { return m[datePattern.SubexpIndex(name)] }

	ds, err = datestamp.FromStrings(get("year"), get("month"), get("day"))
	return get("date"), ds, true, err
}

// FilePath deduces a date from a YYYY-MM-DD style substring of the file's
// absolute path. A match yields a Medium confidence deduction.
func FilePath(_ context.Context, source, destRoot string) Deduction {
	absPath, err := filepath.Abs(source)
	if err != nil {
		absPath = source
	}

	dateStr, ds, matched, err := findDatestamp(absPath)
	if !matched {
		return NewFailure(fmt.Sprintf("The file path '%s' does not contain a datestamp.", absPath))
	}
	if err != nil {
		return NewFailure(fmt.Sprintf("The file path '%s' contains '%s', which is not a usable date: %v.", absPath, dateStr, err))
	}

	s, err := NewSuccess(
		Medium,
		ds,
		fmt.Sprintf("The file path '%s' contains the date '%s'.", absPath, dateStr),
		DestinationFor(destRoot, ds, absPath),
	)
	if err != nil {
		return NewFailure(err.Error())
	}
	return s
}
