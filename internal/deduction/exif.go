package deduction

import (
	"context"
	"fmt"
	"os"

	"github.com/rwcarlsen/goexif/exif"

	"movephotos/internal/datestamp"
)

// Exif deduces a date from the capture time embedded in the file's EXIF
// metadata (DateTimeOriginal, falling back to DateTime). A camera-recorded
// time yields a High confidence deduction.
func Exif(ctx context.Context, source, destRoot string) Deduction {
	if err := ctx.Err(); err != nil {
		return NewFailure(fmt.Sprintf("EXIF inspection of '%s' was cancelled: %v.", source, err))
	}

	f, err := os.Open(source)
	if err != nil {
		return NewFailure(fmt.Sprintf("The file '%s' could not be opened to read EXIF data: %v.", source, err))
	}
	defer f.Close()

	x, err := decodeExif(f)
	if err != nil {
		return NewFailure(fmt.Sprintf("The file '%s' has no readable EXIF data: %v.", source, err))
	}

	taken, err := x.DateTime()
	if err != nil {
		return NewFailure(fmt.Sprintf("The EXIF data of '%s' has no capture time: %v.", source, err))
	}

	ds, err := datestamp.FromTime(taken)
	if err != nil {
		return NewFailure(fmt.Sprintf("The EXIF capture time of '%s' (%s) is not a usable date: %v.", source, taken.Format("2006-01-02"), err))
	}

	s, err := NewSuccess(
		High,
		ds,
		fmt.Sprintf("The EXIF data of '%s' records a capture date of %s.", source, taken.Format("2006-01-02")),
		DestinationFor(destRoot, ds, source),
	)
	if err != nil {
		return NewFailure(err.Error())
	}
	return s
}

// decodeExif guards against decoder panics on malformed metadata.
func decodeExif(f *os.File) (x *exif.Exif, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed EXIF data: %v", r)
		}
	}()
	return exif.Decode(f)
}
