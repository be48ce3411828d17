// Package deduction deduces the calendar date associated with a file.
//
// A Strategy inspects one file and returns a Deduction: either a Failure
// ("no clue") or a Success carrying a confidence level, the deduced
// Datestamp and the proposed destination file. Apply runs an ordered list of
// strategies against a file and collects the results into an Aggregate.
package deduction

import (
	"errors"
	"fmt"

	"movephotos/internal/datestamp"
)

// Confidence ranks how much a deduction can be trusted. NoClue is reserved for
// failures and is never attached to a Success.
type Confidence int

const (
	NoClue Confidence = 0
	Low    Confidence = 3
	Medium Confidence = 6
	High   Confidence = 10
)

func (c Confidence) String() string {
	switch c {
	case NoClue:
		return "no-clue"
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("confidence(%d)", int(c))
	}
}

// ErrInvalidSuccessLevel is returned by NewSuccess for NoClue or for a level
// outside High, Medium and Low.
var ErrInvalidSuccessLevel = errors.New("a successful deduction needs a high, medium or low confidence level")

// Deduction is the outcome of one strategy applied to one file. It is a closed
// set: the only implementations are Success and Failure, so callers switch on
// the concrete type.
type Deduction interface {
	Confidence() Confidence
	Explanation() string
	sealed()
}

// Failure is a deduction that found nothing.
type Failure struct {
	explanation string
}

// NewFailure returns a Failure with the given explanation.
func NewFailure(explanation string) Failure {
	return Failure{explanation: explanation}
}

// Confidence is always NoClue for a Failure.
func (Failure) Confidence() Confidence { return NoClue }

func (f Failure) Explanation() string { return f.explanation }

func (Failure) sealed() {}

// Success is a deduction that found a date.
type Success struct {
	level       Confidence
	datestamp   datestamp.Datestamp
	explanation string
	destFile    string
}

// NewSuccess builds a Success. The level must be High, Medium or Low.
func NewSuccess(level Confidence, ds datestamp.Datestamp, explanation, destFile string) (Success, error) {
	if level != High && level != Medium && level != Low {
		return Success{}, ErrInvalidSuccessLevel
	}
	return Success{
		level:       level,
		datestamp:   ds,
		explanation: explanation,
		destFile:    destFile,
	}, nil
}

func (s Success) Confidence() Confidence { return s.level }

func (s Success) Explanation() string { return s.explanation }

// Datestamp returns the deduced date.
func (s Success) Datestamp() datestamp.Datestamp { return s.datestamp }

// DestFile returns the proposed destination path for the source file.
func (s Success) DestFile() string { return s.destFile }

func (Success) sealed() {}
