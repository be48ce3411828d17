package deduction

import "errors"

// ErrNoSuccessfulDeductions is returned by IsConflicted when there is nothing
// to compare. Check HasSuccessfulDeductions first.
var ErrNoSuccessfulDeductions = errors.New("aggregate has no successful deductions")

// confidenceOrder is the order in which HighestConfidenceDeductions looks for a
// non-empty group.
var confidenceOrder = []Confidence{High, Medium, Low}

// Aggregate holds every deduction made for a single source file, in the order
// the strategies were given.
type Aggregate struct {
	source     string
	deductions []Deduction
}

// NewAggregate returns an aggregate for source holding deductions in order.
func NewAggregate(source string, deductions ...Deduction) *Aggregate {
	ds := make([]Deduction, len(deductions))
	copy(ds, deductions)
	return &Aggregate{source: source, deductions: ds}
}

// Source returns the file the deductions were made for.
func (a *Aggregate) Source() string {
	return a.source
}

// Deductions returns a copy of all deductions in strategy order.
func (a *Aggregate) Deductions() []Deduction {
	result := make([]Deduction, len(a.deductions))
	copy(result, a.deductions)
	return result
}

// HasSuccessfulDeductions reports whether any strategy found a date.
func (a *Aggregate) HasSuccessfulDeductions() bool {
	for _, d := range a.deductions {
		if _, ok := d.(Success); ok {
			return true
		}
	}
	return false
}

// SuccessfulDeductions returns the successes in strategy order.
func (a *Aggregate) SuccessfulDeductions() []Success {
	var successes []Success
	for _, d := range a.deductions {
		if s, ok := d.(Success); ok {
			successes = append(successes, s)
		}
	}
	return successes
}

// FailedDeductionExplanations returns the explanations of the failures.
func (a *Aggregate) FailedDeductionExplanations() []string {
	var explanations []string
	for _, d := range a.deductions {
		if f, ok := d.(Failure); ok {
			explanations = append(explanations, f.Explanation())
		}
	}
	return explanations
}

// IsConflicted reports whether the successful deductions disagree on the date.
// It returns ErrNoSuccessfulDeductions when there are no successes.
func (a *Aggregate) IsConflicted() (bool, error) {
	successes := a.SuccessfulDeductions()
	if len(successes) == 0 {
		return false, ErrNoSuccessfulDeductions
	}

	first := successes[0].Datestamp()
	for _, s := range successes[1:] {
		if !s.Datestamp().Equal(first) {
			return true, nil
		}
	}
	return false, nil
}

// HighestConfidenceDeductions returns every success at the highest confidence
// level present, checking High, then Medium, then Low. It returns nil when
// there are no successes.
func (a *Aggregate) HighestConfidenceDeductions() []Success {
	successes := a.SuccessfulDeductions()
	if len(successes) == 0 {
		return nil
	}

	groups := make(map[Confidence][]Success)
	for _, s := range successes {
		groups[s.Confidence()] = append(groups[s.Confidence()], s)
	}

	for _, level := range confidenceOrder {
		if group := groups[level]; len(group) > 0 {
			return group
		}
	}
	return nil
}
