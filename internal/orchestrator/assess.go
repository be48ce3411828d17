package orchestrator

import (
	"context"

	"movephotos/internal/deduction"
)

// Assessment is the classification of one file on its own, without the
// duplicate check or any prompt. Watch mode reports these.
type Assessment struct {
	Source       string
	Confident    bool
	Placement    Placement // set when Confident
	Reason       Reason    // set when not Confident
	Explanations []string
}

// Assess applies the strategies to a single file and classifies the result
// the same way a batch run does.
func Assess(ctx context.Context, source, destRoot string, strategies []deduction.Strategy) Assessment {
	agg := deduction.Apply(ctx, source, destRoot, strategies)
	a := Assessment{Source: source, Explanations: explanations(agg)}

	best, reason, ok := Classify(agg)
	if !ok {
		a.Reason = reason
		return a
	}
	a.Confident = true
	a.Placement = Placement{
		Source:      source,
		Destination: best.DestFile(),
		Datestamp:   best.Datestamp(),
		Confidence:  best.Confidence(),
	}
	return a
}
