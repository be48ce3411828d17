package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"movephotos/internal/comparer"
	"movephotos/internal/datestamp"
	"movephotos/internal/deduction"
	"movephotos/internal/scanner"
)

// Reason explains why a file was left for manual review.
type Reason string

const (
	ReasonNoDeduction         Reason = "no-deduction"
	ReasonConflicted          Reason = "conflicted"
	ReasonLowConfidence       Reason = "low-confidence"
	ReasonDestinationOccupied Reason = "destination-occupied"
)

// Unresolved is a file the run will not touch, with everything the
// strategies had to say about it.
type Unresolved struct {
	Source       string
	Reason       Reason
	Explanations []string
}

// Placement is a confidently dated file and where it belongs.
type Placement struct {
	Source      string
	Destination string
	Datestamp   datestamp.Datestamp
	Confidence  deduction.Confidence
	Size        int64
}

// FileError is an I/O failure on a single file. The file is excluded from
// any further action.
type FileError struct {
	Path string
	Op   string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Plan is the outcome of the read-only stages: what would be deleted,
// moved or left alone.
type Plan struct {
	Wanted     []scanner.FileEntry
	Unwanted   []scanner.FileEntry
	Redundant  []Placement // identical copy already at the destination
	Pending    []Placement // destination is free
	Collisions []Placement // destination holds different content
	Unresolved []Unresolved
	Errors     []FileError
}

// HighConfidence is the number of files the strategies placed confidently.
func (p *Plan) HighConfidence() int {
	return len(p.Redundant) + len(p.Pending) + len(p.Collisions)
}

// Classify decides whether an aggregate is confident enough to act on: its
// highest confidence group must be at least Medium and must agree on one
// date. Conflicts are never broken by strategy order.
func Classify(agg *deduction.Aggregate) (deduction.Success, Reason, bool) {
	highest := agg.HighestConfidenceDeductions()
	if len(highest) == 0 {
		return deduction.Success{}, ReasonNoDeduction, false
	}
	if conflicted, err := agg.IsConflicted(); err != nil || conflicted {
		return deduction.Success{}, ReasonConflicted, false
	}
	if highest[0].Confidence() < deduction.Medium {
		return deduction.Success{}, ReasonLowConfidence, false
	}
	return highest[0], "", true
}

// explanations lists what every strategy reported, in strategy order.
func explanations(agg *deduction.Aggregate) []string {
	ds := agg.Deductions()
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		switch d := d.(type) {
		case deduction.Success:
			out = append(out, fmt.Sprintf("%s (%s confidence)", d.Explanation(), d.Confidence()))
		case deduction.Failure:
			out = append(out, d.Explanation())
		}
	}
	return out
}

// deduce applies the strategies to every file. Files fan out up to the
// concurrency limit; results are stored by index so the plan follows scan
// order.
func (o *Orchestrator) deduce(ctx context.Context, files []scanner.FileEntry) ([]*deduction.Aggregate, error) {
	aggregates := make([]*deduction.Aggregate, len(files))

	o.out.StartProgress(len(files))
	defer o.out.EndProgress()

	// done counts finished files; the lock keeps progress lines in order.
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			aggregates[i] = deduction.Apply(gctx, f.FullPath, o.opts.Destination, o.opts.Strategies)

			mu.Lock()
			done++
			o.out.UpdateProgress(done, "Deducing dates")
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return aggregates, nil
}

// placementKind is where the duplicate check put a confident file.
type placementKind int

const (
	kindPending placementKind = iota
	kindRedundant
	kindCollision
	kindError
)

// checkDestination compares a file against its destination using hasher.
func (o *Orchestrator) checkDestination(ctx context.Context, p Placement, hasher comparer.Hasher) (placementKind, error) {
	c := comparer.New(p.Source, p.Destination, hasher)
	identical, err := c.BothExistAndIdentical(ctx)
	if err != nil {
		return kindError, err
	}
	if identical {
		return kindRedundant, nil
	}
	if c.DestinationExists() {
		return kindCollision, nil
	}
	return kindPending, nil
}

// buildPlan classifies every aggregate and runs the duplicate check on the
// confident ones.
func (o *Orchestrator) buildPlan(ctx context.Context, wanted []scanner.FileEntry, aggregates []*deduction.Aggregate) (*Plan, error) {
	plan := &Plan{Wanted: wanted}

	var confident []Placement
	for i, agg := range aggregates {
		best, reason, ok := Classify(agg)
		if !ok {
			plan.Unresolved = append(plan.Unresolved, Unresolved{
				Source:       agg.Source(),
				Reason:       reason,
				Explanations: explanations(agg),
			})
			o.log.Debug("unresolved", zap.String("path", agg.Source()), zap.String("reason", string(reason)))
			continue
		}
		confident = append(confident, Placement{
			Source:      agg.Source(),
			Destination: best.DestFile(),
			Datestamp:   best.Datestamp(),
			Confidence:  best.Confidence(),
			Size:        wanted[i].Size,
		})
	}

	kinds := make([]placementKind, len(confident))
	errs := make([]error, len(confident))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, p := range confident {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			kinds[i], errs[i] = o.checkDestination(gctx, p, o.hasher)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, p := range confident {
		switch kinds[i] {
		case kindRedundant:
			plan.Redundant = append(plan.Redundant, p)
		case kindCollision:
			plan.Collisions = append(plan.Collisions, p)
		case kindError:
			plan.Errors = append(plan.Errors, FileError{Path: p.Source, Op: "compare", Err: errs[i]})
		default:
			plan.Pending = append(plan.Pending, p)
		}
		o.log.Debug("placed",
			zap.String("path", p.Source),
			zap.String("destination", p.Destination),
			zap.Stringer("kind", kinds[i]))
	}
	return plan, nil
}

func (k placementKind) String() string {
	switch k {
	case kindRedundant:
		return "redundant"
	case kindCollision:
		return "collision"
	case kindError:
		return "error"
	default:
		return "pending"
	}
}
