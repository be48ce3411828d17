package deduction

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"movephotos/internal/datestamp"
)

// Strategy attempts to deduce the date associated with source. It always
// returns a deduction; a strategy that finds nothing returns a Failure.
type Strategy func(ctx context.Context, source, destRoot string) Deduction

// Strategy names accepted by Lookup.
const (
	StrategyFilePath = "filepath"
	StrategyExif     = "exif"
	StrategySiblings = "siblings"
)

// DefaultStrategyNames is the strategy list used when none is configured.
func DefaultStrategyNames() []string {
	return []string{StrategyFilePath}
}

var registry = map[string]Strategy{
	StrategyFilePath: FilePath,
	StrategyExif:     Exif,
	StrategySiblings: SiblingFolder,
}

// KnownStrategy reports whether name is a registered strategy.
func KnownStrategy(name string) bool {
	_, ok := registry[name]
	return ok
}

// Lookup resolves strategy names to strategies, keeping their order.
func Lookup(names []string) ([]Strategy, error) {
	strategies := make([]Strategy, 0, len(names))
	for _, name := range names {
		s, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown datestamp strategy %q", name)
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}

// Apply runs every strategy against source concurrently and collects the
// results. The aggregate keeps the order of strategies, not completion order.
func Apply(ctx context.Context, source, destRoot string, strategies []Strategy) *Aggregate {
	deductions := make([]Deduction, len(strategies))

	var g errgroup.Group
	for i, strategy := range strategies {
		i, strategy := i, strategy
		g.Go(func() error {
			d := strategy(ctx, source, destRoot)
			if d == nil {
				d = NewFailure(fmt.Sprintf("Strategy %d returned no deduction for '%s'.", i, source))
			}
			deductions[i] = d
			return nil
		})
	}
	_ = g.Wait()

	return NewAggregate(source, deductions...)
}

// DestinationFor returns destRoot/<year>/<YYYY_MM_DD>/<base name of source>.
func DestinationFor(destRoot string, ds datestamp.Datestamp, source string) string {
	return filepath.Join(destRoot, strconv.Itoa(ds.Year()), ds.String(), filepath.Base(source))
}
