package cli

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"movephotos/internal/deduction"
	"movephotos/internal/filter"
	"movephotos/internal/orchestrator"
	"movephotos/internal/output"
	"movephotos/internal/watcher"
)

// settleTime is how long a file's size must hold still before it is examined.
const settleTime = 500 * time.Millisecond

func (a *app) watchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [flags] <source> <destination>",
		Short: "Report where new files in <source> would be moved",
		Long: `Watches <source> and reports, for every file that lands there, the
destination it would be moved to or why it would be left for review.

Watch mode never deletes or moves anything: run movephotos without
'watch' to act on the report. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(2),
		RunE: a.runWatch,
	}
	cmd.Flags().Float64Var(&a.debounce, "debounce", 0, "Seconds to wait after the last event for a file (overrides config)")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	source, destination := args[0], args[1]

	cfg, err := a.configuration(cmd)
	if err != nil {
		return err
	}
	strategies, err := deduction.Lookup(cfg.Strategies)
	if err != nil {
		return err
	}
	if info, err := os.Stat(destination); err != nil {
		return fmt.Errorf("destination directory: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("destination %s is not a directory", destination)
	}

	out := a.output()
	r := &reporter{out: out, destination: destination, strategies: strategies, log: a.log}

	ignore := append(append([]string(nil), cfg.Watch.IgnorePatterns...), cfg.UnwantedPatterns...)
	w := watcher.New(watcher.Config{
		Debounce:        time.Duration(cfg.Watch.DebounceSeconds * float64(time.Second)),
		StableThreshold: settleTime,
		Ignore:          filter.New(ignore),
		Logger:          a.log,
	}, r.report)

	ctx := cmd.Context()
	if err := w.Start(ctx, source); err != nil {
		return err
	}
	out.Info("Watching %s (Ctrl-C to stop)...", source)

	<-ctx.Done()
	summary := w.Stop()

	out.Heading("Watch summary")
	out.Info("Would move:  %d", summary.Confident)
	out.Info("Unresolved:  %d", summary.Unresolved)
	out.Info("Ignored:     %d", summary.Ignored)
	out.Info("Errors:      %d", summary.Errors)
	out.Verbose("Duration: %s", summary.Duration.Round(time.Second))

	if summary.Errors > 0 {
		a.exitCode = 1
	} else {
		a.exitCode = 0
	}
	return nil
}

// reporter classifies one settled file and prints the result. Files settle
// on separate goroutines, so printing is serialized.
type reporter struct {
	out         *output.Output
	destination string
	strategies  []deduction.Strategy
	log         *zap.Logger

	mu sync.Mutex
}

func (r *reporter) report(ctx context.Context, path string) (watcher.Outcome, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	a := orchestrator.Assess(ctx, path, r.destination, r.strategies)

	r.mu.Lock()
	defer r.mu.Unlock()
	if a.Confident {
		r.out.Info("%s -> %s (%s confidence)", path, a.Placement.Destination, a.Placement.Confidence)
		r.log.Debug("assessed", zap.String("path", path), zap.String("destination", a.Placement.Destination))
		return watcher.OutcomeConfident, nil
	}
	r.out.Warn("%s [%s]", path, a.Reason)
	for _, e := range a.Explanations {
		r.out.Detail("%s", e)
	}
	r.log.Debug("assessed", zap.String("path", path), zap.String("reason", string(a.Reason)))
	return watcher.OutcomeUnresolved, nil
}
