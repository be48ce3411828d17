// Package orchestrator runs the photo moving pipeline: scan the source,
// clear out junk files, deduce a date for every remaining file, and move
// the confidently dated ones into the destination behind operator
// confirmation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"movephotos/internal/audit"
	"movephotos/internal/comparer"
	"movephotos/internal/deduction"
	"movephotos/internal/filter"
	"movephotos/internal/logging"
	"movephotos/internal/organizer"
	"movephotos/internal/output"
	"movephotos/internal/prompt"
	"movephotos/internal/scanner"
)

// Choose values offered for a destination collision.
const (
	choiceSkip     = "skip"
	choiceKeepBoth = "keep-both"
	choiceAbort    = "abort"
)

// Options configures a run. Source, Destination and Strategies are
// required; everything else has a usable zero value.
type Options struct {
	Source      string
	Destination string
	Strategies  []deduction.Strategy

	Unwanted    *filter.FileFilter // nil uses the default junk patterns
	Hasher      comparer.Hasher    // nil uses SHA-256 without a cache
	Prompter    prompt.Prompter    // nil answers no to everything
	Concurrency int                // <= 0 uses runtime.NumCPU()
	DryRun      bool

	// FollowSymlinks descends into symlinked directories under Source.
	FollowSymlinks bool

	Audit      *audit.AuditWriter // nil disables the audit trail
	AppVersion string

	Logger *zap.Logger
	Output *output.Output
}

// Orchestrator runs the pipeline for one source and destination pair.
type Orchestrator struct {
	opts        Options
	filter      *filter.FileFilter
	hasher      comparer.Hasher // planning; may answer from a cache
	verifier    comparer.Hasher // right before a delete or move; reads the bytes
	prompter    prompt.Prompter
	concurrency int
	log         *zap.Logger
	out         *output.Output

	runID   audit.RunID
	aborted bool
}

// New creates an Orchestrator, filling in defaults for optional collaborators.
func New(opts Options) (*Orchestrator, error) {
	if opts.Source == "" || opts.Destination == "" {
		return nil, errors.New("source and destination directories are required")
	}
	if len(opts.Strategies) == 0 {
		return nil, errors.New("at least one datestamp strategy is required")
	}

	o := &Orchestrator{
		opts:        opts,
		filter:      opts.Unwanted,
		hasher:      opts.Hasher,
		prompter:    opts.Prompter,
		concurrency: opts.Concurrency,
		log:         logging.OrNop(opts.Logger),
		out:         opts.Output,
	}
	if o.filter == nil {
		o.filter = filter.New(nil)
	}
	if o.hasher == nil {
		o.hasher = comparer.SHA256Hasher{}
	}
	o.verifier = comparer.Direct(o.hasher)
	if o.prompter == nil {
		o.prompter = prompt.AssumeNo{}
	}
	if o.concurrency <= 0 {
		o.concurrency = runtime.NumCPU()
	}
	if o.out == nil {
		o.out = output.New(output.Config{})
	}
	return o, nil
}

// Run executes the pipeline. Per-file failures are collected in the
// summary; an error is returned only when the run cannot continue at all
// (unreadable source, missing destination, cancellation, audit failure).
// An operator abort is not an error: it is recorded in Summary.Aborted.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	s := &Summary{
		Source:      o.opts.Source,
		Destination: o.opts.Destination,
		DryRun:      o.opts.DryRun,
	}
	defer func() { s.Duration = time.Since(start) }()

	if err := checkDestinationRoot(o.opts.Destination); err != nil {
		return nil, err
	}

	o.out.Info("Finding all files in %s...", o.opts.Source)
	files, err := scanner.ScanWithOptions(o.opts.Source, scanner.Options{FollowSymlinks: o.opts.FollowSymlinks})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", o.opts.Source, err)
	}
	s.TotalFiles = len(files)
	s.SourceBytes = scanner.TotalSize(files)
	o.log.Info("scanned source", zap.String("source", o.opts.Source), zap.Int("files", len(files)))

	if err := o.startAudit(); err != nil {
		return nil, err
	}

	wanted, unwanted := o.filter.Partition(files)
	s.Unwanted = len(unwanted)
	if err := o.handleUnwanted(ctx, unwanted, s); err != nil {
		return o.finish(s, err)
	}
	if err := ctx.Err(); err != nil {
		return o.finish(s, err)
	}

	o.out.Info("Deducing dates for %d files...", len(wanted))
	aggregates, err := o.deduce(ctx, wanted)
	if err != nil {
		return o.finish(s, err)
	}

	plan, err := o.buildPlan(ctx, wanted, aggregates)
	if err != nil {
		return o.finish(s, err)
	}
	plan.Unwanted = unwanted
	s.HighConfidence = plan.HighConfidence()
	s.Redundant = len(plan.Redundant)
	s.Unresolved = append(s.Unresolved, plan.Unresolved...)
	for _, fe := range plan.Errors {
		if err := o.fileError(s, fe.Path, "", fe.Op, fe.Err); err != nil {
			return o.finish(s, err)
		}
	}

	if o.opts.DryRun {
		s.PlannedDeletions = append(s.PlannedDeletions, paths(unwanted)...)
		for _, p := range plan.Redundant {
			s.PlannedDeletions = append(s.PlannedDeletions, p.Source)
		}
		s.PlannedMoves = append(s.PlannedMoves, plan.Pending...)
		for _, p := range plan.Collisions {
			s.Unresolved = append(s.Unresolved, collisionUnresolved(p))
		}
		return o.finish(s, nil)
	}

	steps := []func(context.Context, *Plan, *Summary) error{
		o.deleteRedundant,
		o.movePending,
		o.resolveCollisions,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return o.finish(s, err)
		}
		if err := step(ctx, plan, s); err != nil {
			return o.finish(s, err)
		}
	}
	return o.finish(s, nil)
}

func checkDestinationRoot(dest string) error {
	info, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("destination %s: %w", dest, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination %s is not a directory", dest)
	}
	return nil
}

// handleUnwanted offers to delete the junk files as one batch.
func (o *Orchestrator) handleUnwanted(ctx context.Context, unwanted []scanner.FileEntry, s *Summary) error {
	o.out.Info("Unwanted files: %d", len(unwanted))
	if len(unwanted) == 0 {
		return nil
	}
	for _, f := range unwanted {
		o.out.Info("  %s", f.FullPath)
	}
	if o.opts.DryRun {
		return nil
	}

	if !o.confirm(s, fmt.Sprintf("Delete %d unwanted files?", len(unwanted))) {
		return nil
	}
	for _, f := range unwanted {
		if err := organizer.Delete(f.FullPath); err != nil {
			if err := o.fileError(s, f.FullPath, "", "delete", err); err != nil {
				return err
			}
			continue
		}
		s.DeletedUnwanted++
		o.forget(ctx, f.FullPath)
		o.log.Debug("deleted unwanted file", zap.String("path", f.FullPath))
		if err := o.record(audit.NewFileEvent(o.runID, audit.EventDeleteUnwanted, audit.StatusSuccess, f.FullPath, "")); err != nil {
			return err
		}
	}
	return nil
}

// deleteRedundant offers to delete sources whose identical copy already
// sits at the destination. Each file is compared again right before it is
// deleted.
func (o *Orchestrator) deleteRedundant(ctx context.Context, plan *Plan, s *Summary) error {
	if len(plan.Redundant) == 0 {
		return nil
	}
	o.out.Info("Files already present at their destination: %d", len(plan.Redundant))
	for _, p := range plan.Redundant {
		o.out.Info("  %s == %s", p.Source, p.Destination)
	}
	if !o.confirm(s, fmt.Sprintf("Delete %d redundant source files?", len(plan.Redundant))) {
		return nil
	}

	for _, p := range plan.Redundant {
		if err := ctx.Err(); err != nil {
			return err
		}
		kind, err := o.checkDestination(ctx, p, o.verifier)
		if err != nil {
			if err := o.fileError(s, p.Source, p.Destination, "compare", err); err != nil {
				return err
			}
			continue
		}
		if kind != kindRedundant {
			o.log.Warn("destination changed since planning, keeping source",
				zap.String("path", p.Source), zap.Stringer("kind", kind))
			s.Unresolved = append(s.Unresolved, collisionUnresolved(p))
			continue
		}
		if err := organizer.Delete(p.Source); err != nil {
			if err := o.fileError(s, p.Source, "", "delete", err); err != nil {
				return err
			}
			continue
		}
		s.DeletedRedundant++
		o.forget(ctx, p.Source)
		if err := o.record(audit.NewFileEvent(o.runID, audit.EventDeleteRedundant, audit.StatusSuccess, p.Source, p.Destination)); err != nil {
			return err
		}
	}
	return nil
}

// movePending offers to move every file whose destination is free.
func (o *Orchestrator) movePending(ctx context.Context, plan *Plan, s *Summary) error {
	if len(plan.Pending) == 0 {
		return nil
	}
	o.out.Info("Files to move: %d (%s)", len(plan.Pending), output.Bytes(placementBytes(plan.Pending)))
	for _, p := range plan.Pending {
		o.out.Info("  %s -> %s", p.Source, p.Destination)
	}
	if !o.confirm(s, fmt.Sprintf("Move %d files?", len(plan.Pending))) {
		return nil
	}

	for _, p := range plan.Pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		collided, err := o.moveOne(ctx, p, p.Destination, s)
		if err != nil {
			return err
		}
		if collided {
			plan.Collisions = append(plan.Collisions, p)
		}
	}
	return nil
}

// moveOne re-runs the duplicate check and moves p.Source to dest. It
// reports collided when dest was taken by different content since
// planning. An identical copy that appeared meanwhile is left for the next
// run to offer for deletion.
func (o *Orchestrator) moveOne(ctx context.Context, p Placement, dest string, s *Summary) (collided bool, err error) {
	check := p
	check.Destination = dest
	kind, err := o.checkDestination(ctx, check, o.verifier)
	if err != nil {
		return false, o.fileError(s, p.Source, dest, "compare", err)
	}
	switch kind {
	case kindRedundant:
		o.log.Info("identical copy appeared at destination, not moving", zap.String("path", p.Source))
		s.Redundant++
		return false, nil
	case kindCollision:
		return true, nil
	}

	result, err := organizer.Move(p.Source, dest)
	if err != nil {
		var moveErr *organizer.MoveError
		if errors.As(err, &moveErr) && moveErr.Type == organizer.DestinationExists {
			return true, nil
		}
		return false, o.fileError(s, p.Source, dest, "move", err)
	}

	s.Moved++
	s.MovedBytes += result.Bytes
	o.forget(ctx, p.Source, dest)
	o.log.Debug("moved", zap.String("path", p.Source), zap.String("destination", dest), zap.Bool("copied", result.Copied))
	return false, o.record(audit.NewFileEvent(o.runID, audit.EventMove, audit.StatusSuccess, p.Source, dest))
}

// resolveCollisions asks, one file at a time, what to do when the
// destination already holds different content.
func (o *Orchestrator) resolveCollisions(ctx context.Context, plan *Plan, s *Summary) error {
	options := []prompt.Option{
		{Name: "Skip (leave for manual review)", Value: choiceSkip},
		{Name: "Keep both (move under a new name)", Value: choiceKeepBoth},
		{Name: "Abort", Value: choiceAbort},
	}

	for _, p := range plan.Collisions {
		if o.aborted {
			s.Unresolved = append(s.Unresolved, collisionUnresolved(p))
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		choice, err := o.prompter.Choose(
			fmt.Sprintf("%s already exists with different content (source %s).", p.Destination, p.Source),
			options)
		if errors.Is(err, prompt.ErrAborted) {
			choice = choiceAbort
		} else if err != nil {
			o.log.Error("prompt failed", zap.Error(err))
			choice = choiceAbort
		}

		switch choice {
		case choiceKeepBoth:
			collided, err := o.moveOne(ctx, p, organizer.AlternatePath(p.Destination), s)
			if err != nil {
				return err
			}
			if collided {
				s.Unresolved = append(s.Unresolved, collisionUnresolved(p))
			}
		case choiceAbort:
			o.abort(s)
			s.Unresolved = append(s.Unresolved, collisionUnresolved(p))
		default:
			s.Unresolved = append(s.Unresolved, collisionUnresolved(p))
		}
	}
	return nil
}

// confirm asks a yes/no question unless the run was aborted. Abort, and a
// failing prompt, disable every later destructive step.
func (o *Orchestrator) confirm(s *Summary, message string) bool {
	if o.aborted {
		return false
	}
	answer, err := o.prompter.Confirm(message)
	if err != nil {
		o.log.Error("prompt failed", zap.Error(err))
		answer = prompt.Abort
	}
	o.log.Debug("confirmation", zap.String("message", message), zap.Stringer("answer", answer))
	if answer == prompt.Abort {
		o.abort(s)
	}
	return answer == prompt.Yes
}

// forgetter is implemented by hashers that keep stored hashes per path.
type forgetter interface {
	Forget(ctx context.Context, path string) error
}

// forget drops stored hashes for paths whose content just moved or vanished.
// A failure only costs a re-hash later.
func (o *Orchestrator) forget(ctx context.Context, paths ...string) {
	f, ok := o.hasher.(forgetter)
	if !ok {
		return
	}
	for _, path := range paths {
		if err := f.Forget(ctx, path); err != nil {
			o.log.Warn("cannot update hash cache", zap.String("path", path), zap.Error(err))
		}
	}
}

func (o *Orchestrator) abort(s *Summary) {
	o.aborted = true
	s.Aborted = true
}

// fileError records a per-file failure in the summary and the audit trail.
// Only an audit failure is returned.
func (o *Orchestrator) fileError(s *Summary, path, dest, op string, err error) error {
	s.addError(FileError{Path: path, Op: op, Err: err})
	o.log.Warn("file operation failed", zap.String("path", path), zap.String("op", op), zap.Error(err))
	return o.record(audit.NewErrorEvent(o.runID, path, dest, op, err))
}

func collisionUnresolved(p Placement) Unresolved {
	return Unresolved{
		Source: p.Source,
		Reason: ReasonDestinationOccupied,
		Explanations: []string{
			fmt.Sprintf("%s already exists with different content.", p.Destination),
		},
	}
}

func paths(files []scanner.FileEntry) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.FullPath
	}
	return out
}

func placementBytes(ps []Placement) int64 {
	var n int64
	for _, p := range ps {
		n += p.Size
	}
	return n
}
