package orchestrator

import (
	"fmt"
	"time"

	"movephotos/internal/audit"
	"movephotos/internal/output"
)

// Summary contains the counts and per-file reports of a run.
type Summary struct {
	Source      string
	Destination string
	RunID       audit.RunID
	DryRun      bool

	TotalFiles       int
	SourceBytes      int64
	Unwanted         int
	DeletedUnwanted  int
	HighConfidence   int
	Redundant        int // identical copy already at the destination
	DeletedRedundant int
	Moved            int
	MovedBytes       int64

	Unresolved []Unresolved
	Errors     []FileError

	// Dry-run only: what a real run would offer to do.
	PlannedDeletions []string
	PlannedMoves     []Placement

	Aborted  bool // the operator aborted a destructive step
	Failed   bool // the run stopped early on an error
	Duration time.Duration
}

func (s *Summary) addError(fe FileError) {
	s.Errors = append(s.Errors, fe)
}

// HasErrors returns true if any file operation failed.
func (s *Summary) HasErrors() bool {
	return len(s.Errors) > 0
}

// ExitCode is 0 only for a run that finished without file errors and
// without an operator abort.
func (s *Summary) ExitCode() int {
	if s.HasErrors() || s.Aborted || s.Failed {
		return 1
	}
	return 0
}

// PrintSummary returns the one-line count summary.
func (s *Summary) PrintSummary() string {
	return fmt.Sprintf("Processed %d files: %d high confidence, %d unresolved, %d errors",
		s.TotalFiles, s.HighConfidence, len(s.Unresolved), len(s.Errors))
}

func (s *Summary) auditSummary() audit.RunSummary {
	return audit.RunSummary{
		TotalFiles:       s.TotalFiles,
		DeletedUnwanted:  s.DeletedUnwanted,
		DeletedRedundant: s.DeletedRedundant,
		Moved:            s.Moved,
		Unresolved:       len(s.Unresolved),
		Errors:           len(s.Errors),
	}
}

// Print writes the full report. Counts are always printed; every
// unresolved file is listed with the reason and what the strategies said.
func (s *Summary) Print(out *output.Output) {
	if s.DryRun {
		out.Heading("Dry run: planned actions")
		for _, path := range s.PlannedDeletions {
			out.Info("  delete %s", path)
		}
		for _, p := range s.PlannedMoves {
			out.Info("  move   %s -> %s", p.Source, p.Destination)
		}
		if len(s.PlannedDeletions) == 0 && len(s.PlannedMoves) == 0 {
			out.Info("  nothing to do")
		}
	}

	if len(s.Unresolved) > 0 {
		out.Heading(fmt.Sprintf("Unresolved files (%d)", len(s.Unresolved)))
		for _, u := range s.Unresolved {
			out.Warn("%s [%s]", u.Source, u.Reason)
			for _, e := range u.Explanations {
				out.Detail("%s", e)
			}
		}
	}

	for _, fe := range s.Errors {
		out.Error("error: %v", fe)
	}

	out.Heading("Summary")
	out.Info("Source files:            %d (%s)", s.TotalFiles, output.Bytes(s.SourceBytes))
	out.Info("Unwanted files:          %d (deleted %d)", s.Unwanted, s.DeletedUnwanted)
	out.Info("High confidence files:   %d", s.HighConfidence)
	out.Info("  already at destination %d (deleted %d)", s.Redundant, s.DeletedRedundant)
	out.Info("  moved                  %d (%s)", s.Moved, output.Bytes(s.MovedBytes))
	out.Info("Unresolved files:        %d", len(s.Unresolved))
	out.Info("Errors:                  %d", len(s.Errors))
	if s.RunID != "" {
		out.Verbose("Audit run ID: %s", s.RunID)
	}
	out.Verbose("Duration: %s", s.Duration.Round(time.Millisecond))
	if s.Aborted {
		out.Warn("Aborted by operator: remaining destructive steps were skipped.")
	}
}
