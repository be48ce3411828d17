package orchestrator

import (
	"fmt"

	"go.uber.org/zap"

	"movephotos/internal/audit"
)

// auditing reports whether this run writes an audit trail. Dry runs never do.
func (o *Orchestrator) auditing() bool {
	return o.opts.Audit != nil && !o.opts.DryRun
}

func (o *Orchestrator) startAudit() error {
	if !o.auditing() {
		return nil
	}
	runID, err := o.opts.Audit.StartRun(o.opts.AppVersion, o.opts.Source, o.opts.Destination)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	o.runID = runID
	o.log.Info("audit run started", zap.String("runId", string(runID)))
	return nil
}

// record appends an event to the audit trail. A failed write stops the
// run: nothing destructive happens without a record of it.
func (o *Orchestrator) record(e audit.AuditEvent) error {
	if !o.auditing() {
		return nil
	}
	if err := o.opts.Audit.WriteEvent(e); err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	return nil
}

var auditReasons = map[Reason]audit.ReasonCode{
	ReasonNoDeduction:         audit.ReasonNoDeduction,
	ReasonConflicted:          audit.ReasonConflicted,
	ReasonLowConfidence:       audit.ReasonLowConfidence,
	ReasonDestinationOccupied: audit.ReasonCollision,
}

// finish closes the run: unresolved files are recorded and RUN_END carries
// the final status. runErr is returned unchanged (or joined with an audit
// failure) so callers still get the summary gathered so far.
func (o *Orchestrator) finish(s *Summary, runErr error) (*Summary, error) {
	s.RunID = o.runID
	if runErr != nil {
		s.Failed = true
	}
	if !o.auditing() || o.runID == "" {
		return s, runErr
	}

	for _, u := range s.Unresolved {
		if err := o.opts.Audit.WriteEvent(audit.NewUnresolvedEvent(o.runID, u.Source, auditReasons[u.Reason], u.Explanations)); err != nil {
			return s, joinErr(runErr, fmt.Errorf("audit log: %w", err))
		}
	}

	status := audit.RunStatusCompleted
	switch {
	case runErr != nil:
		status = audit.RunStatusFailed
	case s.Aborted:
		status = audit.RunStatusAborted
	}
	if err := o.opts.Audit.EndRun(o.runID, status, s.auditSummary()); err != nil {
		return s, joinErr(runErr, fmt.Errorf("audit log: %w", err))
	}
	return s, runErr
}

func joinErr(first, second error) error {
	if first == nil {
		return second
	}
	return fmt.Errorf("%w (and %v)", first, second)
}
