package cli

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"movephotos/internal/audit"
)

func (a *app) historyCommand() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "history [flags]",
		Short: "Show what a past run deleted and moved",
		Long: `Prints the audit trail of one run: every deletion, move, unresolved
file and error, in the order they happened. Without --run the most recent
run is shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistory(cmd, audit.RunID(runID))
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run ID to show (default: the latest run)")
	cmd.Flags().StringVar(&a.auditDir, "audit-dir", "", "Directory holding the audit log (overrides config)")
	return cmd
}

func (a *app) runHistory(cmd *cobra.Command, runID audit.RunID) error {
	cfg, err := a.configuration(cmd)
	if err != nil {
		return err
	}
	if cfg.Audit == nil || cfg.Audit.LogDirectory == "" {
		return errors.New("no audit log directory: pass --audit-dir or set audit.logDirectory")
	}

	reader := audit.NewAuditReader(cfg.Audit.LogDirectory)
	if runID == "" {
		if runID, err = reader.LatestRunID(); err != nil {
			return err
		}
	}
	events, err := reader.GetRun(runID)
	if err != nil {
		return err
	}

	out := a.output()
	out.Heading("Run " + string(runID))
	out.Verbose("Log: %s", reader.LogPath())
	for _, e := range events {
		out.Info("%s  %s", e.Timestamp.Local().Format(time.DateTime), describe(e))
		if e.ErrorDetails != nil {
			out.Detail("%s: %s", e.ErrorDetails.Operation, e.ErrorDetails.ErrorMessage)
		}
		if len(e.Metadata) > 0 {
			keys := make([]string, 0, len(e.Metadata))
			for k := range e.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				out.Detail("%s: %s", k, e.Metadata[k])
			}
		}
	}
	a.exitCode = 0
	return nil
}

// describe renders one event on a single line.
func describe(e audit.AuditEvent) string {
	var b strings.Builder
	b.WriteString(string(e.EventType))
	if e.Status == audit.StatusFailure {
		b.WriteString(" (failed)")
	}
	if e.SourcePath != "" {
		b.WriteString(" " + e.SourcePath)
	}
	if e.DestinationPath != "" {
		b.WriteString(" -> " + e.DestinationPath)
	}
	if e.ReasonCode != "" {
		b.WriteString(" [" + strings.ToLower(string(e.ReasonCode)) + "]")
	}
	return b.String()
}
