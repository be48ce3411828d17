package audit

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditWriter appends events to the audit log. Every write is flushed and
// synced before returning, and a failed write is reported to the caller.
type AuditWriter struct {
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	logPath string
}

// NewAuditWriter creates the log directory if needed and opens the log for appending.
func NewAuditWriter(config AuditConfig) (*AuditWriter, error) {
	if config.LogDirectory == "" {
		return nil, errors.New("audit log directory is not configured")
	}
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(config.LogDirectory, LogFileName)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &AuditWriter{
		file:    file,
		writer:  bufio.NewWriter(file),
		logPath: logPath,
	}, nil
}

// GenerateRunID returns a new random UUID v4 run identifier.
func GenerateRunID() (RunID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return RunID(id.String()), nil
}

// LogPath returns the path of the log file being written.
func (w *AuditWriter) LogPath() string {
	return w.logPath
}

// StartRun generates a run ID and writes the RUN_START event.
func (w *AuditWriter) StartRun(appVersion, source, destination string) (RunID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	runID, err := GenerateRunID()
	if err != nil {
		return "", err
	}

	event := AuditEvent{
		Timestamp:       time.Now().UTC(),
		RunID:           runID,
		EventType:       EventRunStart,
		Status:          StatusSuccess,
		SourcePath:      source,
		DestinationPath: destination,
		Metadata: map[string]string{
			"appVersion": appVersion,
		},
	}
	if err := w.writeEventLocked(event); err != nil {
		return "", fmt.Errorf("failed to write RUN_START event: %w", err)
	}

	return runID, nil
}

// WriteEvent writes a single audit event to the log.
func (w *AuditWriter) WriteEvent(event AuditEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.writeEventLocked(event)
}

func (w *AuditWriter) writeEventLocked(event AuditEvent) error {
	data, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync event to disk: %w", err)
	}
	return nil
}

// EndRun records the run completion status and summary.
func (w *AuditWriter) EndRun(runID RunID, status RunStatus, summary RunSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		EventType: EventRunEnd,
		Status:    runStatusToOperationStatus(status),
		Metadata: map[string]string{
			"status":           string(status),
			"totalFiles":       itoa(summary.TotalFiles),
			"deletedUnwanted":  itoa(summary.DeletedUnwanted),
			"deletedRedundant": itoa(summary.DeletedRedundant),
			"moved":            itoa(summary.Moved),
			"unresolved":       itoa(summary.Unresolved),
			"errors":           itoa(summary.Errors),
		},
	}
	if err := w.writeEventLocked(event); err != nil {
		return fmt.Errorf("failed to write RUN_END event: %w", err)
	}

	return nil
}

func runStatusToOperationStatus(status RunStatus) OperationStatus {
	switch status {
	case RunStatusFailed, RunStatusAborted:
		return StatusFailure
	default:
		return StatusSuccess
	}
}

// Close flushes any buffered data and closes the audit log file.
func (w *AuditWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// errorType names the concrete error so the log can be grouped by failure kind.
func errorType(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}
