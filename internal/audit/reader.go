package audit

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// maxLineSize bounds a single JSON line; events carry paths and short
// explanations so this is generous.
const maxLineSize = 1024 * 1024

// ReadEvents parses every event in a JSON Lines audit log, in file order.
// A malformed line is reported with its line number.
func ReadEvents(path string) ([]AuditEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e AuditEvent
		if err := e.UnmarshalJSON(line); err != nil {
			return nil, fmt.Errorf("failed to parse line %d of %s: %w", lineNum, path, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return events, nil
}

// AuditReader reads the log kept in a log directory.
type AuditReader struct {
	logDir string
}

// NewAuditReader creates a new AuditReader for the given log directory.
func NewAuditReader(logDir string) *AuditReader {
	return &AuditReader{logDir: logDir}
}

// LogPath returns the path of the active log file.
func (r *AuditReader) LogPath() string {
	return filepath.Join(r.logDir, LogFileName)
}

// GetRun returns all events for a specific run.
func (r *AuditReader) GetRun(runID RunID) ([]AuditEvent, error) {
	events, err := ReadEvents(r.LogPath())
	if err != nil {
		return nil, err
	}

	var runEvents []AuditEvent
	for _, e := range events {
		if e.RunID == runID {
			runEvents = append(runEvents, e)
		}
	}
	if len(runEvents) == 0 {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return runEvents, nil
}

// LatestRunID returns the ID of the most recently started run in the log.
func (r *AuditReader) LatestRunID() (RunID, error) {
	events, err := ReadEvents(r.LogPath())
	if err != nil {
		return "", err
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].EventType == EventRunStart {
			return events[i].RunID, nil
		}
	}
	return "", fmt.Errorf("no runs recorded in %s", r.LogPath())
}
