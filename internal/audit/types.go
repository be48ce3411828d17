// Package audit records what a movephotos run did to the file system.
// It implements an append-only JSON Lines log so every deletion and move
// can be traced back to the run and the operator decision that caused it.
package audit

import "time"

// RunID is a unique identifier for each program execution (UUID v4).
type RunID string

// EventType represents the type of audit event.
type EventType string

const (
	// Run lifecycle events
	EventRunStart EventType = "RUN_START"
	EventRunEnd   EventType = "RUN_END"

	// File operation events
	EventDeleteUnwanted  EventType = "DELETE_UNWANTED"
	EventDeleteRedundant EventType = "DELETE_REDUNDANT"
	EventMove            EventType = "MOVE"
	EventUnresolved      EventType = "UNRESOLVED"
	EventError           EventType = "ERROR"
)

// OperationStatus represents the outcome of an operation.
type OperationStatus string

const (
	StatusSuccess OperationStatus = "SUCCESS"
	StatusFailure OperationStatus = "FAILURE"
	StatusSkipped OperationStatus = "SKIPPED"
)

// ReasonCode explains why a file was left unresolved or skipped.
type ReasonCode string

const (
	ReasonNoDeduction   ReasonCode = "NO_DEDUCTION"
	ReasonConflicted    ReasonCode = "CONFLICTED"
	ReasonLowConfidence ReasonCode = "LOW_CONFIDENCE"
	ReasonCollision     ReasonCode = "COLLISION"
	ReasonDeclined      ReasonCode = "DECLINED"
)

// RunStatus represents the final status of a run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusAborted   RunStatus = "ABORTED"
	RunStatusFailed    RunStatus = "FAILED"
)

// ErrorDetails contains detailed information about an error.
type ErrorDetails struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
	Operation    string `json:"operation"`
}

// AuditEvent represents a single audit record for a file operation or run boundary.
type AuditEvent struct {
	Timestamp       time.Time         `json:"timestamp"`
	RunID           RunID             `json:"runId"`
	EventType       EventType         `json:"eventType"`
	Status          OperationStatus   `json:"status"`
	SourcePath      string            `json:"sourcePath,omitempty"`
	DestinationPath string            `json:"destinationPath,omitempty"`
	ReasonCode      ReasonCode        `json:"reasonCode,omitempty"`
	ErrorDetails    *ErrorDetails     `json:"errorDetails,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// RunSummary contains statistics for a completed run.
type RunSummary struct {
	TotalFiles       int `json:"totalFiles"`
	DeletedUnwanted  int `json:"deletedUnwanted"`
	DeletedRedundant int `json:"deletedRedundant"`
	Moved            int `json:"moved"`
	Unresolved       int `json:"unresolved"`
	Errors           int `json:"errors"`
}

// AuditConfig holds configuration for the audit system.
type AuditConfig struct {
	LogDirectory string `json:"logDirectory" yaml:"logDirectory" toml:"logDirectory"`
}

// LogFileName is the name of the active log inside the log directory.
const LogFileName = "movephotos-audit.jsonl"
