package audit

import (
	"encoding/json"
	"time"
)

// ISO8601Format is the time format used for audit event timestamps.
const ISO8601Format = time.RFC3339Nano

// eventJSON is the wire form of AuditEvent. Optional strings are pointers so
// empty values are omitted rather than written as "".
type eventJSON struct {
	Timestamp       string            `json:"timestamp"`
	RunID           RunID             `json:"runId"`
	EventType       EventType         `json:"eventType"`
	Status          OperationStatus   `json:"status"`
	SourcePath      *string           `json:"sourcePath,omitempty"`
	DestinationPath *string           `json:"destinationPath,omitempty"`
	ReasonCode      *ReasonCode       `json:"reasonCode,omitempty"`
	ErrorDetails    *ErrorDetails     `json:"errorDetails,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler for AuditEvent.
func (e AuditEvent) MarshalJSON() ([]byte, error) {
	ej := eventJSON{
		Timestamp:    e.Timestamp.UTC().Format(ISO8601Format),
		RunID:        e.RunID,
		EventType:    e.EventType,
		Status:       e.Status,
		ErrorDetails: e.ErrorDetails,
		Metadata:     e.Metadata,
	}
	if e.SourcePath != "" {
		ej.SourcePath = &e.SourcePath
	}
	if e.DestinationPath != "" {
		ej.DestinationPath = &e.DestinationPath
	}
	if e.ReasonCode != "" {
		rc := e.ReasonCode
		ej.ReasonCode = &rc
	}
	return json.Marshal(ej)
}

// UnmarshalJSON implements json.Unmarshaler for AuditEvent.
func (e *AuditEvent) UnmarshalJSON(data []byte) error {
	var ej eventJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return err
	}

	t, err := time.Parse(ISO8601Format, ej.Timestamp)
	if err != nil {
		return err
	}

	*e = AuditEvent{
		Timestamp:    t,
		RunID:        ej.RunID,
		EventType:    ej.EventType,
		Status:       ej.Status,
		ErrorDetails: ej.ErrorDetails,
		Metadata:     ej.Metadata,
	}
	if ej.SourcePath != nil {
		e.SourcePath = *ej.SourcePath
	}
	if ej.DestinationPath != nil {
		e.DestinationPath = *ej.DestinationPath
	}
	if ej.ReasonCode != nil {
		e.ReasonCode = *ej.ReasonCode
	}
	return nil
}

// NewFileEvent builds an event for a single file operation.
func NewFileEvent(runID RunID, eventType EventType, status OperationStatus, source, dest string) AuditEvent {
	return AuditEvent{
		Timestamp:       time.Now().UTC(),
		RunID:           runID,
		EventType:       eventType,
		Status:          status,
		SourcePath:      source,
		DestinationPath: dest,
	}
}

// NewUnresolvedEvent records a file the run could not place, with the
// explanations that were gathered for it.
func NewUnresolvedEvent(runID RunID, source string, reason ReasonCode, explanations []string) AuditEvent {
	e := NewFileEvent(runID, EventUnresolved, StatusSkipped, source, "")
	e.ReasonCode = reason
	if len(explanations) > 0 {
		e.Metadata = make(map[string]string, len(explanations))
		for i, expl := range explanations {
			e.Metadata["explanation"+itoa(i)] = expl
		}
	}
	return e
}

// NewErrorEvent records a failed operation on a file.
func NewErrorEvent(runID RunID, source, dest, operation string, err error) AuditEvent {
	e := NewFileEvent(runID, EventError, StatusFailure, source, dest)
	e.ErrorDetails = &ErrorDetails{
		ErrorType:    errorType(err),
		ErrorMessage: err.Error(),
		Operation:    operation,
	}
	return e
}
