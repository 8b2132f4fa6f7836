package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// ValuationStartedData contains data for ValuationStarted events
type ValuationStartedData struct {
	Vehicle string `json:"vehicle"`
	Goal    string `json:"goal,omitempty"`
}

// EventType returns the event type for ValuationStartedData
func (d *ValuationStartedData) EventType() EventType {
	return ValuationStarted
}

// ValuationCompletedData contains data for ValuationCompleted events
type ValuationCompletedData struct {
	ReportID      string  `json:"report_id"`
	Vehicle       string  `json:"vehicle"`
	BaseValue     float64 `json:"base_value"`
	AdjustedValue float64 `json:"adjusted_value"`
	FlipScore     int     `json:"flip_score"`
	DataSource    string  `json:"data_source"`
	FromCache     bool    `json:"from_cache,omitempty"`
	DurationMS    int64   `json:"duration_ms,omitempty"`
}

// EventType returns the event type for ValuationCompletedData
func (d *ValuationCompletedData) EventType() EventType {
	return ValuationCompleted
}

// ValuationFailedData contains data for ValuationFailed events
type ValuationFailedData struct {
	Vehicle string `json:"vehicle"`
	Error   string `json:"error"`
}

// EventType returns the event type for ValuationFailedData
func (d *ValuationFailedData) EventType() EventType {
	return ValuationFailed
}

// DiscoveryCompletedData contains data for DiscoveryCompleted events.
// Reason is set when discovery fell back to the deterministic estimator.
type DiscoveryCompletedData struct {
	Vehicle   string  `json:"vehicle"`
	BaseValue float64 `json:"base_value"`
	Source    string  `json:"source"`
	Reason    string  `json:"reason,omitempty"`
}

// EventType returns the event type for DiscoveryCompletedData
func (d *DiscoveryCompletedData) EventType() EventType {
	return DiscoveryCompleted
}

// SignalsResolvedData contains data for SignalsResolved events
type SignalsResolvedData struct {
	Vehicle    string `json:"vehicle"`
	Demand     string `json:"demand"`
	Trend      string `json:"trend"`
	DaysToSell int    `json:"days_to_sell,omitempty"`
	Source     string `json:"source,omitempty"`
}

// EventType returns the event type for SignalsResolvedData
func (d *SignalsResolvedData) EventType() EventType {
	return SignalsResolved
}

// CacheHitData contains data for CacheHit events
type CacheHitData struct {
	Fingerprint string  `json:"fingerprint"`
	AgeSeconds  float64 `json:"age_seconds"`
}

// EventType returns the event type for CacheHitData
func (d *CacheHitData) EventType() EventType {
	return CacheHit
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string  `json:"key"`
	SizeBytes int64   `json:"size_bytes"`
	Duration  float64 `json:"duration"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// SystemStatusChangedData contains data for SystemStatusChanged events
type SystemStatusChangedData struct {
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp"`
}

// EventType returns the event type for SystemStatusChangedData
func (d *SystemStatusChangedData) EventType() EventType {
	return SystemStatusChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// JobStatusData contains data for job lifecycle events
type JobStatusData struct {
	JobID     string                 `json:"job_id,omitempty"`
	JobType   string                 `json:"job_type"`
	Status    string                 `json:"status"` // "started", "completed", "failed"
	Error     string                 `json:"error,omitempty"`
	Duration  float64                `json:"duration,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventType returns the event type for JobStatusData
// Note: The actual event type is determined by the Status field
func (d *JobStatusData) EventType() EventType {
	switch d.Status {
	case "completed":
		return JobCompleted
	case "failed":
		return JobFailed
	default:
		return JobStarted
	}
}

// EventWithData represents an event with typed data
type EventWithData struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for EventWithData
func (e *EventWithData) MarshalJSON() ([]byte, error) {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	// Marshal the data separately
	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for EventWithData
func (e *EventWithData) UnmarshalJSON(data []byte) error {
	type Alias EventWithData
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	// Unmarshal data based on event type
	if len(aux.Data) > 0 {
		var eventData EventData
		switch aux.Type {
		case ValuationStarted:
			eventData = &ValuationStartedData{}
		case ValuationCompleted:
			eventData = &ValuationCompletedData{}
		case ValuationFailed:
			eventData = &ValuationFailedData{}
		case DiscoveryCompleted:
			eventData = &DiscoveryCompletedData{}
		case SignalsResolved:
			eventData = &SignalsResolvedData{}
		case CacheHit:
			eventData = &CacheHitData{}
		case BackupCompleted:
			eventData = &BackupCompletedData{}
		case SystemStatusChanged:
			eventData = &SystemStatusChangedData{}
		case ErrorOccurred:
			eventData = &ErrorEventData{}
		case JobStarted, JobCompleted, JobFailed:
			eventData = &JobStatusData{}
		default:
			// For unknown types, use raw map
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			// Convert to generic data type
			eventData = &GenericEventData{Type: aux.Type, Data: rawData}
		}

		if eventData != nil {
			if err := json.Unmarshal(aux.Data, eventData); err != nil {
				return err
			}
			e.Data = eventData
		}
	}

	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
