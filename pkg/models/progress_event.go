package models

import "time"

// ProgressEventType classifies events on a session's progress channel.
type ProgressEventType string

const (
	// ProgressConnection is sent once when a channel is opened.
	ProgressConnection ProgressEventType = "connection"

	// ProgressHeartbeat is sent on a fixed interval to keep the transport
	// alive.
	ProgressHeartbeat ProgressEventType = "heartbeat"

	// ProgressStep reports an orchestration step (generating, executing a
	// tool, responding).
	ProgressStep ProgressEventType = "progress"
)

// ProgressEvent is a real-time step report pushed to a session's progress
// channel. Events are never persisted and delivery is at-most-once: if no
// channel is registered for the session the event is discarded.
type ProgressEvent struct {
	SessionID string            `json:"session_id"`
	Type      ProgressEventType `json:"type"`
	Step      string            `json:"step,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewStepEvent builds a progress step event stamped with the current time.
func NewStepEvent(sessionID, step, message string) ProgressEvent {
	return ProgressEvent{
		SessionID: sessionID,
		Type:      ProgressStep,
		Step:      step,
		Message:   message,
		Timestamp: time.Now(),
	}
}
