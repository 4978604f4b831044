package event

import (
	"time"
)

// Type represents the type of session event
type Type string

// Call session lifecycle and telemetry events
const (
	CallStart   Type = "call.start"
	CallEnd     Type = "call.end"
	SpeechStart Type = "call.speech_start"
	SpeechEnd   Type = "call.speech_end"
	VolumeLevel Type = "call.volume_level"
	CallError   Type = "call.error"
)

// SessionEvent represents a call-session event
type SessionEvent struct {
	Type      Type        `json:"type"`
	SessionID string      `json:"session_id"`
	ClerkID   string      `json:"clerk_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     error       `json:"error,omitempty"`
}

// CallEndData carries the provider's termination reason, when it sent one.
type CallEndData struct {
	SessionID   string `json:"session_id"`
	EndedReason string `json:"ended_reason,omitempty"`
}

// VolumeData carries a normalized volume sample in [0,1].
type VolumeData struct {
	SessionID string  `json:"session_id"`
	Level     float64 `json:"level"`
}

// ErrorData carries provider error details.
type ErrorData struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// NewSessionEvent creates a new session event
func NewSessionEvent(eventType Type, sessionID string) *SessionEvent {
	return &SessionEvent{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}

// WithClerkID adds the user's identity key to the event
func (e *SessionEvent) WithClerkID(clerkID string) *SessionEvent {
	e.ClerkID = clerkID
	return e
}

// WithData adds data to the event
func (e *SessionEvent) WithData(data interface{}) *SessionEvent {
	e.Data = data
	return e
}

// WithError adds error to the event
func (e *SessionEvent) WithError(err error) *SessionEvent {
	e.Error = err
	return e
}

// IsError returns true if the event contains an error
func (e *SessionEvent) IsError() bool {
	return e.Error != nil
}

// GetCallEndData returns call-end event data if available
func (e *SessionEvent) GetCallEndData() (*CallEndData, bool) {
	if data, ok := e.Data.(*CallEndData); ok {
		return data, true
	}
	return nil, false
}

// GetVolumeData returns volume event data if available
func (e *SessionEvent) GetVolumeData() (*VolumeData, bool) {
	if data, ok := e.Data.(*VolumeData); ok {
		return data, true
	}
	return nil, false
}
