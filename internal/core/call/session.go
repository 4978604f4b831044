package call

import "context"

// Status represents the call session status
type Status string

const (
	StatusInactive Status = "inactive"
	StatusActive   Status = "active"
	StatusLoading  Status = "loading"
)

// SessionEventName identifies a provider session event
type SessionEventName string

const (
	EventCallStart   SessionEventName = "call-start"
	EventCallEnd     SessionEventName = "call-end"
	EventSpeechStart SessionEventName = "speech-start"
	EventSpeechEnd   SessionEventName = "speech-end"
	EventVolumeLevel SessionEventName = "volume-level"
	EventError       SessionEventName = "error"
)

// CallEndPayload is the provider's call-end event payload. EndedReason may
// be empty when the provider does not report one.
type CallEndPayload struct {
	EndedReason string `json:"endedReason,omitempty"`
}

// ErrorPayload is the provider's error event payload.
type ErrorPayload struct {
	Message string `json:"message,omitempty"`
}

// VoiceSession is a single realtime connection to the voice provider. Start
// opens the session; lifecycle progress arrives through registered event
// handlers, not through the Start return value. Implementations must deliver
// events for one session sequentially.
type VoiceSession interface {
	Start(ctx context.Context, assistantID string, variableValues map[string]string) error
	Stop() error
	On(event SessionEventName, handler func(payload interface{}))
	RemoveAllHandlers()
}

// SessionFactory constructs a provider session from the public key.
type SessionFactory func(publicKey string) (VoiceSession, error)
