package call

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/plincohq/onboarding-service/internal/core/event"
	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/plincohq/onboarding-service/internal/notify"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// Snapshot is a point-in-time view of the engine state.
type Snapshot struct {
	SessionID   string  `json:"session_id,omitempty"`
	Status      Status  `json:"status"`
	IsSpeaking  bool    `json:"is_speaking"`
	VolumeLevel float64 `json:"volume_level"`
	BlobScale   float64 `json:"blob_scale"`
}

// Engine owns a single realtime voice connection. Status transitions are
// driven only by connection lifecycle events; callers request start/stop but
// never set status directly. The engine is safe for concurrent use.
type Engine struct {
	publicKey   string
	assistantID string
	clerkID     string
	factory     SessionFactory
	notifier    notify.Notifier
	bus         event.Bus

	mutex       sync.Mutex
	session     VoiceSession
	sessionID   string
	status      Status
	isSpeaking  bool
	volumeLevel float64

	// endedNaturally is a one-shot flag set by the end handler and cleared
	// by the next error handler invocation. It suppresses the generic error
	// notification the provider sometimes emits right after a graceful end.
	endedNaturally bool

	// disposed guards against state updates after teardown; late provider
	// callbacks and retry results are discarded, not cancelled.
	disposed bool
}

// NewEngine creates a call session engine for one user. The provider session
// is built lazily on the first Start so a misconfigured engine fails closed
// there. Every published event carries the clerkID so observers can attribute
// it without holding engine state.
func NewEngine(publicKey, assistantID, clerkID string, factory SessionFactory, notifier notify.Notifier, bus event.Bus) *Engine {
	return &Engine{
		publicKey:   publicKey,
		assistantID: assistantID,
		clerkID:     clerkID,
		factory:     factory,
		notifier:    notifier,
		bus:         bus,
		status:      StatusInactive,
	}
}

// Start requests a new call. variableValues are free-text launch variables
// (name, email, phone, work hours) the remote assistant can read. A second
// Start while a call is loading or active is ignored; only one session may
// be outstanding.
func (e *Engine) Start(ctx context.Context, variableValues map[string]string) error {
	e.mutex.Lock()

	if e.disposed {
		e.mutex.Unlock()
		return fmt.Errorf("engine disposed: %w", domain.ErrConnection)
	}

	if e.publicKey == "" || e.assistantID == "" {
		e.mutex.Unlock()
		e.notifier.Error("Voice provider configuration missing", "Please check environment variables.")
		return fmt.Errorf("voice provider public key or assistant id missing: %w", domain.ErrConfiguration)
	}

	if e.status == StatusLoading || e.status == StatusActive {
		status := e.status
		e.mutex.Unlock()
		logger.Base().Warn("start requested while call in progress", zap.String("status", string(status)))
		return nil
	}

	if e.session == nil {
		session, err := e.factory(e.publicKey)
		if err != nil {
			e.mutex.Unlock()
			logger.Base().Error("failed to create voice session", zap.Error(err))
			e.notifier.Error("Failed to start call. Please try again.", "")
			return fmt.Errorf("failed to create voice session: %w: %w", err, domain.ErrConnection)
		}
		e.session = session
		e.attachHandlers(session)
	}

	e.status = StatusLoading
	e.sessionID = uuid.New().String()
	session := e.session
	assistantID := e.assistantID
	e.mutex.Unlock()

	if err := session.Start(ctx, assistantID, variableValues); err != nil {
		e.mutex.Lock()
		e.status = StatusInactive
		e.mutex.Unlock()
		logger.Base().Error("failed to start call", zap.Error(err))
		e.notifier.Error("Failed to start call. Please try again.", "")
		return fmt.Errorf("failed to start call: %w: %w", err, domain.ErrConnection)
	}

	// active is set by the session's call-start event, not here
	return nil
}

// EndCall asks the connection to close. The transition to inactive is driven
// by the session's own end event so status has a single source of truth.
func (e *Engine) EndCall() error {
	e.mutex.Lock()
	session := e.session
	e.mutex.Unlock()

	if session == nil {
		return nil
	}
	return session.Stop()
}

// Dispose tears the engine down: removes every event subscription and stops
// the connection unconditionally. No state updates are applied afterwards.
func (e *Engine) Dispose() {
	e.mutex.Lock()
	if e.disposed {
		e.mutex.Unlock()
		return
	}
	e.disposed = true
	session := e.session
	e.session = nil
	e.mutex.Unlock()

	if session != nil {
		session.RemoveAllHandlers()
		if err := session.Stop(); err != nil {
			logger.Base().Warn("failed to stop session during dispose", zap.Error(err))
		}
	}
}

// Snapshot returns the current engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return Snapshot{
		SessionID:   e.sessionID,
		Status:      e.status,
		IsSpeaking:  e.isSpeaking,
		VolumeLevel: e.volumeLevel,
		BlobScale:   CalculateBlobScale(e.status, e.isSpeaking, e.volumeLevel),
	}
}

// Status returns the current session status.
func (e *Engine) Status() Status {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.status
}

func (e *Engine) attachHandlers(session VoiceSession) {
	session.On(EventCallStart, e.handleCallStart)
	session.On(EventCallEnd, e.handleCallEnd)
	session.On(EventSpeechStart, e.handleSpeechStart)
	session.On(EventSpeechEnd, e.handleSpeechEnd)
	session.On(EventVolumeLevel, e.handleVolumeLevel)
	session.On(EventError, e.handleError)
}

func (e *Engine) handleCallStart(_ interface{}) {
	e.mutex.Lock()
	if e.disposed {
		e.mutex.Unlock()
		return
	}
	e.status = StatusActive
	e.endedNaturally = false // reset flag for the new call
	sessionID := e.sessionID
	e.mutex.Unlock()

	e.notifier.Success("Connected to scheduling assistant!", "")
	e.bus.PublishEvent(event.NewSessionEvent(event.CallStart, sessionID).
		WithClerkID(e.clerkID))
}

func (e *Engine) handleCallEnd(payload interface{}) {
	e.mutex.Lock()
	if e.disposed {
		e.mutex.Unlock()
		return
	}
	e.status = StatusInactive
	e.isSpeaking = false
	e.volumeLevel = 0

	// Mark that the call ended naturally to suppress a trailing error toast
	e.endedNaturally = true
	sessionID := e.sessionID
	e.mutex.Unlock()

	endedReason := ""
	if p, ok := payload.(*CallEndPayload); ok && p != nil {
		endedReason = p.EndedReason
	}

	if endedReason == "" {
		e.notifier.Info("Call ended.", "")
	} else {
		switch Classify(endedReason) {
		case OutcomeSuccessful:
			e.notifier.Success("Call completed successfully!", "")
		case OutcomeUserInitiated:
			// no notification for a user-initiated end
		case OutcomeError:
			e.notifier.Error("Call ended unexpectedly. Please try again.", "")
		default:
			e.notifier.Info("Call ended.", "")
		}
	}

	e.bus.PublishEvent(event.NewSessionEvent(event.CallEnd, sessionID).
		WithClerkID(e.clerkID).
		WithData(&event.CallEndData{SessionID: sessionID, EndedReason: endedReason}))
}

func (e *Engine) handleSpeechStart(_ interface{}) {
	e.mutex.Lock()
	if e.disposed {
		e.mutex.Unlock()
		return
	}
	e.isSpeaking = true
	sessionID := e.sessionID
	e.mutex.Unlock()

	e.bus.PublishEvent(event.NewSessionEvent(event.SpeechStart, sessionID).
		WithClerkID(e.clerkID))
}

func (e *Engine) handleSpeechEnd(_ interface{}) {
	e.mutex.Lock()
	if e.disposed {
		e.mutex.Unlock()
		return
	}
	e.isSpeaking = false
	e.volumeLevel = 0
	sessionID := e.sessionID
	e.mutex.Unlock()

	e.bus.PublishEvent(event.NewSessionEvent(event.SpeechEnd, sessionID).
		WithClerkID(e.clerkID))
}

func (e *Engine) handleVolumeLevel(payload interface{}) {
	raw, ok := payload.(float64)
	if !ok {
		return
	}
	level := NormalizeVolume(raw, DefaultVolumeMultiplier)

	e.mutex.Lock()
	if e.disposed {
		e.mutex.Unlock()
		return
	}
	e.volumeLevel = level
	sessionID := e.sessionID
	e.mutex.Unlock()

	e.bus.PublishEvent(event.NewSessionEvent(event.VolumeLevel, sessionID).
		WithClerkID(e.clerkID).
		WithData(&event.VolumeData{SessionID: sessionID, Level: level}))
}

func (e *Engine) handleError(payload interface{}) {
	e.mutex.Lock()
	if e.disposed {
		e.mutex.Unlock()
		return
	}

	// A graceful end is often followed by a spurious provider error event;
	// consume the one-shot flag instead of surfacing it.
	if e.endedNaturally {
		e.endedNaturally = false
		e.mutex.Unlock()
		return
	}

	e.status = StatusInactive
	sessionID := e.sessionID
	e.mutex.Unlock()

	message := ""
	if p, ok := payload.(*ErrorPayload); ok && p != nil {
		message = p.Message
	}
	logger.Base().Error("voice session error", zap.String("session_id", sessionID), zap.String("message", message))

	e.notifier.Error("Connection failed. Please try again later.", "")
	e.bus.PublishEvent(event.NewSessionEvent(event.CallError, sessionID).
		WithClerkID(e.clerkID).
		WithError(fmt.Errorf("voice session error: %s", message)).
		WithData(&event.ErrorData{SessionID: sessionID, Message: message}))
}
