package vapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/plincohq/onboarding-service/internal/core/call"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

const (
	defaultBaseURL   = "wss://realtime.vapi.ai"
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

// startMessage opens a call on the realtime channel
type startMessage struct {
	Type           string            `json:"type"`
	AssistantID    string            `json:"assistantId"`
	VariableValues map[string]string `json:"variableValues,omitempty"`
}

// stopMessage requests the provider to end the call
type stopMessage struct {
	Type string `json:"type"`
}

// eventFrame is a single provider event on the realtime channel
type eventFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is a realtime voice session over a provider websocket. It
// implements call.VoiceSession: Start dials and opens the call, provider
// events are delivered through registered handlers by a single read loop.
type Client struct {
	baseURL   string
	publicKey string

	mutex    sync.Mutex
	conn     *websocket.Conn
	handlers map[call.SessionEventName]func(payload interface{})
	closed   bool
}

// NewClient creates a realtime session client for the given public key.
// baseURL may be empty to use the provider default.
func NewClient(publicKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:   baseURL,
		publicKey: publicKey,
		handlers:  make(map[call.SessionEventName]func(payload interface{})),
	}
}

// Factory returns a call.SessionFactory that builds realtime clients
// against the given base URL.
func Factory(baseURL string) call.SessionFactory {
	return func(publicKey string) (call.VoiceSession, error) {
		if publicKey == "" {
			return nil, fmt.Errorf("public key is required")
		}
		return NewClient(publicKey, baseURL), nil
	}
}

// Start dials the realtime endpoint and opens a call with the assistant.
// Lifecycle progress (call-start, call-end, errors) arrives through the
// registered event handlers, not through the return value.
func (c *Client) Start(ctx context.Context, assistantID string, variableValues map[string]string) error {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid realtime base url: %w", err)
	}
	endpoint.Path = "/call"
	query := endpoint.Query()
	query.Set("publicKey", c.publicKey)
	endpoint.RawQuery = query.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial realtime endpoint: %w", err)
	}

	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		conn.Close()
		return fmt.Errorf("session is closed")
	}
	c.conn = conn
	c.mutex.Unlock()

	msg := startMessage{
		Type:           "start",
		AssistantID:    assistantID,
		VariableValues: variableValues,
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send start message: %w", err)
	}

	go c.readLoop(conn)
	return nil
}

// Stop requests the provider to end the call and closes the connection.
// The call-end event is still delivered by the read loop (or synthesized
// on socket close) so the engine's status keeps a single source of truth.
func (c *Client) Stop() error {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()

	if conn == nil {
		return nil
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(stopMessage{Type: "stop"}); err != nil {
		// The socket may already be gone; closing is all that is left.
		logger.Base().Debug("failed to send stop message", zap.Error(err))
	}
	return conn.Close()
}

// On registers a handler for a provider event, replacing any previous one.
func (c *Client) On(event call.SessionEventName, handler func(payload interface{})) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.handlers[event] = handler
}

// RemoveAllHandlers drops every registered handler. Events read after this
// point are discarded.
func (c *Client) RemoveAllHandlers() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.handlers = make(map[call.SessionEventName]func(payload interface{}))
	c.closed = true
}

func (c *Client) readLoop(conn *websocket.Conn) {
	endDelivered := false

	for {
		var frame eventFrame
		if err := conn.ReadJSON(&frame); err != nil {
			// Socket closed underneath us; synthesize an end event if the
			// provider never sent one so the engine does not hang in active.
			if !endDelivered {
				c.dispatch(call.EventCallEnd, &call.CallEndPayload{})
			}
			return
		}

		switch call.SessionEventName(frame.Type) {
		case call.EventCallStart:
			c.dispatch(call.EventCallStart, nil)
		case call.EventCallEnd:
			payload := &call.CallEndPayload{}
			if len(frame.Payload) > 0 {
				if err := json.Unmarshal(frame.Payload, payload); err != nil {
					logger.Base().Warn("malformed call-end payload", zap.Error(err))
				}
			}
			endDelivered = true
			c.dispatch(call.EventCallEnd, payload)
		case call.EventSpeechStart:
			c.dispatch(call.EventSpeechStart, nil)
		case call.EventSpeechEnd:
			c.dispatch(call.EventSpeechEnd, nil)
		case call.EventVolumeLevel:
			var level float64
			if err := json.Unmarshal(frame.Payload, &level); err != nil {
				logger.Base().Warn("malformed volume payload", zap.Error(err))
				continue
			}
			c.dispatch(call.EventVolumeLevel, level)
		case call.EventError:
			payload := &call.ErrorPayload{}
			if len(frame.Payload) > 0 {
				_ = json.Unmarshal(frame.Payload, payload)
			}
			c.dispatch(call.EventError, payload)
		default:
			logger.Base().Debug("unhandled realtime event", zap.String("type", frame.Type))
		}
	}
}

func (c *Client) dispatch(event call.SessionEventName, payload interface{}) {
	c.mutex.Lock()
	handler := c.handlers[event]
	c.mutex.Unlock()

	if handler != nil {
		handler(payload)
	}
}
