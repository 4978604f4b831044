package notify

import (
	"sync"
	"time"

	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// Level classifies a user-facing notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Notification is a single user-facing message, the server-side analogue of
// a client toast.
type Notification struct {
	Level       Level     `json:"level"`
	Message     string    `json:"message"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Notifier delivers user-facing notifications. Services depend on this
// interface; tests substitute a recording implementation.
type Notifier interface {
	Success(message, description string)
	Info(message, description string)
	Warn(message, description string)
	Error(message, description string)
}

const recentLimit = 32

// Service is the default Notifier. It logs every notification through zap
// and keeps a bounded buffer of recent ones for the status endpoint.
type Service struct {
	mutex  sync.RWMutex
	recent []Notification
}

// NewService creates a new notification service
func NewService() *Service {
	return &Service{}
}

func (s *Service) Success(message, description string) {
	s.push(LevelSuccess, message, description)
}

func (s *Service) Info(message, description string) {
	s.push(LevelInfo, message, description)
}

func (s *Service) Warn(message, description string) {
	s.push(LevelWarn, message, description)
}

func (s *Service) Error(message, description string) {
	s.push(LevelError, message, description)
}

// Recent returns a copy of the buffered notifications, newest last.
func (s *Service) Recent() []Notification {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]Notification, len(s.recent))
	copy(out, s.recent)
	return out
}

func (s *Service) push(level Level, message, description string) {
	n := Notification{
		Level:       level,
		Message:     message,
		Description: description,
		Timestamp:   time.Now(),
	}

	s.mutex.Lock()
	s.recent = append(s.recent, n)
	if len(s.recent) > recentLimit {
		s.recent = s.recent[len(s.recent)-recentLimit:]
	}
	s.mutex.Unlock()

	logger.Base().Info("notification",
		zap.String("level", string(level)),
		zap.String("message", message),
		zap.String("description", description),
	)
}
