package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// Handler represents a function that handles session events
type Handler func(event *SessionEvent)

// Bus defines the interface for event bus operations
type Bus interface {
	PublishEvent(event *SessionEvent) error
	Subscribe(eventType Type, handler Handler) error
	Close() error
	GetStats() BusStats
}

// BusStats contains statistics about the event bus
type BusStats struct {
	TotalEvents     int64            `json:"total_events"`
	EventsByType    map[string]int64 `json:"events_by_type"`
	SubscriberCount map[string]int   `json:"subscriber_count"`
}

// DefaultBus is the default implementation of Bus
type DefaultBus struct {
	subscribers map[Type][]Handler
	mutex       sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	stats       BusStats
	statsMutex  sync.RWMutex
}

// NewBus creates a new event bus instance
func NewBus() Bus {
	ctx, cancel := context.WithCancel(context.Background())

	return &DefaultBus{
		subscribers: make(map[Type][]Handler),
		ctx:         ctx,
		cancel:      cancel,
		stats: BusStats{
			EventsByType:    make(map[string]int64),
			SubscriberCount: make(map[string]int),
		},
	}
}

// PublishEvent publishes a complete event
func (b *DefaultBus) PublishEvent(event *SessionEvent) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is closed")
	default:
	}

	b.mutex.RLock()
	handlers, exists := b.subscribers[event.Type]
	if !exists {
		b.mutex.RUnlock()
		return nil
	}

	// Copy handlers so the lock is not held during execution
	handlersCopy := make([]Handler, len(handlers))
	copy(handlersCopy, handlers)
	b.mutex.RUnlock()

	b.updateStats(event.Type)

	logger.Base().Debug("publishing event",
		zap.String("type", string(event.Type)),
		zap.String("session_id", event.SessionID))

	// Execute handlers asynchronously
	for _, handler := range handlersCopy {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					logger.Base().Error("event handler panic",
						zap.String("type", string(event.Type)),
						zap.Any("panic", r))
				}
			}()

			h(event)
		}(handler)
	}

	return nil
}

// Subscribe subscribes to events of a specific type
func (b *DefaultBus) Subscribe(eventType Type, handler Handler) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is closed")
	default:
	}

	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.subscribers[eventType] = append(b.subscribers[eventType], handler)

	b.statsMutex.Lock()
	b.stats.SubscriberCount[string(eventType)]++
	b.statsMutex.Unlock()

	return nil
}

// Close closes the event bus and drops all subscribers
func (b *DefaultBus) Close() error {
	b.cancel()

	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.subscribers = make(map[Type][]Handler)

	logger.Base().Info("event bus closed")
	return nil
}

// GetStats returns current bus statistics
func (b *DefaultBus) GetStats() BusStats {
	b.statsMutex.RLock()
	defer b.statsMutex.RUnlock()

	stats := BusStats{
		TotalEvents:     b.stats.TotalEvents,
		EventsByType:    make(map[string]int64),
		SubscriberCount: make(map[string]int),
	}

	for k, v := range b.stats.EventsByType {
		stats.EventsByType[k] = v
	}

	for k, v := range b.stats.SubscriberCount {
		stats.SubscriberCount[k] = v
	}

	return stats
}

// updateStats updates event statistics
func (b *DefaultBus) updateStats(eventType Type) {
	b.statsMutex.Lock()
	defer b.statsMutex.Unlock()

	b.stats.TotalEvents++
	b.stats.EventsByType[string(eventType)]++
}
