package handler

import (
	"github.com/plincohq/onboarding-service/internal/core/event"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// subscribeTelemetry attaches observability subscribers to the event bus so
// every engine's lifecycle and telemetry events land in the logs with the
// owning identity attached.
func subscribeTelemetry(bus event.Bus) {
	subscriptions := map[event.Type]event.Handler{
		event.CallStart: func(e *event.SessionEvent) {
			logger.Base().Info("call started",
				zap.String("session_id", e.SessionID),
				zap.String("clerk_id", e.ClerkID))
		},
		event.CallEnd: func(e *event.SessionEvent) {
			fields := []zap.Field{
				zap.String("session_id", e.SessionID),
				zap.String("clerk_id", e.ClerkID),
			}
			if data, ok := e.GetCallEndData(); ok {
				fields = append(fields, zap.String("ended_reason", data.EndedReason))
			}
			logger.Base().Info("call ended", fields...)
		},
		event.SpeechStart: func(e *event.SessionEvent) {
			logger.Base().Debug("assistant speaking", zap.String("session_id", e.SessionID))
		},
		event.SpeechEnd: func(e *event.SessionEvent) {
			logger.Base().Debug("assistant silent", zap.String("session_id", e.SessionID))
		},
		event.VolumeLevel: func(e *event.SessionEvent) {
			if data, ok := e.GetVolumeData(); ok {
				logger.Base().Debug("volume sample",
					zap.String("session_id", e.SessionID),
					zap.Float64("level", data.Level))
			}
		},
		event.CallError: func(e *event.SessionEvent) {
			fields := []zap.Field{
				zap.String("session_id", e.SessionID),
				zap.String("clerk_id", e.ClerkID),
			}
			if e.IsError() {
				fields = append(fields, zap.Error(e.Error))
			}
			logger.Base().Error("call failed", fields...)
		},
	}

	for eventType, handler := range subscriptions {
		if err := bus.Subscribe(eventType, handler); err != nil {
			logger.Base().Warn("failed to subscribe telemetry handler",
				zap.String("type", string(eventType)),
				zap.Error(err))
		}
	}
}
