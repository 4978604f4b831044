package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/plincohq/onboarding-service/internal/core/call"
	"github.com/plincohq/onboarding-service/internal/core/event"
	"github.com/plincohq/onboarding-service/internal/core/session"
	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/plincohq/onboarding-service/internal/notify"
	"github.com/plincohq/onboarding-service/internal/repository"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// CallHandler owns one call engine per authenticated user. Engines are
// created lazily on the first start request and torn down together on
// shutdown.
type CallHandler struct {
	userRepo       repository.UserRepository
	notifier       *notify.Service
	bus            event.Bus
	sessionManager *session.Manager

	publicKey   string
	assistantID string
	factory     call.SessionFactory

	mutex   sync.Mutex
	engines map[string]*call.Engine
}

// NewCallHandler creates a call handler. sessionManager may be nil when
// redis is unavailable; session registration is skipped in that case.
func NewCallHandler(
	userRepo repository.UserRepository,
	notifier *notify.Service,
	bus event.Bus,
	sessionManager *session.Manager,
	publicKey, assistantID string,
	factory call.SessionFactory,
) *CallHandler {
	h := &CallHandler{
		userRepo:       userRepo,
		notifier:       notifier,
		bus:            bus,
		sessionManager: sessionManager,
		publicKey:      publicKey,
		assistantID:    assistantID,
		factory:        factory,
		engines:        make(map[string]*call.Engine),
	}

	// Session registry teardown is driven by the engines' end events so the
	// registry and the status share one source of truth.
	if err := bus.Subscribe(event.CallEnd, h.handleCallEnded); err != nil {
		logger.Base().Warn("failed to subscribe to call end events", zap.Error(err))
	}

	return h
}

func (h *CallHandler) handleCallEnded(e *event.SessionEvent) {
	if data, ok := e.GetCallEndData(); ok {
		h.unregisterSession(data.SessionID)
	}
}

type callStatusResponse struct {
	call.Snapshot
	Notifications []notify.Notification `json:"notifications"`
}

// StartCall launches an assistant call for the authenticated user. Launch
// variables are built from the stored profile so the assistant greets the
// user with their own details.
func (h *CallHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	clerkID := ClerkIDFromContext(r.Context())

	user, err := h.userRepo.GetByClerkID(r.Context(), clerkID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load user", http.StatusInternalServerError)
		return
	}

	variableValues := map[string]string{
		"name":  user.Name,
		"email": user.Email,
	}
	if user.Phone != "" {
		variableValues["phone"] = user.Phone
	}
	if user.HasWorkHours() {
		variableValues["workHours"] = fmt.Sprintf("%s - %s", user.WorkStartTime, user.WorkEndTime)
	}

	engine := h.engineFor(clerkID)
	if err := engine.Start(r.Context(), variableValues); err != nil {
		writeServiceError(w, err)
		return
	}

	snapshot := engine.Snapshot()
	h.registerSession(clerkID, snapshot.SessionID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// EndCall asks the user's engine to close its connection. The status flips
// to inactive when the provider's end event arrives, not here.
func (h *CallHandler) EndCall(w http.ResponseWriter, r *http.Request) {
	clerkID := ClerkIDFromContext(r.Context())

	h.mutex.Lock()
	engine := h.engines[clerkID]
	h.mutex.Unlock()

	if engine == nil {
		http.Error(w, "No call in progress", http.StatusNotFound)
		return
	}

	if err := engine.EndCall(); err != nil {
		logger.Base().Warn("end call failed", zap.String("clerk_id", clerkID), zap.Error(err))
		http.Error(w, "Failed to end call", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(engine.Snapshot())
}

// GetStatus returns the user's engine snapshot plus recent notifications.
func (h *CallHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	clerkID := ClerkIDFromContext(r.Context())

	h.mutex.Lock()
	engine := h.engines[clerkID]
	h.mutex.Unlock()

	snapshot := call.Snapshot{
		Status:    call.StatusInactive,
		BlobScale: call.CalculateBlobScale(call.StatusInactive, false, 0),
	}
	if engine != nil {
		snapshot = engine.Snapshot()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(callStatusResponse{
		Snapshot:      snapshot,
		Notifications: h.notifier.Recent(),
	})
}

// Shutdown disposes every engine; used on server teardown.
func (h *CallHandler) Shutdown() {
	h.mutex.Lock()
	engines := make([]*call.Engine, 0, len(h.engines))
	for _, engine := range h.engines {
		engines = append(engines, engine)
	}
	h.engines = make(map[string]*call.Engine)
	h.mutex.Unlock()

	for _, engine := range engines {
		engine.Dispose()
	}
}

func (h *CallHandler) engineFor(clerkID string) *call.Engine {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if engine, ok := h.engines[clerkID]; ok {
		return engine
	}

	engine := call.NewEngine(h.publicKey, h.assistantID, clerkID, h.factory, h.notifier, h.bus)
	h.engines[clerkID] = engine
	return engine
}

func (h *CallHandler) registerSession(clerkID, sessionID string) {
	if h.sessionManager == nil || sessionID == "" {
		return
	}
	info := session.Info{
		SessionID:   sessionID,
		ClerkID:     clerkID,
		AssistantID: h.assistantID,
	}
	if err := h.sessionManager.Register(context.Background(), info); err != nil {
		logger.Base().Warn("failed to register session",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

func (h *CallHandler) unregisterSession(sessionID string) {
	if h.sessionManager == nil || sessionID == "" {
		return
	}
	ctx := context.Background()
	if err := h.sessionManager.Unregister(ctx, sessionID); err != nil {
		logger.Base().Warn("failed to unregister session",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
	if err := h.sessionManager.NotifyCleanup(ctx, sessionID); err != nil {
		logger.Base().Warn("failed to broadcast session cleanup",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}

// SetupCallRoutes sets up call control routes
func (h *CallHandler) SetupCallRoutes(apiRouter *mux.Router) {
	apiRouter.HandleFunc("/call/start", h.StartCall).Methods("POST")
	apiRouter.HandleFunc("/call/end", h.EndCall).Methods("POST")
	apiRouter.HandleFunc("/call/status", h.GetStatus).Methods("GET")

	logger.Base().Info("call routes registered")
}
