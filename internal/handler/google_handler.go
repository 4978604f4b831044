package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/plincohq/onboarding-service/internal/services/googlelink"
	"github.com/plincohq/onboarding-service/internal/services/onboarding"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// GoogleHandler serves Google account link status and connect requests
type GoogleHandler struct {
	linkService       *googlelink.Service
	onboardingService *onboarding.Service
	redirectURL       string
}

// NewGoogleHandler creates a Google link handler
func NewGoogleHandler(linkService *googlelink.Service, onboardingService *onboarding.Service, redirectURL string) *GoogleHandler {
	return &GoogleHandler{
		linkService:       linkService,
		onboardingService: onboardingService,
		redirectURL:       redirectURL,
	}
}

type connectResponse struct {
	RedirectURL string `json:"redirect_url,omitempty"`
	Message     string `json:"message,omitempty"`
}

// GetStatus runs a live scope check and reports the link state. When the
// account turns out connected the calendar onboarding step is completed as
// a side effect, so a user returning from the consent screen advances
// without another click.
func (h *GoogleHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	clerkID := ClerkIDFromContext(r.Context())

	status := h.linkService.CheckScopes(r.Context(), clerkID)

	if status.Connected != nil && *status.Connected {
		if err := h.onboardingService.CompleteGoogleStep(r.Context(), clerkID, true); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Base().Warn("failed to advance calendar step",
				zap.String("clerk_id", clerkID),
				zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// Connect starts the re-authorization flow and returns the provider redirect
// URL for the browser to follow.
func (h *GoogleHandler) Connect(w http.ResponseWriter, r *http.Request) {
	clerkID := ClerkIDFromContext(r.Context())

	redirectURL, err := h.linkService.ConnectGoogleCalendar(r.Context(), clerkID, h.redirectURL)
	if err != nil {
		var linkErr *googlelink.LinkError
		if errors.As(err, &linkErr) {
			logger.Base().Error("google connect failed",
				zap.String("clerk_id", clerkID),
				zap.Error(linkErr.Cause))
		}
		writeServiceError(w, err)
		return
	}

	resp := connectResponse{RedirectURL: redirectURL}
	if redirectURL == "" {
		// Provider had nothing to re-verify; the account is usable as is.
		resp.Message = "Account already authorized"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// SetupGoogleRoutes sets up Google account link routes
func (h *GoogleHandler) SetupGoogleRoutes(apiRouter *mux.Router) {
	apiRouter.HandleFunc("/google/status", h.GetStatus).Methods("GET")
	apiRouter.HandleFunc("/google/connect", h.Connect).Methods("POST")

	logger.Base().Info("google link routes registered")
}
