package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jinzhu/copier"
	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/plincohq/onboarding-service/internal/repository"
	"github.com/plincohq/onboarding-service/internal/services/googlelink"
	"github.com/plincohq/onboarding-service/internal/services/onboarding"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// WebhookSecretHeader carries the shared secret the identity provider is
// configured to send with every webhook delivery.
const WebhookSecretHeader = "X-Webhook-Secret"

// UserHandler handles identity webhooks and user profile requests
type UserHandler struct {
	userRepo          repository.UserRepository
	onboardingService *onboarding.Service
	linkService       *googlelink.Service
	webhookSecret     string
}

// NewUserHandler creates a new user handler. An empty webhookSecret disables
// webhook verification for local development.
func NewUserHandler(userRepo repository.UserRepository, onboardingService *onboarding.Service, linkService *googlelink.Service, webhookSecret string) *UserHandler {
	return &UserHandler{
		userRepo:          userRepo,
		onboardingService: onboardingService,
		linkService:       linkService,
		webhookSecret:     webhookSecret,
	}
}

// identityWebhookRequest is the identity provider's event envelope
type identityWebhookRequest struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
		ExternalAccounts []struct {
			Provider       string   `json:"provider"`
			ApprovedScopes string   `json:"approved_scopes"`
			Scopes         []string `json:"scopes"`
		} `json:"external_accounts"`
	} `json:"data"`
}

// UserResponse is the profile payload with the derived onboarding view
type UserResponse struct {
	ID             string                `json:"id"`
	ClerkID        string                `json:"clerk_id"`
	Name           string                `json:"name"`
	Email          string                `json:"email"`
	Phone          string                `json:"phone,omitempty"`
	WorkStartTime  string                `json:"work_start_time,omitempty"`
	WorkEndTime    string                `json:"work_end_time,omitempty"`
	OnboardingStep domain.OnboardingStep `json:"onboarding_step"`
	Onboarded      bool                  `json:"onboarded"`
	ViewStep       int                   `json:"view_step"`
}

type workHoursRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type onboardingStepRequest struct {
	Step domain.OnboardingStep `json:"step"`
}

type phoneRequest struct {
	Phone string `json:"phone"`
}

// HandleIdentityWebhook processes user lifecycle events from the identity
// provider. Records exist only between user.created and user.deleted.
func (h *UserHandler) HandleIdentityWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.verifyWebhook(r) {
		logger.Base().Warn("webhook rejected, bad or missing secret",
			zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, "invalid webhook secret", http.StatusUnauthorized)
		return
	}

	var req identityWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Data.ID == "" {
		http.Error(w, "Missing user id", http.StatusBadRequest)
		return
	}

	switch req.Type {
	case "user.created":
		h.handleUserCreated(w, r, &req)
	case "user.deleted":
		if err := h.userRepo.Delete(r.Context(), req.Data.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Base().Error("failed to delete user", zap.String("clerk_id", req.Data.ID), zap.Error(err))
			http.Error(w, "Failed to delete user", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		// Unknown event types are acknowledged so the provider stops retrying.
		logger.Base().Debug("ignoring identity event", zap.String("type", req.Type))
		w.WriteHeader(http.StatusOK)
	}
}

// verifyWebhook compares the shared-secret header in constant time. With no
// secret configured verification is skipped, matching local development.
func (h *UserHandler) verifyWebhook(r *http.Request) bool {
	if h.webhookSecret == "" {
		return true
	}
	sent := r.Header.Get(WebhookSecretHeader)
	return subtle.ConstantTimeCompare([]byte(sent), []byte(h.webhookSecret)) == 1
}

func (h *UserHandler) handleUserCreated(w http.ResponseWriter, r *http.Request, req *identityWebhookRequest) {
	name := req.Data.FirstName
	if req.Data.LastName != "" {
		if name != "" {
			name += " "
		}
		name += req.Data.LastName
	}
	email := ""
	if len(req.Data.EmailAddresses) > 0 {
		email = req.Data.EmailAddresses[0].EmailAddress
	}

	user := &domain.User{
		ClerkID:        req.Data.ID,
		Name:           name,
		Email:          email,
		OnboardingStep: onboarding.InitialStep(h.hasCalendarScopes(req)),
	}

	saved, err := h.userRepo.Upsert(r.Context(), user)
	if err != nil {
		logger.Base().Error("failed to upsert user", zap.String("clerk_id", req.Data.ID), zap.Error(err))
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	logger.Base().Info("user created from identity webhook",
		zap.String("clerk_id", saved.ClerkID),
		zap.String("step", string(saved.OnboardingStep)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(saved)
}

// hasCalendarScopes inspects the scopes the webhook reports for the linked
// Google account. This is creation-time data; later checks go through the
// live tokeninfo lookup.
func (h *UserHandler) hasCalendarScopes(req *identityWebhookRequest) bool {
	for _, account := range req.Data.ExternalAccounts {
		if account.Provider != "google" && account.Provider != "oauth_google" {
			continue
		}
		granted := make(map[string]struct{})
		for _, scope := range account.Scopes {
			granted[scope] = struct{}{}
		}
		for _, scope := range strings.Fields(account.ApprovedScopes) {
			granted[scope] = struct{}{}
		}
		all := true
		for _, required := range googlelink.RequiredCalendarScopes {
			if _, ok := granted[required]; !ok {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// GetMe returns the authenticated user's profile and derived view step.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
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

	// First profile fetch for an identity kicks off the automatic scope
	// check. Detached from the request context so the check survives the
	// response being written.
	go h.linkService.CheckOnce(context.Background(), clerkID)

	var resp UserResponse
	if err := copier.Copy(&resp, user); err != nil {
		logger.Base().Error("failed to map user response", zap.Error(err))
		http.Error(w, "Failed to load user", http.StatusInternalServerError)
		return
	}
	resp.ViewStep = onboarding.DeriveViewStep(user)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// UpdateWorkHours saves the work window and advances onboarding to the call
// step. A failed write leaves both hours and step untouched.
func (h *UserHandler) UpdateWorkHours(w http.ResponseWriter, r *http.Request) {
	clerkID := ClerkIDFromContext(r.Context())

	var req workHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.onboardingService.SubmitWorkHours(r.Context(), clerkID, req.StartTime, req.EndTime); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// UpdateOnboardingStep persists an explicit step value.
func (h *UserHandler) UpdateOnboardingStep(w http.ResponseWriter, r *http.Request) {
	clerkID := ClerkIDFromContext(r.Context())

	var req onboardingStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.onboardingService.SetStep(r.Context(), clerkID, req.Step); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// UpdatePhone stores the phone number used for outbound assistant calls.
func (h *UserHandler) UpdatePhone(w http.ResponseWriter, r *http.Request) {
	clerkID := ClerkIDFromContext(r.Context())

	var req phoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.onboardingService.SavePhone(r.Context(), clerkID, req.Phone); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// SetupUserRoutes sets up identity webhook and profile routes. The webhook
// route is registered on the root router because the provider calls it
// without a session token.
func (h *UserHandler) SetupUserRoutes(router *mux.Router, apiRouter *mux.Router) {
	router.HandleFunc("/webhooks/identity", h.HandleIdentityWebhook).Methods("POST")

	apiRouter.HandleFunc("/users/me", h.GetMe).Methods("GET")
	apiRouter.HandleFunc("/users/me/work-hours", h.UpdateWorkHours).Methods("PUT")
	apiRouter.HandleFunc("/users/me/onboarding-step", h.UpdateOnboardingStep).Methods("PUT")
	apiRouter.HandleFunc("/users/me/phone", h.UpdatePhone).Methods("PUT")

	logger.Base().Info("user routes registered")
}

// writeServiceError maps domain sentinel errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrAuth):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
