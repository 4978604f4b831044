package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/plincohq/onboarding-service/internal/adapters/googleauth"
	"github.com/plincohq/onboarding-service/internal/adapters/identity"
	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/plincohq/onboarding-service/internal/notify"
	"github.com/plincohq/onboarding-service/internal/services/googlelink"
	"github.com/plincohq/onboarding-service/internal/services/onboarding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUserRepo struct {
	users map[string]*domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*domain.User)}
}

func (m *memoryUserRepo) GetByClerkID(ctx context.Context, clerkID string) (*domain.User, error) {
	user, ok := m.users[clerkID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (m *memoryUserRepo) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user.ID == "" {
		user.ID = fmt.Sprintf("u_%d", len(m.users)+1)
	}
	m.users[user.ClerkID] = user
	return user, nil
}

func (m *memoryUserRepo) SetWorkHours(ctx context.Context, clerkID, startTime, endTime string) error {
	user, ok := m.users[clerkID]
	if !ok {
		return domain.ErrNotFound
	}
	user.WorkStartTime = startTime
	user.WorkEndTime = endTime
	return nil
}

func (m *memoryUserRepo) SetOnboardingStep(ctx context.Context, clerkID string, step domain.OnboardingStep) error {
	user, ok := m.users[clerkID]
	if !ok {
		return domain.ErrNotFound
	}
	user.OnboardingStep = step
	return nil
}

func (m *memoryUserRepo) SetPhone(ctx context.Context, clerkID, phone string) error {
	user, ok := m.users[clerkID]
	if !ok {
		return domain.ErrNotFound
	}
	user.Phone = phone
	return nil
}

func (m *memoryUserRepo) Delete(ctx context.Context, clerkID string) error {
	delete(m.users, clerkID)
	return nil
}

type staticTokenProvider struct{}

func (staticTokenProvider) GetOAuthAccessToken(ctx context.Context, clerkID, provider string) (*identity.OAuthToken, error) {
	return &identity.OAuthToken{Token: "ya29.test"}, nil
}

func (staticTokenProvider) ReauthorizeAccount(ctx context.Context, clerkID, provider string, additionalScopes []string, redirectURL string) (string, error) {
	return "https://accounts.google.com/consent", nil
}

type staticInspector struct{}

func (staticInspector) TokenInfo(ctx context.Context, accessToken string) (*googleauth.TokenInfo, error) {
	return &googleauth.TokenInfo{Scopes: googlelink.RequiredCalendarScopes, ExpiresIn: 3600}, nil
}

func newUserHandler(repo *memoryUserRepo) *UserHandler {
	return newUserHandlerWithSecret(repo, "")
}

func newUserHandlerWithSecret(repo *memoryUserRepo, webhookSecret string) *UserHandler {
	notifier := notify.NewService()
	linkService := googlelink.NewService(staticTokenProvider{}, staticInspector{}, notifier)
	onboardingService := onboarding.NewService(repo, notifier)
	return NewUserHandler(repo, onboardingService, linkService, webhookSecret)
}

func webhookBody(t *testing.T, eventType, clerkID string, scopes []string) *bytes.Buffer {
	t.Helper()
	var accounts []map[string]interface{}
	if scopes != nil {
		accounts = append(accounts, map[string]interface{}{
			"provider": "oauth_google",
			"scopes":   scopes,
		})
	}
	body := map[string]interface{}{
		"type": eventType,
		"data": map[string]interface{}{
			"id":                clerkID,
			"first_name":        "Ada",
			"last_name":         "Lovelace",
			"email_addresses":   []map[string]string{{"email_address": "ada@example.com"}},
			"external_accounts": accounts,
		},
	}
	buf := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buf).Encode(body))
	return buf
}

func TestIdentityWebhookUserCreated(t *testing.T) {
	repo := newMemoryUserRepo()
	handler := newUserHandler(repo)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity",
		webhookBody(t, "user.created", "clerk_1", nil))
	rec := httptest.NewRecorder()
	handler.HandleIdentityWebhook(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	user, err := repo.GetByClerkID(context.Background(), "clerk_1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)

	// No calendar scopes at creation: entry step is the calendar step.
	assert.Equal(t, domain.StepGoogleCalendar, user.OnboardingStep)
}

func TestIdentityWebhookUserCreatedWithCalendarScopes(t *testing.T) {
	repo := newMemoryUserRepo()
	handler := newUserHandler(repo)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity",
		webhookBody(t, "user.created", "clerk_2", googlelink.RequiredCalendarScopes))
	rec := httptest.NewRecorder()
	handler.HandleIdentityWebhook(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	user, err := repo.GetByClerkID(context.Background(), "clerk_2")
	require.NoError(t, err)

	// All calendar scopes already granted: skip straight to the schedule step.
	assert.Equal(t, domain.StepWorkSchedule, user.OnboardingStep)
}

func TestIdentityWebhookUserDeleted(t *testing.T) {
	repo := newMemoryUserRepo()
	repo.users["clerk_1"] = &domain.User{ID: "u_1", ClerkID: "clerk_1"}
	handler := newUserHandler(repo)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity",
		webhookBody(t, "user.deleted", "clerk_1", nil))
	rec := httptest.NewRecorder()
	handler.HandleIdentityWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := repo.GetByClerkID(context.Background(), "clerk_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIdentityWebhookRejectsMissingSecret(t *testing.T) {
	repo := newMemoryUserRepo()
	repo.users["clerk_1"] = &domain.User{ID: "u_1", ClerkID: "clerk_1"}
	handler := newUserHandlerWithSecret(repo, "whsec_test")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity",
		webhookBody(t, "user.deleted", "clerk_1", nil))
	rec := httptest.NewRecorder()
	handler.HandleIdentityWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The record must survive the rejected delete.
	_, err := repo.GetByClerkID(context.Background(), "clerk_1")
	assert.NoError(t, err)
}

func TestIdentityWebhookRejectsWrongSecret(t *testing.T) {
	repo := newMemoryUserRepo()
	handler := newUserHandlerWithSecret(repo, "whsec_test")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity",
		webhookBody(t, "user.created", "clerk_1", nil))
	req.Header.Set(WebhookSecretHeader, "whsec_other")
	rec := httptest.NewRecorder()
	handler.HandleIdentityWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, err := repo.GetByClerkID(context.Background(), "clerk_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIdentityWebhookAcceptsCorrectSecret(t *testing.T) {
	repo := newMemoryUserRepo()
	repo.users["clerk_1"] = &domain.User{ID: "u_1", ClerkID: "clerk_1"}
	handler := newUserHandlerWithSecret(repo, "whsec_test")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity",
		webhookBody(t, "user.deleted", "clerk_1", nil))
	req.Header.Set(WebhookSecretHeader, "whsec_test")
	rec := httptest.NewRecorder()
	handler.HandleIdentityWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := repo.GetByClerkID(context.Background(), "clerk_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIdentityWebhookUnknownEventAcknowledged(t *testing.T) {
	handler := newUserHandler(newMemoryUserRepo())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity",
		webhookBody(t, "session.created", "clerk_1", nil))
	rec := httptest.NewRecorder()
	handler.HandleIdentityWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func authedRequest(t *testing.T, method, target, clerkID string, body *bytes.Buffer) *http.Request {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(context.WithValue(req.Context(), clerkIDContextKey, clerkID))
}

func TestGetMeIncludesViewStep(t *testing.T) {
	repo := newMemoryUserRepo()
	repo.users["clerk_1"] = &domain.User{
		ID:             "u_1",
		ClerkID:        "clerk_1",
		Name:           "Ada",
		OnboardingStep: domain.StepPlaceCall,
		WorkStartTime:  "09:00",
		WorkEndTime:    "18:00",
	}
	handler := newUserHandler(repo)

	rec := httptest.NewRecorder()
	handler.GetMe(rec, authedRequest(t, http.MethodGet, "/api/users/me", "clerk_1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "clerk_1", resp.ClerkID)
	assert.Equal(t, onboarding.ViewCall, resp.ViewStep)
}

func TestUpdateWorkHoursRoundTrip(t *testing.T) {
	repo := newMemoryUserRepo()
	repo.users["clerk_1"] = &domain.User{
		ID:             "u_1",
		ClerkID:        "clerk_1",
		OnboardingStep: domain.StepWorkSchedule,
	}
	handler := newUserHandler(repo)

	body := bytes.NewBufferString(`{"start_time":"09:00","end_time":"18:00"}`)
	rec := httptest.NewRecorder()
	handler.UpdateWorkHours(rec, authedRequest(t, http.MethodPut, "/api/users/me/work-hours", "clerk_1", body))
	require.Equal(t, http.StatusOK, rec.Code)

	// The profile now resolves to the call view.
	rec = httptest.NewRecorder()
	handler.GetMe(rec, authedRequest(t, http.MethodGet, "/api/users/me", "clerk_1", nil))
	var resp UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, onboarding.ViewCall, resp.ViewStep)
}

func TestUpdateWorkHoursInvalidPair(t *testing.T) {
	repo := newMemoryUserRepo()
	repo.users["clerk_1"] = &domain.User{ID: "u_1", ClerkID: "clerk_1", OnboardingStep: domain.StepWorkSchedule}
	handler := newUserHandler(repo)

	body := bytes.NewBufferString(`{"start_time":"18:00","end_time":"09:00"}`)
	rec := httptest.NewRecorder()
	handler.UpdateWorkHours(rec, authedRequest(t, http.MethodPut, "/api/users/me/work-hours", "clerk_1", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	user, _ := repo.GetByClerkID(context.Background(), "clerk_1")
	assert.Equal(t, domain.StepWorkSchedule, user.OnboardingStep)
}

func TestSessionAuthMiddleware(t *testing.T) {
	const secret = "test-secret"

	var seenClerkID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenClerkID = ClerkIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	wrapped := SessionAuthMiddleware(secret)(next)

	t.Run("valid token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "clerk_1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "clerk_1", seenClerkID)
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "clerk_1"})
		signed, err := token.SignedString([]byte("other-secret"))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "clerk_1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
