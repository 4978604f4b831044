package googlelink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/plincohq/onboarding-service/internal/adapters/googleauth"
	"github.com/plincohq/onboarding-service/internal/adapters/identity"
	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/plincohq/onboarding-service/internal/notify"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// GoogleProvider is the identity provider's key for linked Google accounts.
const GoogleProvider = "google"

// RequiredCalendarScopes must all be present on the token for the account
// to count as connected.
var RequiredCalendarScopes = []string{
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/calendar.freebusy",
	"https://www.googleapis.com/auth/calendar.settings.readonly",
}

const (
	// Tokens within this many seconds of expiry are treated as invalid.
	tokenExpirySkewSeconds = 60

	// Bounded retry for obtaining a fresh token, never unbounded.
	maxRefreshRetries = 2
	refreshRetryDelay = 1 * time.Second
)

// LinkError is the structured error returned by ConnectGoogleCalendar so
// callers can log the underlying cause.
type LinkError struct {
	Message string
	Cause   error
}

func (e *LinkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *LinkError) Unwrap() error {
	return e.Cause
}

// Status is the derived link state. Connected is nil until a check has run;
// it is never cached across checks because token validity can change
// between them.
type Status struct {
	Connected *bool  `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// Service orchestrates Google account linking: live scope verification and
// re-authorization through the identity provider.
type Service struct {
	tokens    identity.TokenProvider
	inspector googleauth.TokenInspector
	notifier  notify.Notifier

	// sleep is injectable so tests do not wait out retry delays.
	sleep func(time.Duration)

	// autoChecked tracks identities whose automatic first check already ran.
	autoChecked sync.Map

	// disposed guards late retry results after shutdown; in-flight retries
	// run to exhaustion and their results are discarded, not cancelled.
	mutex    sync.Mutex
	disposed bool
}

// NewService creates a Google link service
func NewService(tokens identity.TokenProvider, inspector googleauth.TokenInspector, notifier notify.Notifier) *Service {
	return &Service{
		tokens:    tokens,
		inspector: inspector,
		notifier:  notifier,
		sleep:     time.Sleep,
	}
}

// Dispose marks the service as torn down; results of still-running token
// refreshes will be discarded.
func (s *Service) Dispose() {
	s.mutex.Lock()
	s.disposed = true
	s.mutex.Unlock()
}

func (s *Service) isDisposed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.disposed
}

// RefreshToken obtains a validated Google access token for the user. A token
// with 60s or less of remaining lifetime is treated as invalid and a fresh
// one is requested from the identity provider, at most twice more, one
// second apart.
func (s *Service) RefreshToken(ctx context.Context, clerkID string) (string, error) {
	for attempt := 0; ; attempt++ {
		token, err := s.tokens.GetOAuthAccessToken(ctx, clerkID, GoogleProvider)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// No linked account; retrying cannot help.
				return "", err
			}
			logger.Base().Warn("token lookup failed",
				zap.String("clerk_id", clerkID),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else {
			info, infoErr := s.inspector.TokenInfo(ctx, token.Token)
			if infoErr == nil && info.ExpiresIn > tokenExpirySkewSeconds {
				return token.Token, nil
			}
			if infoErr != nil {
				logger.Base().Warn("token validation failed",
					zap.String("clerk_id", clerkID),
					zap.Int("attempt", attempt),
					zap.Error(infoErr))
			} else {
				logger.Base().Info("token expiring, requesting fresh token",
					zap.String("clerk_id", clerkID),
					zap.Int("expires_in", info.ExpiresIn))
			}
		}

		if attempt >= maxRefreshRetries {
			return "", fmt.Errorf("no valid google token after %d attempts: %w", attempt+1, domain.ErrAuth)
		}
		s.sleep(refreshRetryDelay)
	}
}

// CheckScopes re-derives the link status from a live token-scope lookup.
// A lookup failure records the error and reports not-connected; it never
// fails the caller. Safe to call repeatedly.
func (s *Service) CheckScopes(ctx context.Context, clerkID string) Status {
	connected := false

	token, err := s.RefreshToken(ctx, clerkID)
	if err != nil {
		if s.isDisposed() {
			return Status{}
		}
		return Status{Connected: &connected, Error: err.Error()}
	}

	info, err := s.inspector.TokenInfo(ctx, token)
	if err != nil {
		if s.isDisposed() {
			return Status{}
		}
		return Status{Connected: &connected, Error: fmt.Sprintf("failed to check calendar scopes: %v", err)}
	}

	granted := make(map[string]struct{}, len(info.Scopes))
	for _, scope := range info.Scopes {
		granted[scope] = struct{}{}
	}

	connected = true
	for _, required := range RequiredCalendarScopes {
		if _, ok := granted[required]; !ok {
			connected = false
			break
		}
	}

	if s.isDisposed() {
		return Status{}
	}
	return Status{Connected: &connected}
}

// CheckOnce runs the automatic first scope check for an identity, exactly
// once per process. Later explicit checks go through CheckScopes.
func (s *Service) CheckOnce(ctx context.Context, clerkID string) {
	if clerkID == "" {
		return
	}
	if _, loaded := s.autoChecked.LoadOrStore(clerkID, struct{}{}); loaded {
		return
	}
	status := s.CheckScopes(ctx, clerkID)
	if status.Error != "" {
		logger.Base().Warn("automatic scope check failed",
			zap.String("clerk_id", clerkID),
			zap.String("error", status.Error))
	}
}

// ConnectGoogleCalendar requests re-authorization of the user's linked
// Google account with the required calendar scopes, returning the provider
// redirect URL for the browser. redirectURL is where the provider sends the
// user after consent.
func (s *Service) ConnectGoogleCalendar(ctx context.Context, clerkID, redirectURL string) (string, error) {
	reauthURL, err := s.tokens.ReauthorizeAccount(ctx, clerkID, GoogleProvider, RequiredCalendarScopes, redirectURL)
	if err != nil {
		s.notifier.Error("Failed to connect Google account", "Please try again")
		return "", &LinkError{Message: "failed to connect google account", Cause: err}
	}

	return reauthURL, nil
}
