package googlelink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/plincohq/onboarding-service/internal/adapters/googleauth"
	"github.com/plincohq/onboarding-service/internal/adapters/identity"
	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokenProvider struct {
	tokens      []*identity.OAuthToken
	errs        []error
	calls       int
	reauthURL   string
	reauthErr   error
	reauthCalls int
}

func (s *stubTokenProvider) GetOAuthAccessToken(ctx context.Context, clerkID, provider string) (*identity.OAuthToken, error) {
	idx := s.calls
	if idx >= len(s.tokens) {
		idx = len(s.tokens) - 1
	}
	s.calls++
	return s.tokens[idx], s.errs[idx]
}

func (s *stubTokenProvider) ReauthorizeAccount(ctx context.Context, clerkID, provider string, additionalScopes []string, redirectURL string) (string, error) {
	s.reauthCalls++
	return s.reauthURL, s.reauthErr
}

type stubInspector struct {
	infos []*googleauth.TokenInfo
	errs  []error
	calls int
}

func (s *stubInspector) TokenInfo(ctx context.Context, accessToken string) (*googleauth.TokenInfo, error) {
	idx := s.calls
	if idx >= len(s.infos) {
		idx = len(s.infos) - 1
	}
	s.calls++
	return s.infos[idx], s.errs[idx]
}

type silentNotifier struct{}

func (silentNotifier) Success(message, description string) {}
func (silentNotifier) Info(message, description string)    {}
func (silentNotifier) Warn(message, description string)    {}
func (silentNotifier) Error(message, description string)   {}

func newTestService(provider *stubTokenProvider, inspector *stubInspector) (*Service, *int) {
	svc := NewService(provider, inspector, silentNotifier{})
	sleeps := 0
	svc.sleep = func(time.Duration) { sleeps++ }
	return svc, &sleeps
}

func validToken() *identity.OAuthToken {
	return &identity.OAuthToken{Token: "ya29.valid"}
}

func freshInfo(scopes ...string) *googleauth.TokenInfo {
	return &googleauth.TokenInfo{Scopes: scopes, ExpiresIn: 3600}
}

func TestRefreshTokenValidFirstAttempt(t *testing.T) {
	provider := &stubTokenProvider{tokens: []*identity.OAuthToken{validToken()}, errs: []error{nil}}
	inspector := &stubInspector{infos: []*googleauth.TokenInfo{freshInfo()}, errs: []error{nil}}
	svc, sleeps := newTestService(provider, inspector)

	token, err := svc.RefreshToken(context.Background(), "clerk_1")
	require.NoError(t, err)
	assert.Equal(t, "ya29.valid", token)
	assert.Equal(t, 1, provider.calls)
	assert.Zero(t, *sleeps)
}

func TestRefreshTokenRejectsNearExpiry(t *testing.T) {
	// 60 seconds remaining is inside the skew window; the second lookup
	// returns a fresh token.
	provider := &stubTokenProvider{
		tokens: []*identity.OAuthToken{validToken(), validToken()},
		errs:   []error{nil, nil},
	}
	inspector := &stubInspector{
		infos: []*googleauth.TokenInfo{{ExpiresIn: 60}, {ExpiresIn: 3600}},
		errs:  []error{nil, nil},
	}
	svc, sleeps := newTestService(provider, inspector)

	token, err := svc.RefreshToken(context.Background(), "clerk_1")
	require.NoError(t, err)
	assert.Equal(t, "ya29.valid", token)
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, 1, *sleeps)
}

func TestRefreshTokenRetryExhaustion(t *testing.T) {
	provider := &stubTokenProvider{
		tokens: []*identity.OAuthToken{validToken()},
		errs:   []error{nil},
	}
	inspector := &stubInspector{
		infos: []*googleauth.TokenInfo{{ExpiresIn: 10}},
		errs:  []error{nil},
	}
	svc, sleeps := newTestService(provider, inspector)

	_, err := svc.RefreshToken(context.Background(), "clerk_1")
	assert.ErrorIs(t, err, domain.ErrAuth)

	// Initial attempt plus exactly two retries, one sleep between each.
	assert.Equal(t, 3, provider.calls)
	assert.Equal(t, 2, *sleeps)
}

func TestRefreshTokenNoLinkedAccountDoesNotRetry(t *testing.T) {
	provider := &stubTokenProvider{
		tokens: []*identity.OAuthToken{nil},
		errs:   []error{domain.ErrNotFound},
	}
	inspector := &stubInspector{infos: []*googleauth.TokenInfo{nil}, errs: []error{nil}}
	svc, sleeps := newTestService(provider, inspector)

	_, err := svc.RefreshToken(context.Background(), "clerk_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, provider.calls)
	assert.Zero(t, *sleeps)
}

func TestCheckScopesAllGranted(t *testing.T) {
	provider := &stubTokenProvider{tokens: []*identity.OAuthToken{validToken()}, errs: []error{nil}}
	inspector := &stubInspector{
		infos: []*googleauth.TokenInfo{freshInfo(RequiredCalendarScopes...)},
		errs:  []error{nil},
	}
	svc, _ := newTestService(provider, inspector)

	status := svc.CheckScopes(context.Background(), "clerk_1")
	require.NotNil(t, status.Connected)
	assert.True(t, *status.Connected)
	assert.Empty(t, status.Error)
}

func TestCheckScopesMissingScope(t *testing.T) {
	provider := &stubTokenProvider{tokens: []*identity.OAuthToken{validToken()}, errs: []error{nil}}
	inspector := &stubInspector{
		infos: []*googleauth.TokenInfo{freshInfo(
			"https://www.googleapis.com/auth/calendar.events",
			"https://www.googleapis.com/auth/calendar.freebusy",
		)},
		errs: []error{nil},
	}
	svc, _ := newTestService(provider, inspector)

	status := svc.CheckScopes(context.Background(), "clerk_1")
	require.NotNil(t, status.Connected)
	assert.False(t, *status.Connected)
	assert.Empty(t, status.Error)
}

func TestCheckScopesLookupFailureRecordsError(t *testing.T) {
	provider := &stubTokenProvider{
		tokens: []*identity.OAuthToken{nil},
		errs:   []error{domain.ErrNotFound},
	}
	inspector := &stubInspector{infos: []*googleauth.TokenInfo{nil}, errs: []error{nil}}
	svc, _ := newTestService(provider, inspector)

	// A failed lookup never panics or propagates; it reports not-connected
	// with the error recorded.
	status := svc.CheckScopes(context.Background(), "clerk_1")
	require.NotNil(t, status.Connected)
	assert.False(t, *status.Connected)
	assert.NotEmpty(t, status.Error)
}

func TestCheckOnceRunsExactlyOnce(t *testing.T) {
	provider := &stubTokenProvider{tokens: []*identity.OAuthToken{validToken()}, errs: []error{nil}}
	inspector := &stubInspector{
		infos: []*googleauth.TokenInfo{freshInfo(RequiredCalendarScopes...)},
		errs:  []error{nil},
	}
	svc, _ := newTestService(provider, inspector)

	svc.CheckOnce(context.Background(), "clerk_1")
	svc.CheckOnce(context.Background(), "clerk_1")
	assert.Equal(t, 1, provider.calls)

	// A different identity gets its own first check.
	svc.CheckOnce(context.Background(), "clerk_2")
	assert.Equal(t, 2, provider.calls)
}

func TestConnectGoogleCalendar(t *testing.T) {
	provider := &stubTokenProvider{
		tokens:    []*identity.OAuthToken{validToken()},
		errs:      []error{nil},
		reauthURL: "https://accounts.google.com/o/oauth2/auth?state=abc",
	}
	inspector := &stubInspector{infos: []*googleauth.TokenInfo{freshInfo()}, errs: []error{nil}}
	svc, _ := newTestService(provider, inspector)

	url, err := svc.ConnectGoogleCalendar(context.Background(), "clerk_1", "http://localhost:3000/onboarding")
	require.NoError(t, err)
	assert.Equal(t, provider.reauthURL, url)
	assert.Equal(t, 1, provider.reauthCalls)
}

func TestConnectGoogleCalendarFailureWrapsCause(t *testing.T) {
	cause := errors.New("provider unavailable")
	provider := &stubTokenProvider{
		tokens:    []*identity.OAuthToken{validToken()},
		errs:      []error{nil},
		reauthErr: cause,
	}
	inspector := &stubInspector{infos: []*googleauth.TokenInfo{freshInfo()}, errs: []error{nil}}
	svc, _ := newTestService(provider, inspector)

	_, err := svc.ConnectGoogleCalendar(context.Background(), "clerk_1", "")
	require.Error(t, err)

	var linkErr *LinkError
	require.ErrorAs(t, err, &linkErr)
	assert.ErrorIs(t, err, cause)
}

func TestDisposeDiscardsLateResults(t *testing.T) {
	provider := &stubTokenProvider{tokens: []*identity.OAuthToken{validToken()}, errs: []error{nil}}
	inspector := &stubInspector{
		infos: []*googleauth.TokenInfo{freshInfo(RequiredCalendarScopes...)},
		errs:  []error{nil},
	}
	svc, _ := newTestService(provider, inspector)

	svc.Dispose()
	status := svc.CheckScopes(context.Background(), "clerk_1")
	assert.Nil(t, status.Connected)
	assert.Empty(t, status.Error)
}
