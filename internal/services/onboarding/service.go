package onboarding

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/plincohq/onboarding-service/internal/notify"
	"github.com/plincohq/onboarding-service/internal/repository"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// Onboarding view indices. The calendar and work-schedule steps share the
// first view; the call step has its own.
const (
	ViewSetup = 0
	ViewCall  = 2
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\s\-()]{6,19}$`)

// Service drives the onboarding step machine for a user
type Service struct {
	users    repository.UserRepository
	notifier notify.Notifier
}

// NewService creates an onboarding service
func NewService(users repository.UserRepository, notifier notify.Notifier) *Service {
	return &Service{
		users:    users,
		notifier: notifier,
	}
}

// InitialStep picks the entry step for a new user. Users whose Google
// account already carries the calendar scopes skip straight to the
// work-schedule step.
func InitialStep(hasCalendarScopes bool) domain.OnboardingStep {
	if hasCalendarScopes {
		return domain.StepWorkSchedule
	}
	return domain.StepGoogleCalendar
}

// DeriveViewStep maps persisted user state to the onboarding view to show.
// The call view requires both the call step and saved work hours; any
// partial state falls back to the setup view.
func DeriveViewStep(user *domain.User) int {
	if user.OnboardingStep == domain.StepPlaceCall && user.HasWorkHours() {
		return ViewCall
	}
	return ViewSetup
}

// ValidateWorkHours checks a start/end pair in HH:MM form. The end must be
// strictly after the start within the same day.
func ValidateWorkHours(start, end string) error {
	startAt, err := time.Parse("15:04", start)
	if err != nil {
		return fmt.Errorf("invalid start time %q, expected HH:MM: %w", start, domain.ErrValidation)
	}
	endAt, err := time.Parse("15:04", end)
	if err != nil {
		return fmt.Errorf("invalid end time %q, expected HH:MM: %w", end, domain.ErrValidation)
	}
	if !endAt.After(startAt) {
		return fmt.Errorf("end time %s must be after start time %s: %w", end, start, domain.ErrValidation)
	}
	return nil
}

// CompleteGoogleStep advances a user past the calendar step once their
// Google account is connected. Without a connected account the step is
// left unchanged.
func (s *Service) CompleteGoogleStep(ctx context.Context, clerkID string, connected bool) error {
	if !connected {
		return fmt.Errorf("google account is not connected: %w", domain.ErrValidation)
	}

	user, err := s.users.GetByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}
	if user.OnboardingStep != domain.StepGoogleCalendar {
		// Already past the calendar step; nothing to advance.
		return nil
	}

	return s.users.SetOnboardingStep(ctx, clerkID, domain.StepWorkSchedule)
}

// SubmitWorkHours validates and saves the user's daily work window, then
// advances onboarding to the call step. Validation or persistence failure
// leaves both hours and step untouched.
func (s *Service) SubmitWorkHours(ctx context.Context, clerkID, start, end string) error {
	if err := ValidateWorkHours(start, end); err != nil {
		s.notifier.Error("Invalid work hours", "End time must be after start time")
		return err
	}

	if err := s.users.SetWorkHours(ctx, clerkID, start, end); err != nil {
		s.notifier.Error("Failed to save work hours", "Please try again")
		return err
	}

	if err := s.users.SetOnboardingStep(ctx, clerkID, domain.StepPlaceCall); err != nil {
		logger.Base().Error("work hours saved but step advance failed",
			zap.String("clerk_id", clerkID),
			zap.Error(err))
		s.notifier.Error("Failed to save work hours", "Please try again")
		return err
	}

	s.notifier.Success("Work hours set successfully!", fmt.Sprintf("%s - %s", start, end))
	return nil
}

// SetStep persists an explicit step value. Unknown steps are rejected
// before touching storage.
func (s *Service) SetStep(ctx context.Context, clerkID string, step domain.OnboardingStep) error {
	if !step.IsValid() {
		return fmt.Errorf("unknown onboarding step %q: %w", step, domain.ErrValidation)
	}
	return s.users.SetOnboardingStep(ctx, clerkID, step)
}

// SavePhone validates and stores the user's phone number for outbound calls.
func (s *Service) SavePhone(ctx context.Context, clerkID, phone string) error {
	if !phonePattern.MatchString(phone) {
		return fmt.Errorf("invalid phone number %q: %w", phone, domain.ErrValidation)
	}
	return s.users.SetPhone(ctx, clerkID, phone)
}
