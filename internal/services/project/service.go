package project

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/plincohq/onboarding-service/internal/repository"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// Assistant-sent deadlines must be ISO 8601 with a time component; the
// fractional seconds and trailing Z are optional.
var deadlinePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z?$`)

// Service creates scheduling projects from validated assistant tool calls
type Service struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
}

// NewService creates a project service
func NewService(users repository.UserRepository, projects repository.ProjectRepository) *Service {
	return &Service{
		users:    users,
		projects: projects,
	}
}

// ParseArgs validates raw tool-call arguments and builds a typed request.
// Every violation is reported with the field name so the assistant can
// correct its call.
func ParseArgs(args map[string]interface{}) (*domain.CreateProjectRequest, error) {
	req := &domain.CreateProjectRequest{}

	req.ClerkID = stringField(args, "clerkId")
	if strings.TrimSpace(req.ClerkID) == "" {
		return nil, fmt.Errorf("clerkId is required: %w", domain.ErrValidation)
	}

	req.Title = stringField(args, "title")
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrValidation)
	}

	req.Description = stringField(args, "description")
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("description is required: %w", domain.ErrValidation)
	}

	rawTasks, ok := args["mainTasks"].([]interface{})
	if !ok || len(rawTasks) == 0 {
		return nil, fmt.Errorf("mainTasks must be a non-empty array: %w", domain.ErrValidation)
	}
	for _, raw := range rawTasks {
		task, ok := raw.(string)
		if !ok || strings.TrimSpace(task) == "" {
			return nil, fmt.Errorf("mainTasks must contain only non-empty strings: %w", domain.ErrValidation)
		}
		req.MainTasks = append(req.MainTasks, task)
	}

	req.Deadline = stringField(args, "deadline")
	if err := validateDeadline(req.Deadline); err != nil {
		return nil, err
	}

	hours, ok := args["dailyHours"].(float64)
	if !ok || hours <= 0 || hours > 24 {
		return nil, fmt.Errorf("dailyHours must be a number between 0 and 24: %w", domain.ErrValidation)
	}
	req.DailyHours = hours

	weekend, ok := args["weekendWork"].(bool)
	if !ok {
		return nil, fmt.Errorf("weekendWork must be a boolean: %w", domain.ErrValidation)
	}
	req.WeekendWork = weekend

	return req, nil
}

// Create persists a project for the user the assistant is speaking with.
// The deadline string is stored as sent.
func (s *Service) Create(ctx context.Context, req *domain.CreateProjectRequest) (*domain.Project, error) {
	user, err := s.users.GetByClerkID(ctx, req.ClerkID)
	if err != nil {
		return nil, err
	}

	proj := &domain.Project{
		UserID:      user.ID,
		Title:       req.Title,
		Description: req.Description,
		MainTasks:   domain.StringList(req.MainTasks),
		Deadline:    req.Deadline,
		DailyHours:  req.DailyHours,
		WeekendWork: req.WeekendWork,
	}

	created, err := s.projects.Create(ctx, proj)
	if err != nil {
		return nil, err
	}

	logger.Base().Info("project created",
		zap.String("project_id", created.ID),
		zap.String("user_id", user.ID),
		zap.String("title", created.Title))
	return created, nil
}

// ListForUser returns the user's projects, newest first.
func (s *Service) ListForUser(ctx context.Context, clerkID string) ([]*domain.Project, error) {
	user, err := s.users.GetByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	return s.projects.GetByUserID(ctx, user.ID)
}

// Get returns one of the user's projects. Another user's project is reported
// as not found rather than forbidden so project IDs are not probeable.
func (s *Service) Get(ctx context.Context, clerkID, projectID string) (*domain.Project, error) {
	user, err := s.users.GetByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	proj, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if proj.UserID != user.ID {
		return nil, fmt.Errorf("project %s: %w", projectID, domain.ErrNotFound)
	}
	return proj, nil
}

func validateDeadline(deadline string) error {
	if !deadlinePattern.MatchString(deadline) {
		return fmt.Errorf("deadline must be an ISO 8601 datetime: %w", domain.ErrValidation)
	}

	parsed, err := time.Parse(time.RFC3339, normalizeDeadline(deadline))
	if err != nil {
		return fmt.Errorf("deadline is not a valid datetime: %w", domain.ErrValidation)
	}
	if !parsed.After(time.Now()) {
		return fmt.Errorf("deadline must be in the future: %w", domain.ErrValidation)
	}
	return nil
}

// normalizeDeadline appends the UTC marker the pattern allows to be absent
func normalizeDeadline(deadline string) string {
	if strings.HasSuffix(deadline, "Z") {
		return deadline
	}
	return deadline + "Z"
}

func stringField(args map[string]interface{}, key string) string {
	value, _ := args[key].(string)
	return value
}
