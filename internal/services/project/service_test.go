package project

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validArgs() map[string]interface{} {
	return map[string]interface{}{
		"clerkId":     "clerk_1",
		"title":       "Launch the landing page",
		"description": "Design, build and ship the marketing site",
		"mainTasks":   []interface{}{"design mockups", "implement frontend", "deploy"},
		"deadline":    time.Now().AddDate(0, 1, 0).UTC().Format("2006-01-02T15:04:05Z"),
		"dailyHours":  float64(4),
		"weekendWork": false,
	}
}

func TestParseArgsValid(t *testing.T) {
	req, err := ParseArgs(validArgs())
	require.NoError(t, err)
	assert.Equal(t, "clerk_1", req.ClerkID)
	assert.Equal(t, "Launch the landing page", req.Title)
	assert.Len(t, req.MainTasks, 3)
	assert.Equal(t, float64(4), req.DailyHours)
	assert.False(t, req.WeekendWork)
}

func TestParseArgsDeadlineFormats(t *testing.T) {
	future := time.Now().AddDate(0, 0, 7).UTC()

	accepted := []string{
		future.Format("2006-01-02T15:04:05Z"),
		future.Format("2006-01-02T15:04:05"),
		future.Format("2006-01-02T15:04:05.000Z"),
	}
	for _, deadline := range accepted {
		args := validArgs()
		args["deadline"] = deadline
		_, err := ParseArgs(args)
		assert.NoError(t, err, "deadline %q should be accepted", deadline)
	}

	rejected := []string{
		"",
		"2027-01-15",
		"15/01/2027 10:00",
		"2027-01-15 10:00:00",
		"next tuesday",
	}
	for _, deadline := range rejected {
		args := validArgs()
		args["deadline"] = deadline
		_, err := ParseArgs(args)
		assert.ErrorIs(t, err, domain.ErrValidation, "deadline %q should be rejected", deadline)
	}
}

func TestParseArgsPastDeadlineRejected(t *testing.T) {
	args := validArgs()
	args["deadline"] = time.Now().AddDate(0, 0, -1).UTC().Format("2006-01-02T15:04:05Z")

	_, err := ParseArgs(args)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "future")
}

func TestParseArgsFieldValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"missing clerk id", func(a map[string]interface{}) { delete(a, "clerkId") }},
		{"blank title", func(a map[string]interface{}) { a["title"] = "   " }},
		{"missing description", func(a map[string]interface{}) { a["description"] = "" }},
		{"empty task list", func(a map[string]interface{}) { a["mainTasks"] = []interface{}{} }},
		{"task list with blank entry", func(a map[string]interface{}) { a["mainTasks"] = []interface{}{"plan", ""} }},
		{"task list with non-string", func(a map[string]interface{}) { a["mainTasks"] = []interface{}{"plan", 42.0} }},
		{"tasks not an array", func(a map[string]interface{}) { a["mainTasks"] = "plan" }},
		{"zero daily hours", func(a map[string]interface{}) { a["dailyHours"] = float64(0) }},
		{"negative daily hours", func(a map[string]interface{}) { a["dailyHours"] = float64(-2) }},
		{"too many daily hours", func(a map[string]interface{}) { a["dailyHours"] = float64(25) }},
		{"daily hours not a number", func(a map[string]interface{}) { a["dailyHours"] = "four" }},
		{"weekend work not a bool", func(a map[string]interface{}) { a["weekendWork"] = "yes" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := validArgs()
			tt.mutate(args)
			_, err := ParseArgs(args)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestParseArgsAcceptsBoundaryHours(t *testing.T) {
	args := validArgs()
	args["dailyHours"] = float64(24)
	req, err := ParseArgs(args)
	require.NoError(t, err)
	assert.Equal(t, float64(24), req.DailyHours)
}

type stubUserRepo struct {
	user *domain.User
}

func (s *stubUserRepo) GetByClerkID(ctx context.Context, clerkID string) (*domain.User, error) {
	if s.user == nil || s.user.ClerkID != clerkID {
		return nil, domain.ErrNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	return user, nil
}
func (s *stubUserRepo) SetWorkHours(ctx context.Context, clerkID, startTime, endTime string) error {
	return nil
}
func (s *stubUserRepo) SetOnboardingStep(ctx context.Context, clerkID string, step domain.OnboardingStep) error {
	return nil
}
func (s *stubUserRepo) SetPhone(ctx context.Context, clerkID, phone string) error { return nil }
func (s *stubUserRepo) Delete(ctx context.Context, clerkID string) error          { return nil }

type stubProjectRepo struct {
	created []*domain.Project
}

func (s *stubProjectRepo) Create(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if project.Status == "" {
		project.Status = domain.ProjectStatusActive
	}
	s.created = append(s.created, project)
	return project, nil
}

func (s *stubProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	for _, p := range s.created {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubProjectRepo) GetByUserID(ctx context.Context, userID string) ([]*domain.Project, error) {
	var out []*domain.Project
	for _, p := range s.created {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestCreateLinksProjectToUser(t *testing.T) {
	users := &stubUserRepo{user: &domain.User{ID: "u_1", ClerkID: "clerk_1"}}
	projects := &stubProjectRepo{}
	svc := NewService(users, projects)

	req, err := ParseArgs(validArgs())
	require.NoError(t, err)

	created, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u_1", created.UserID)
	assert.Equal(t, req.Deadline, created.Deadline)
	require.Len(t, projects.created, 1)
}

func TestCreateUnknownUser(t *testing.T) {
	svc := NewService(&stubUserRepo{}, &stubProjectRepo{})

	req, err := ParseArgs(validArgs())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListForUserReturnsOnlyOwnProjects(t *testing.T) {
	users := &stubUserRepo{user: &domain.User{ID: "u_1", ClerkID: "clerk_1"}}
	projects := &stubProjectRepo{created: []*domain.Project{
		{ID: "p_1", UserID: "u_1", Title: "Mine"},
		{ID: "p_2", UserID: "u_2", Title: "Someone else's"},
		{ID: "p_3", UserID: "u_1", Title: "Also mine"},
	}}
	svc := NewService(users, projects)

	listed, err := svc.ListForUser(context.Background(), "clerk_1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "p_1", listed[0].ID)
	assert.Equal(t, "p_3", listed[1].ID)
}

func TestListForUserUnknownUser(t *testing.T) {
	svc := NewService(&stubUserRepo{}, &stubProjectRepo{})

	_, err := svc.ListForUser(context.Background(), "clerk_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetOwnProject(t *testing.T) {
	users := &stubUserRepo{user: &domain.User{ID: "u_1", ClerkID: "clerk_1"}}
	projects := &stubProjectRepo{created: []*domain.Project{
		{ID: "p_1", UserID: "u_1", Title: "Mine"},
	}}
	svc := NewService(users, projects)

	proj, err := svc.Get(context.Background(), "clerk_1", "p_1")
	require.NoError(t, err)
	assert.Equal(t, "Mine", proj.Title)
}

func TestGetForeignProjectReportedNotFound(t *testing.T) {
	users := &stubUserRepo{user: &domain.User{ID: "u_1", ClerkID: "clerk_1"}}
	projects := &stubProjectRepo{created: []*domain.Project{
		{ID: "p_2", UserID: "u_2", Title: "Someone else's"},
	}}
	svc := NewService(users, projects)

	_, err := svc.Get(context.Background(), "clerk_1", "p_2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
