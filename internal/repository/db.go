package repository

import (
	"context"

	"github.com/plincohq/onboarding-service/internal/domain"
	"gorm.io/gorm"
)

// UserRepository defines persistence operations on user records. Records are
// created and deleted only through identity webhook events; the onboarding
// flow mutates them through the three Set operations.
type UserRepository interface {
	GetByClerkID(ctx context.Context, clerkID string) (*domain.User, error)
	Upsert(ctx context.Context, user *domain.User) (*domain.User, error)

	// SetWorkHours stores the validated work-hour pair.
	SetWorkHours(ctx context.Context, clerkID, startTime, endTime string) error

	// SetOnboardingStep writes the persisted step. There is no version check;
	// concurrent writes are last-write-wins, which is acceptable for the
	// single-user single-session onboarding flow.
	SetOnboardingStep(ctx context.Context, clerkID string, step domain.OnboardingStep) error

	SetPhone(ctx context.Context, clerkID, phone string) error

	// Delete removes the record; driven by identity-removal events only.
	Delete(ctx context.Context, clerkID string) error
}

// ProjectRepository defines persistence operations on projects
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) (*domain.Project, error)
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.Project, error)
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	User() UserRepository
	Project() ProjectRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db          *gorm.DB
	userRepo    *GormUserRepository
	projectRepo *GormProjectRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:          db,
		userRepo:    NewGormUserRepository(db),
		projectRepo: NewGormProjectRepository(db),
	}
}

// User returns the user repository
func (m *GormRepositoryManager) User() UserRepository {
	return m.userRepo
}

// Project returns the project repository
func (m *GormRepositoryManager) Project() ProjectRepository {
	return m.projectRepo
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
