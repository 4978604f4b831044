package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/plincohq/onboarding-service/internal/domain"
	"gorm.io/gorm"
)

// GormUserRepository implements UserRepository using GORM
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM user repository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// GetByClerkID retrieves a user by identity key
func (r *GormUserRepository) GetByClerkID(ctx context.Context, clerkID string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "clerk_id = ?", clerkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", clerkID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", domain.ErrPersistence)
	}

	return &user, nil
}

// Upsert creates the user record or refreshes identity-owned fields on an
// existing one. Onboarding progress (step, hours, phone) is preserved on
// update; only the identity provider's own attributes are overwritten.
func (r *GormUserRepository) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	var existing domain.User
	err := r.db.WithContext(ctx).First(&existing, "clerk_id = ?", user.ClerkID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up user for upsert: %w", domain.ErrPersistence)
		}

		if user.ID == "" {
			user.ID = uuid.New().String()
		}
		if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", domain.ErrPersistence)
		}
		return user, nil
	}

	updates := map[string]interface{}{
		"name":  user.Name,
		"email": user.Email,
	}
	if err := r.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", domain.ErrPersistence)
	}

	existing.Name = user.Name
	existing.Email = user.Email
	return &existing, nil
}

// SetWorkHours stores the work-hour pair on the user record
func (r *GormUserRepository) SetWorkHours(ctx context.Context, clerkID, startTime, endTime string) error {
	return r.updateByClerkID(ctx, clerkID, map[string]interface{}{
		"work_start_time": startTime,
		"work_end_time":   endTime,
	})
}

// SetOnboardingStep writes the persisted onboarding step (last-write-wins)
func (r *GormUserRepository) SetOnboardingStep(ctx context.Context, clerkID string, step domain.OnboardingStep) error {
	return r.updateByClerkID(ctx, clerkID, map[string]interface{}{
		"onboarding_step": step,
	})
}

// SetPhone stores the phone number on the user record
func (r *GormUserRepository) SetPhone(ctx context.Context, clerkID, phone string) error {
	return r.updateByClerkID(ctx, clerkID, map[string]interface{}{
		"phone": phone,
	})
}

// Delete removes a user record
func (r *GormUserRepository) Delete(ctx context.Context, clerkID string) error {
	result := r.db.WithContext(ctx).Where("clerk_id = ?", clerkID).Delete(&domain.User{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", domain.ErrPersistence)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", clerkID, domain.ErrNotFound)
	}
	return nil
}

func (r *GormUserRepository) updateByClerkID(ctx context.Context, clerkID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&domain.User{}).Where("clerk_id = ?", clerkID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", domain.ErrPersistence)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", clerkID, domain.ErrNotFound)
	}
	return nil
}
