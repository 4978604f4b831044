package domain

import (
	"time"
)

// OnboardingStep represents one discrete stage in the guided setup sequence
type OnboardingStep string

const (
	StepGoogleCalendar OnboardingStep = "googleCalendar"
	StepWorkSchedule   OnboardingStep = "workSchedule"
	StepPlaceCall      OnboardingStep = "placeCall"
	StepComplete       OnboardingStep = "complete"
)

// IsValid reports whether s is one of the defined onboarding steps.
func (s OnboardingStep) IsValid() bool {
	switch s {
	case StepGoogleCalendar, StepWorkSchedule, StepPlaceCall, StepComplete:
		return true
	}
	return false
}

// User represents a user registered by the upstream identity provider.
// Name and email are set once at creation; phone and work hours are filled
// in during onboarding. Records are created and deleted only by identity
// webhook events, never by the onboarding flow itself.
type User struct {
	ID      string `json:"id" db:"id" gorm:"column:id;primaryKey"`
	ClerkID string `json:"clerk_id" db:"clerk_id" gorm:"column:clerk_id;uniqueIndex"`
	Name    string `json:"name" db:"name" gorm:"column:name"`
	Email   string `json:"email" db:"email" gorm:"column:email"`
	Phone   string `json:"phone,omitempty" db:"phone" gorm:"column:phone"`

	// Work hours are wall-clock "HH:MM" strings; start strictly precedes end
	// when both are present. Empty until the workSchedule step is submitted.
	WorkStartTime string `json:"work_start_time,omitempty" db:"work_start_time" gorm:"column:work_start_time"`
	WorkEndTime   string `json:"work_end_time,omitempty" db:"work_end_time" gorm:"column:work_end_time"`

	OnboardingStep OnboardingStep `json:"onboarding_step" db:"onboarding_step" gorm:"column:onboarding_step"`
	Onboarded      bool           `json:"onboarded" db:"onboarded" gorm:"column:onboarded"`

	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}

// HasWorkHours reports whether both work-hour fields are present.
func (u *User) HasWorkHours() bool {
	return u.WorkStartTime != "" && u.WorkEndTime != ""
}
