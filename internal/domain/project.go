package domain

import (
	"time"
)

// Project represents a scheduling project created through the assistant's
// tool-call endpoint. The deadline is stored as the ISO string the assistant
// sent, unmodified.
type Project struct {
	ID          string     `json:"id" db:"id" gorm:"column:id;primaryKey"`
	UserID      string     `json:"user_id" db:"user_id" gorm:"column:user_id;index"`
	Title       string     `json:"title" db:"title" gorm:"column:title"`
	Description string     `json:"description" db:"description" gorm:"column:description"`
	MainTasks   StringList `json:"main_tasks" db:"main_tasks" gorm:"column:main_tasks;type:jsonb"`
	Deadline    string     `json:"deadline" db:"deadline" gorm:"column:deadline"`
	DailyHours  float64    `json:"daily_hours" db:"daily_hours" gorm:"column:daily_hours"`
	WeekendWork bool       `json:"weekend_work" db:"weekend_work" gorm:"column:weekend_work"`
	Status      string     `json:"status" db:"status" gorm:"column:status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at" gorm:"column:updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

// CreateProjectRequest carries validated arguments for project creation.
type CreateProjectRequest struct {
	ClerkID     string   `json:"clerkId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	MainTasks   []string `json:"mainTasks"`
	Deadline    string   `json:"deadline"`
	DailyHours  float64  `json:"dailyHours"`
	WeekendWork bool     `json:"weekendWork"`
}
