package model

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStaff UserRole = "staff" // admission committee member
	RoleAdmin UserRole = "admin"
)

// User is a staff account for the admin API. Applicants never have accounts;
// the public flow is tracked by registration number and contact identifiers.
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"type:varchar(255);not null" json:"-"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	Role         UserRole       `gorm:"type:varchar(20);default:'staff'" json:"role"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}
