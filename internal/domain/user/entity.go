// internal/domain/user/entity.go
package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the account type of a user
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("invalid role")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSelfModification   = errors.New("you cannot change your own back-office access")
)

// User represents a store account
type User struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Email             string     `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Username          string     `gorm:"uniqueIndex;not null;size:150" json:"username"`
	Password          string     `gorm:"not null;size:255" json:"-"`
	FirstName         string     `gorm:"size:100" json:"first_name"`
	LastName          string     `gorm:"size:100" json:"last_name"`
	Phone             string     `gorm:"size:15" json:"phone"`
	ShippingAddress   string     `gorm:"type:text" json:"shipping_address"`
	Role              Role       `gorm:"size:20;not null;default:'customer';index" json:"role"`
	IsActive          bool       `gorm:"default:true" json:"is_active"`
	EmailVerified     bool       `gorm:"default:false" json:"email_verified"`
	VerificationToken uuid.UUID  `gorm:"type:uuid" json:"-"`
	LastLoginAt       *time.Time `json:"last_login_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate normalises the email and issues the verification token
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	if u.VerificationToken == uuid.Nil {
		u.VerificationToken = uuid.New()
	}
	return nil
}

// IsAdmin reports whether the user may use the back-office
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleStaff
}

// GetFullName returns the user's full name
func (u *User) GetFullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// GetDisplayName returns display name (full name or email)
func (u *User) GetDisplayName() string {
	if fullName := u.GetFullName(); fullName != "" {
		return fullName
	}
	return u.Email
}

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleCustomer, RoleAdmin, RoleStaff:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}
