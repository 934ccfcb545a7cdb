package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type User struct {
	Model
	Email        string                      `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string                      `gorm:"not null" json:"-"`
	FirstName    string                      `gorm:"not null" json:"first_name"`
	LastName     string                      `json:"last_name"`
	Phone        string                      `json:"phone"`
	Roles        datatypes.JSONSlice[string] `json:"roles"`
	AvatarID     *uint                       `json:"avatar_id,omitempty"`

	Verified            bool       `gorm:"not null;default:false" json:"verified"`
	VerificationToken   string     `gorm:"index" json:"-"`
	ResetToken          string     `gorm:"index" json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
}

// FullName falls back to the local part of the email when no first name is set.
func (u User) FullName() string {
	if u.FirstName == "" {
		local, _, _ := strings.Cut(u.Email, "@")
		return local
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
