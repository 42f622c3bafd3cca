package domain

import (
	"time"
)

// Role type to distinguish between user roles
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an account of the application.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`    // unique
	PasswordHash string    `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role      `bson:"role" json:"role"`
	Profile      Profile   `bson:"profile" json:"profile"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Profile holds the personal attributes used to personalize generated advice.
// Age and BMI are derived on read and never stored.
type Profile struct {
	FullName string     `bson:"fullName,omitempty" json:"fullName,omitempty"`
	Birthday *time.Time `bson:"birthday,omitempty" json:"birthday,omitempty"`
	HeightCm *float64   `bson:"heightCm,omitempty" json:"heightCm,omitempty"`
	WeightKg *float64   `bson:"weightKg,omitempty" json:"weightKg,omitempty"`
}

// IsEmpty reports whether none of the profile fields are set.
func (p Profile) IsEmpty() bool {
	return p.FullName == "" && p.Birthday == nil && p.HeightCm == nil && p.WeightKg == nil
}
