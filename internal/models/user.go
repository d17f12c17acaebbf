package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type Role string

const (
	RoleScrumMaster  Role = "Scrum Master"
	RoleProductOwner Role = "Product Owner"
	RoleScrumTeam    Role = "Scrum Team"
)

func (r Role) Valid() bool {
	switch r {
	case RoleScrumMaster, RoleProductOwner, RoleScrumTeam:
		return true
	}
	return false
}

type Strength string

const (
	StrengthFrontend Strength = "frontend"
	StrengthBackend  Strength = "backend"
	StrengthDatabase Strength = "database"
	StrengthTesting  Strength = "testing"
)

var ValidStrengths = map[Strength]struct{}{
	StrengthFrontend: {},
	StrengthBackend:  {},
	StrengthDatabase: {},
	StrengthTesting:  {},
}

// DeveloperProfile is embedded in the users table with a dev_ column prefix.
type DeveloperProfile struct {
	YearsExperience int        `json:"yearsExperience" gorm:"not null;default:0"`
	Technologies    []string   `json:"technologies" gorm:"serializer:json;type:text"`
	Strengths       []Strength `json:"strengths" gorm:"serializer:json;type:text"`
}

type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"not null"`
	Name      string    `json:"name" gorm:"not null"`
	Confirmed bool      `json:"confirmed" gorm:"not null;default:false"`
	Role      Role      `json:"role" gorm:"not null;default:'Scrum Team'"`

	DeveloperProfile DeveloperProfile `json:"developerProfile" gorm:"embedded;embeddedPrefix:dev_"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) HasRole(role Role) bool {
	return u != nil && u.Role == role
}

func (u *User) HasTechnology(tech string) bool {
	for _, t := range u.DeveloperProfile.Technologies {
		if t == tech {
			return true
		}
	}
	return false
}

// PublicUser is the shape returned when a user is looked up by other users.
type PublicUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  Role      `json:"role"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}
