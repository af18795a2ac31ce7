package types

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Role is the access level of a user inside a tenant.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleSchoolAdmin Role = "school_admin"
	RoleInstructor  Role = "instructor"
	RoleStudent     Role = "student"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleSchoolAdmin, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

// SelfAssignable reports whether r may be chosen at signup.
// Admin roles are only granted out of band.
func (r Role) SelfAssignable() bool {
	return r == RoleStudent || r == RoleInstructor
}

// User is the stored credential record joined with its profile.
type User struct {
	ID           uuid.UUID   `json:"id"`
	TenantID     string      `json:"tenant_id"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Role         Role        `json:"role"`
	IsActive     bool        `json:"is_active"`
	LastLogin    *time.Time  `json:"last_login,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Profile      UserProfile `json:"profile"`
}

// UserProfile holds the user-editable personal data.
type UserProfile struct {
	FirstName string         `json:"first_name" example:"Ana"`
	LastName  string         `json:"last_name" example:"Silva"`
	Phone     *string        `json:"phone" example:"+351910000000"`
	AvatarURL *string        `json:"avatar_url" example:"https://cdn.example.com/a.png"`
	Settings  map[string]any `json:"settings"`
}

// UserPublic is the only user shape that leaves the credential service.
// It has no field that can carry the password hash.
type UserPublic struct {
	ID        uuid.UUID   `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	TenantID  string      `json:"tenant_id" example:"T1"`
	Email     string      `json:"email" example:"ana@school.pt"`
	Role      Role        `json:"role" example:"student"`
	IsActive  bool        `json:"is_active" example:"true"`
	LastLogin *time.Time  `json:"last_login,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Profile   UserProfile `json:"profile"`
}

// Public returns the redacted copy of u.
func (u *User) Public() UserPublic {
	profile := u.Profile
	if profile.Settings != nil {
		profile.Settings = maps.Clone(profile.Settings)
	} else {
		profile.Settings = map[string]any{}
	}
	return UserPublic{
		ID:        u.ID,
		TenantID:  u.TenantID,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Profile:   profile,
	}
}

// ProfileColumns lists the profile fields a user may change, in the order updates are applied.
var ProfileColumns = []string{"first_name", "last_name", "phone", "avatar_url", "settings"}

// ProfileUpdate maps allow-listed profile columns to validated values:
// string for names, *string for phone and avatar_url, map[string]any for settings.
type ProfileUpdate map[string]any
