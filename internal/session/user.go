// Package session keeps an application view of the signed-in user in step
// with the identity provider's session state.
package session

import (
	"time"

	"donation_match_backend/internal/profile"
)

// User is the in-memory projection of a profile for the signed-in identity.
type User struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	DisplayName      string            `json:"display_name"`
	FullName         *string           `json:"name,omitempty"`
	Phone            *string           `json:"phone,omitempty"`
	ProfilePicture   *string           `json:"avatar,omitempty"`
	Role             profile.Role      `json:"role"`
	OrganizationName *string           `json:"organization_name,omitempty"`
	Category         *profile.Category `json:"category,omitempty"`
	Location         *profile.Location `json:"location,omitempty"`
	Verified         bool              `json:"verified"`
	ProfileComplete  bool              `json:"profile_complete"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// UserFromProfile maps a profile row to a User.
func UserFromProfile(p *profile.Profile) *User {
	return &User{
		ID:               p.ID,
		Email:            p.Email,
		DisplayName:      p.DisplayName(),
		FullName:         p.FullName,
		Phone:            p.Phone,
		ProfilePicture:   p.ProfilePicture,
		Role:             p.Role,
		OrganizationName: p.OrganizationName,
		Category:         p.Category,
		Location:         p.Location,
		Verified:         p.Verified,
		ProfileComplete:  p.ProfileComplete,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// Snapshot is a consistent read of a synchronizer's state.
type Snapshot struct {
	User      *User  `json:"user"`
	Loading   bool   `json:"loading"`
	LastError string `json:"last_error,omitempty"`
}
