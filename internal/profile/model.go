// File: internal/profile/model.go
package profile

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the application role stored on a profile.
type Role string

const (
	RoleDonor    Role = "donor"
	RoleReceiver Role = "receiver"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RoleReceiver, RoleAdmin:
		return true
	}
	return false
}

// SelfAssignable reports whether a user may pick r for themselves at signup.
// Admin is only ever granted out of band.
func (r Role) SelfAssignable() bool {
	return r == RoleDonor || r == RoleReceiver
}

// IsOrganization reports whether profiles with this role carry organization fields.
func (r Role) IsOrganization() bool {
	return r == RoleReceiver
}

// Category classifies a receiving organization.
type Category string

const (
	CategoryNGO              Category = "ngo"
	CategoryOrphanage        Category = "orphanage"
	CategoryOldAgeHome       Category = "old_age_home"
	CategoryShelter          Category = "shelter"
	CategoryVolunteerGroup   Category = "volunteer_group"
	CategoryCommunityKitchen Category = "community_kitchen"
)

// Categories lists every receiver category in declaration order.
var Categories = []Category{
	CategoryNGO,
	CategoryOrphanage,
	CategoryOldAgeHome,
	CategoryShelter,
	CategoryVolunteerGroup,
	CategoryCommunityKitchen,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Location is a structured address plus an optional coordinate pair.
// It is persisted as a JSON document in a single column.
type Location struct {
	Address    string   `json:"address,omitempty" validate:"max=500"`
	City       string   `json:"city,omitempty" validate:"max=100"`
	State      string   `json:"state,omitempty" validate:"max=100"`
	PostalCode string   `json:"postal_code,omitempty" validate:"max=20"`
	Country    string   `json:"country,omitempty" validate:"max=100"`
	Latitude   *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// Value implements driver.Valuer.
func (l Location) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode location: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *Location) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = Location{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("location: unsupported column type")
	}
	if len(raw) == 0 {
		*l = Location{}
		return nil
	}
	return json.Unmarshal(raw, l)
}

// Profile is the application-owned record describing a user of the platform.
// Its ID equals the identity provider's user id.
type Profile struct {
	ID               string    `gorm:"type:varchar(128);primaryKey"`
	Email            string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_profiles_email"`
	FullName         *string   `gorm:"type:varchar(200)"`
	Phone            *string   `gorm:"type:varchar(32)"`
	ProfilePicture   *string   `gorm:"type:text"`
	Role             Role      `gorm:"type:varchar(20);not null;default:'donor';check:chk_profiles_role,role IN ('donor','receiver','admin')"`
	OrganizationName *string   `gorm:"type:varchar(200)"`
	Category         *Category `gorm:"type:varchar(32);check:chk_profiles_category,category IS NULL OR category IN ('ngo','orphanage','old_age_home','shelter','volunteer_group','community_kitchen')"`
	Location         *Location `gorm:"type:jsonb"`
	Verified         bool      `gorm:"not null;default:false"`
	ProfileComplete  bool      `gorm:"not null;default:false"`
	CreatedAt        time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName specifies the table name for the Profile model.
func (Profile) TableName() string {
	return "profiles"
}

// DisplayName is the full name when present, otherwise the email local part.
func (p *Profile) DisplayName() string {
	if p.FullName != nil && strings.TrimSpace(*p.FullName) != "" {
		return strings.TrimSpace(*p.FullName)
	}
	return EmailLocalPart(p.Email)
}

// EmailLocalPart returns the part of an address before the '@'.
func EmailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
