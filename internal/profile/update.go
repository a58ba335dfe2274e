package profile

import (
	"errors"
	"strings"

	"donation_match_backend/internal/common"

	"github.com/go-playground/validator/v10"
)

// Update is a partial profile edit expressed in application field names.
// Nil fields are left unchanged.
type Update struct {
	FullName         *string   `json:"name,omitempty" validate:"omitnil,min=1,max=200"`
	Phone            *string   `json:"phone,omitempty" validate:"omitempty,e164"`
	ProfilePicture   *string   `json:"avatar,omitempty" validate:"omitempty,url"`
	OrganizationName *string   `json:"organization_name,omitempty" validate:"omitempty,max=200"`
	Category         *Category `json:"category,omitempty"`
	Location         *Location `json:"location,omitempty"`
}

var validate = validator.New()

// Validate checks the update against the role of the profile it applies to.
func (u Update) Validate(role Role) error {
	if err := validate.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return common.NewValidationAPIError(common.FormatValidationErrors(verrs))
		}
		return common.ErrValidation.WithDetails(err.Error())
	}
	if u.Category != nil && !u.Category.Valid() {
		return common.NewValidationAPIError(map[string]string{
			"Category": "The category field must be one of the following values: " + categoryList() + ".",
		})
	}
	if !role.IsOrganization() && (u.OrganizationName != nil || u.Category != nil) {
		return common.ErrValidation.WithMessage("Organization details can only be set on receiver profiles.")
	}
	return nil
}

// Columns maps the update onto profile column names. profile_complete is
// always set: saving a profile declares it complete.
func (u Update) Columns() map[string]interface{} {
	cols := map[string]interface{}{"profile_complete": true}
	if u.FullName != nil {
		cols["full_name"] = strings.TrimSpace(*u.FullName)
	}
	if u.Phone != nil {
		cols["phone"] = *u.Phone
	}
	if u.ProfilePicture != nil {
		cols["profile_picture"] = *u.ProfilePicture
	}
	if u.OrganizationName != nil {
		cols["organization_name"] = strings.TrimSpace(*u.OrganizationName)
	}
	if u.Category != nil {
		cols["category"] = string(*u.Category)
	}
	if u.Location != nil {
		cols["location"] = *u.Location
	}
	return cols
}

func categoryList() string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return strings.Join(names, " ")
}
