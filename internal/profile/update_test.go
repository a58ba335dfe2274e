package profile

import (
	"testing"

	"donation_match_backend/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_ColumnsAlwaysCompleteProfile(t *testing.T) {
	cols := Update{FullName: strPtr(" X ")}.Columns()
	assert.Equal(t, map[string]interface{}{
		"full_name":        "X",
		"profile_complete": true,
	}, cols)

	assert.Equal(t, map[string]interface{}{"profile_complete": true}, Update{}.Columns())
}

func TestUpdate_ColumnsMapApplicationNames(t *testing.T) {
	cat := CategoryCommunityKitchen
	cols := Update{
		Phone:            strPtr("+919876543210"),
		ProfilePicture:   strPtr("https://img.example/p.png"),
		OrganizationName: strPtr("Annapurna"),
		Category:         &cat,
		Location:         &Location{City: "Chennai"},
	}.Columns()

	assert.Equal(t, "+919876543210", cols["phone"])
	assert.Equal(t, "https://img.example/p.png", cols["profile_picture"])
	assert.Equal(t, "Annapurna", cols["organization_name"])
	assert.Equal(t, "community_kitchen", cols["category"])
	assert.Equal(t, Location{City: "Chennai"}, cols["location"])
	assert.Equal(t, true, cols["profile_complete"])
}

func TestUpdate_Validate(t *testing.T) {
	shelter := CategoryShelter
	bogus := Category("casino")
	badLat := 123.0

	tests := []struct {
		name    string
		update  Update
		role    Role
		wantErr bool
	}{
		{name: "empty update", update: Update{}, role: RoleDonor},
		{name: "donor name and phone", update: Update{FullName: strPtr("Ann"), Phone: strPtr("+14155550100")}, role: RoleDonor},
		{name: "receiver organization", update: Update{OrganizationName: strPtr("Haven"), Category: &shelter}, role: RoleReceiver},
		{name: "donor cannot set organization", update: Update{OrganizationName: strPtr("Haven")}, role: RoleDonor, wantErr: true},
		{name: "donor cannot set category", update: Update{Category: &shelter}, role: RoleDonor, wantErr: true},
		{name: "unknown category", update: Update{Category: &bogus}, role: RoleReceiver, wantErr: true},
		{name: "bad phone", update: Update{Phone: strPtr("12345")}, role: RoleDonor, wantErr: true},
		{name: "bad avatar url", update: Update{ProfilePicture: strPtr("not a url")}, role: RoleDonor, wantErr: true},
		{name: "empty name", update: Update{FullName: strPtr("")}, role: RoleDonor, wantErr: true},
		{name: "latitude out of range", update: Update{Location: &Location{Latitude: &badLat}}, role: RoleDonor, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate(tt.role)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestProfile_DisplayName(t *testing.T) {
	assert.Equal(t, "Ann", (&Profile{Email: "a@x.com", FullName: strPtr(" Ann ")}).DisplayName())
	assert.Equal(t, "a", (&Profile{Email: "a@x.com", FullName: strPtr("  ")}).DisplayName())
	assert.Equal(t, "a", (&Profile{Email: "a@x.com"}).DisplayName())
}

func TestLocation_ValueScan(t *testing.T) {
	lat := 18.52
	in := Location{Address: "1 MG Road", Country: "IN", Latitude: &lat}
	v, err := in.Value()
	require.NoError(t, err)

	var out Location
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in.Address, out.Address)
	require.NotNil(t, out.Latitude)
	assert.Equal(t, lat, *out.Latitude)

	require.NoError(t, out.Scan(nil))
	assert.Equal(t, Location{}, out)
	assert.Error(t, out.Scan(42))
}
