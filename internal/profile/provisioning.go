package profile

import (
	"context"
	"errors"
	"fmt"

	"donation_match_backend/internal/common"
	"donation_match_backend/internal/identity"

	"go.uber.org/zap"
)

// Provisioner creates the profile stub for a newly created identity. It is
// installed as an identity.ProvisioningHook so the row exists before the
// provider announces the first sign-in.
type Provisioner struct {
	repo   Repository
	logger *zap.Logger
}

var _ identity.ProvisioningHook = (*Provisioner)(nil)

// NewProvisioner creates a Provisioner.
func NewProvisioner(repo Repository, logger *zap.Logger) *Provisioner {
	return &Provisioner{repo: repo, logger: logger.Named("profile_provisioner")}
}

// RoleFromMetadata returns the requested role when it is one a user may pick
// for themselves, and donor for anything else.
func RoleFromMetadata(meta identity.Metadata) Role {
	if r := Role(meta.RequestedRole()); r.SelfAssignable() {
		return r
	}
	return RoleDonor
}

// NewProfileFromIdentity builds the initial profile row for an identity.
func NewProfileFromIdentity(id identity.Identity) *Profile {
	name := id.Metadata.FullName()
	if name == "" {
		name = EmailLocalPart(id.Email)
	}
	p := &Profile{
		ID:              id.ID,
		Email:           NormalizeEmail(id.Email),
		FullName:        &name,
		Role:            RoleFromMetadata(id.Metadata),
		Verified:        id.EmailConfirmed(),
		ProfileComplete: false,
	}
	if avatar := id.Metadata.AvatarURL(); avatar != "" {
		p.ProfilePicture = &avatar
	}
	return p
}

// OnIdentityCreated inserts the profile row. A row that already exists is left as is.
func (p *Provisioner) OnIdentityCreated(ctx context.Context, id identity.Identity) error {
	if id.ID == "" {
		return errors.New("provisioning: identity has no id")
	}
	ctx = WithActor(ctx, id.ID)

	_, err := p.repo.FindByID(ctx, id.ID)
	if err == nil {
		p.logger.Debug("Profile already provisioned", zap.String("identityID", id.ID))
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("provisioning: lookup failed: %w", err)
	}

	row := NewProfileFromIdentity(id)
	if err := p.repo.Create(ctx, row); err != nil {
		if errors.Is(err, common.ErrConflict) {
			p.logger.Debug("Profile provisioned concurrently", zap.String("identityID", id.ID))
			return nil
		}
		return fmt.Errorf("provisioning: %w", err)
	}
	p.logger.Info("Provisioned profile",
		zap.String("identityID", id.ID),
		zap.String("role", string(row.Role)),
		zap.Bool("verified", row.Verified),
	)
	return nil
}
