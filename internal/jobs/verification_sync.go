package jobs

import (
	"context"
	"errors"

	"donation_match_backend/internal/identity"
	"donation_match_backend/internal/profile"

	"go.uber.org/zap"
)

const verificationPageSize = 100

// VerificationSyncJob copies email confirmation from the identity provider onto
// profiles still marked unverified.
type VerificationSyncJob struct {
	profiles profile.Repository
	lookup   identity.Lookup
	logger   *zap.Logger
	pageSize int
}

func NewVerificationSyncJob(profiles profile.Repository, lookup identity.Lookup, logger *zap.Logger) *VerificationSyncJob {
	return &VerificationSyncJob{
		profiles: profiles,
		lookup:   lookup,
		logger:   logger.Named("verification_sync"),
		pageSize: verificationPageSize,
	}
}

// Run pages through unverified profiles and returns how many it verified.
// Identities the provider no longer knows are skipped; a provider outage
// stops the run.
func (j *VerificationSyncJob) Run(ctx context.Context) (int, error) {
	ctx = profile.WithActor(ctx, profile.ServiceActor)
	verified := 0
	afterID := ""
	for {
		page, err := j.profiles.ListUnverified(ctx, afterID, j.pageSize)
		if err != nil {
			return verified, err
		}
		for _, p := range page {
			afterID = p.ID
			id, err := j.lookup.LookupIdentity(ctx, p.ID)
			if err != nil {
				if errors.Is(err, identity.ErrIdentityNotFound) {
					j.logger.Warn("Profile has no matching identity", zap.String("profileID", p.ID))
					continue
				}
				return verified, err
			}
			if !id.EmailConfirmed() {
				continue
			}
			if err := j.profiles.SetVerified(ctx, p.ID); err != nil {
				return verified, err
			}
			verified++
		}
		if len(page) < j.pageSize {
			return verified, nil
		}
		if err := ctx.Err(); err != nil {
			return verified, err
		}
	}
}
