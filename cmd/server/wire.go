//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"donation_match_backend/internal/app"
	"donation_match_backend/internal/auth"
	"donation_match_backend/internal/config"
	"donation_match_backend/internal/identity"
	"donation_match_backend/internal/identity/firebase"
	"donation_match_backend/internal/jobs"
	"donation_match_backend/internal/profile"

	"github.com/google/wire"
)

var identitySet = wire.NewSet(
	provideDatabase,
	profile.NewGORMRepository,
	profile.NewProvisioner,
	wire.Bind(new(identity.ProvisioningHook), new(*profile.Provisioner)),
	provideSessionStore,
	firebase.NewClient,
	wire.Bind(new(identity.Lookup), new(*firebase.Client)),
)

// initializeServer is the main Wire injector.
func initializeServer(ctx context.Context, cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		provideLogger,
		identitySet,
		provideProviderFactory,
		provideRegistry,
		auth.NewHandler,
		jobs.NewVerificationSyncJob,
		provideClientSweepJob,
		jobs.NewScheduler,
		app.NewServer,
	)
	return nil, nil, nil
}

// initializeVerificationSync builds the verification job for one-off runs.
func initializeVerificationSync(ctx context.Context, cfg *config.Config) (*jobs.VerificationSyncJob, func(), error) {
	wire.Build(
		provideLogger,
		identitySet,
		jobs.NewVerificationSyncJob,
	)
	return nil, nil, nil
}
