package database

import (
	"context"
	_ "embed"
	"fmt"

	"donation_match_backend/internal/config"
	"donation_match_backend/internal/profile"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed sql/profiles_policies.sql
var profilePoliciesSQL string

// Migrate brings the schema up to date. The trigger and row-level policies
// only exist on Postgres and are applied when cfg.DBApplyPolicies is set.
func Migrate(ctx context.Context, db *gorm.DB, cfg *config.Config, logger *zap.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&profile.Profile{}); err != nil {
		return fmt.Errorf("failed to auto-migrate profiles: %w", err)
	}
	logger.Info("Profiles table migrated", zap.String("dialect", db.Dialector.Name()))

	if db.Dialector.Name() != "postgres" || !cfg.DBApplyPolicies {
		return nil
	}

	// The script holds several statements and a dollar-quoted function body,
	// so it goes straight to the driver rather than through a prepared statement.
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, profilePoliciesSQL); err != nil {
		return fmt.Errorf("failed to apply profile policies: %w", err)
	}
	logger.Info("Profile trigger and row-level policies applied")
	return nil
}
