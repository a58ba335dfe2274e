// File: internal/profile/repository.go
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"donation_match_backend/internal/common"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Repository defines the profile operations consumed by the session layer and jobs.
type Repository interface {
	// FindByID returns common.ErrNotFound when no row exists.
	FindByID(ctx context.Context, id string) (*Profile, error)
	// Create fails with common.ErrConflict when the id is already present and
	// common.ErrValidation when the email is taken by another profile.
	Create(ctx context.Context, p *Profile) error
	// Update applies column assignments to the row with the given id.
	Update(ctx context.Context, id string, columns map[string]interface{}) error
	ListUnverified(ctx context.Context, afterID string, limit int) ([]Profile, error)
	SetVerified(ctx context.Context, id string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM profile repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// scoped runs fn inside a transaction that carries the acting identity, so the
// row-level policies installed on Postgres see who is reading or writing.
func (r *gormRepository) scoped(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db := r.db.WithContext(ctx)
	if r.db.Dialector.Name() != "postgres" {
		return fn(db)
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT set_config(?, ?, true)", actorSetting, ActorFromContext(ctx)).Error; err != nil {
			return fmt.Errorf("failed to set acting identity: %w", err)
		}
		return fn(tx)
	})
}

// FindByID retrieves a profile by the identity id it belongs to.
func (r *gormRepository) FindByID(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := r.scoped(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Take(&p).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Profile not found for this identity.")
		}
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return &p, nil
}

// Create inserts a new profile row.
func (r *gormRepository) Create(ctx context.Context, p *Profile) error {
	p.Email = NormalizeEmail(p.Email)
	if p.Role == "" {
		p.Role = RoleDonor
	}
	err := r.scoped(ctx, func(tx *gorm.DB) error {
		return tx.Create(p).Error
	})
	if err != nil {
		return classifyWriteError(err)
	}
	return nil
}

// Update modifies the row matching id. Only the supplied columns change;
// updated_at is refreshed by GORM (and by the trigger on Postgres).
func (r *gormRepository) Update(ctx context.Context, id string, columns map[string]interface{}) error {
	if len(columns) == 0 {
		return nil
	}
	var affected int64
	err := r.scoped(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&Profile{}).Where("id = ?", id).Updates(columns)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return classifyWriteError(err)
	}
	if affected == 0 {
		return common.ErrNotFound.WithDetails("No profile matched the update.")
	}
	return nil
}

// ListUnverified pages through profiles whose email is not yet confirmed, ordered by id.
func (r *gormRepository) ListUnverified(ctx context.Context, afterID string, limit int) ([]Profile, error) {
	var profiles []Profile
	err := r.scoped(ctx, func(tx *gorm.DB) error {
		return tx.Where("verified = ? AND id > ?", false, afterID).
			Order("id").
			Limit(limit).
			Find(&profiles).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list unverified profiles: %w", err)
	}
	return profiles, nil
}

// SetVerified marks the profile's email as confirmed.
func (r *gormRepository) SetVerified(ctx context.Context, id string) error {
	return r.Update(ctx, id, map[string]interface{}{"verified": true})
}

// classifyWriteError maps driver-specific unique violations onto the common
// error taxonomy. A duplicate id is a conflict the caller may tolerate; a
// duplicate email is a user-facing validation problem.
func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}
	target, unique := uniqueViolationTarget(err)
	if !unique {
		return fmt.Errorf("profile write failed: %w", err)
	}
	if strings.Contains(target, "email") {
		return common.ErrValidation.WithMessage("An account with this email already exists.")
	}
	return common.ErrConflict.WithDetails("A profile already exists for this identity.")
}

// uniqueViolationTarget reports whether err is a unique violation and, when
// the driver says so, which constraint or column was hit.
func uniqueViolationTarget(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "23505" {
			return pqErr.Constraint + " " + pqErr.Detail, true
		}
		return "", false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		// sqlite: "UNIQUE constraint failed: profiles.email"
		return msg, true
	case strings.Contains(msg, "duplicate key value violates unique constraint"):
		return msg, true
	}
	return "", false
}
