package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/taskpilot/internal/models"
)

// SetRefreshToken overwrites the stored token whatever it was. One statement,
// so there is no observable intermediate state.
func (r *GormRepo) SetRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Model(&models.User{}).Where("id = ?", userID).Update("refresh_token", token)
	if res.Error != nil {
		return mapErr("set refresh token", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SwapRefreshToken replaces old with next only if old is still the stored
// value. It reports false when another writer got there first.
func (r *GormRepo) SwapRefreshToken(ctx context.Context, userID uuid.UUID, old, next string) (bool, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Model(&models.User{}).
		Where("id = ? AND refresh_token = ?", userID, old).
		Update("refresh_token", next)
	if res.Error != nil {
		return false, mapErr("swap refresh token", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ClearRefreshToken is idempotent: clearing an absent token or an unknown
// user is not an error.
func (r *GormRepo) ClearRefreshToken(ctx context.Context, userID uuid.UUID) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	err := db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token", gorm.Expr("NULL")).Error
	return mapErr("clear refresh token", err)
}
