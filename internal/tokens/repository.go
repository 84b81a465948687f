package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/franciscosanchezn/signflow-api/internal/models"
)

var (
	// ErrNoActiveToken is returned when no active record exists for a key
	ErrNoActiveToken = errors.New("tokens: no active token")

	// ErrVersionConflict is returned when another writer updated the record first
	ErrVersionConflict = errors.New("tokens: record version changed")
)

// Key identifies the single active credential set.
// An empty AccountID matches whichever account was authorized.
type Key struct {
	Provider    string
	Environment string
	AccountID   string
}

func (k Key) String() string {
	return k.Provider + "|" + k.Environment + "|" + k.AccountID
}

// Repository persists provider tokens. Values returned are unsealed.
type Repository interface {
	GetActive(ctx context.Context, key Key) (*models.ProviderToken, error)
	ReplaceActive(ctx context.Context, token *models.ProviderToken) error
	UpsertAfterRefresh(ctx context.Context, token *models.ProviderToken, expectedVersion int) error
	TouchLastUsed(ctx context.Context, id uint, at time.Time) error
	Deactivate(ctx context.Context, id uint, reason string, at time.Time) error
	DeactivateAll(ctx context.Context, key Key, reason string, at time.Time) (int64, error)
	CountActive(ctx context.Context) (int64, error)
	PurgeInactive(ctx context.Context, before time.Time) (int64, error)
}

// GormRepository stores tokens through gorm with sealed secret columns
type GormRepository struct {
	db     *gorm.DB
	sealer Sealer
}

// NewGormRepository creates a gorm backed repository
func NewGormRepository(db *gorm.DB, sealer Sealer) *GormRepository {
	if sealer == nil {
		sealer = plainSealer{}
	}
	return &GormRepository{db: db, sealer: sealer}
}

func scopeKey(db *gorm.DB, key Key) *gorm.DB {
	db = db.Where("provider = ? AND environment = ?", key.Provider, key.Environment)
	if key.AccountID != "" {
		db = db.Where("account_id = ?", key.AccountID)
	}
	return db
}

func (r *GormRepository) GetActive(ctx context.Context, key Key) (*models.ProviderToken, error) {
	var token models.ProviderToken
	err := scopeKey(r.db.WithContext(ctx), key).
		Where("is_active = ?", true).
		Order("issued_at DESC, id DESC").
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveToken
		}
		return nil, fmt.Errorf("load active token: %w", err)
	}

	if token.AccessToken, err = r.sealer.Open(token.AccessToken); err != nil {
		return nil, err
	}
	if token.RefreshToken, err = r.sealer.Open(token.RefreshToken); err != nil {
		return nil, err
	}
	return &token, nil
}

// ReplaceActive deactivates every active record for the token's key and inserts token
func (r *GormRepository) ReplaceActive(ctx context.Context, token *models.ProviderToken) error {
	access, err := r.sealer.Seal(token.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := r.sealer.Seal(token.RefreshToken)
	if err != nil {
		return err
	}

	row := *token
	row.AccessToken = access
	row.RefreshToken = refresh
	row.IsActive = true
	if row.Version == 0 {
		row.Version = 1
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key := Key{Provider: token.Provider, Environment: token.Environment}
		res := scopeKey(tx.Model(&models.ProviderToken{}), key).
			Where("is_active = ?", true).
			Updates(deactivation(token.IssuedAt, "superseded by new authorization"))
		if res.Error != nil {
			return res.Error
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("store authorized token: %w", err)
	}

	token.ID = row.ID
	token.IsActive = true
	token.Version = row.Version
	token.CreatedAt = row.CreatedAt
	token.UpdatedAt = row.UpdatedAt
	return nil
}

// UpsertAfterRefresh writes rotated credentials if the stored version still equals expectedVersion
func (r *GormRepository) UpsertAfterRefresh(ctx context.Context, token *models.ProviderToken, expectedVersion int) error {
	access, err := r.sealer.Seal(token.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := r.sealer.Seal(token.RefreshToken)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&models.ProviderToken{}).
		Where("id = ? AND version = ? AND is_active = ?", token.ID, expectedVersion, true).
		Updates(map[string]any{
			"access_token":  access,
			"refresh_token": refresh,
			"token_type":    token.TokenType,
			"scope":         token.Scope,
			"issued_at":     token.IssuedAt,
			"expires_at":    token.ExpiresAt,
			"refresh_count": token.RefreshCount,
			"notes":         token.Notes,
			"version":       expectedVersion + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("store refreshed token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	token.Version = expectedVersion + 1
	return nil
}

func (r *GormRepository) TouchLastUsed(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.ProviderToken{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).Error
}

func (r *GormRepository) Deactivate(ctx context.Context, id uint, reason string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.ProviderToken{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(deactivation(at, reason))
	if res.Error != nil {
		return fmt.Errorf("deactivate token %d: %w", id, res.Error)
	}
	return nil
}

func (r *GormRepository) DeactivateAll(ctx context.Context, key Key, reason string, at time.Time) (int64, error) {
	res := scopeKey(r.db.WithContext(ctx).Model(&models.ProviderToken{}), key).
		Where("is_active = ?", true).
		Updates(deactivation(at, reason))
	if res.Error != nil {
		return 0, fmt.Errorf("deactivate tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ProviderToken{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}

// PurgeInactive hard-deletes records deactivated before the cutoff
func (r *GormRepository) PurgeInactive(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("is_active = ? AND deactivated_at IS NOT NULL AND deactivated_at < ?", false, before).
		Delete(&models.ProviderToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge inactive tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func deactivation(at time.Time, reason string) map[string]any {
	line := "\n" + at.UTC().Format(time.RFC3339) + " deactivated: " + reason
	return map[string]any{
		"is_active":      false,
		"deactivated_at": at,
		"notes":          gorm.Expr("COALESCE(notes, '') || ?", line),
	}
}
