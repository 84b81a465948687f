package models

import (
	"time"
)

// ProviderDocuSign identifies DocuSign token records
const ProviderDocuSign = "docusign"

// ProviderToken is one OAuth credential set for a (provider, environment, account) triple.
// AccessToken and RefreshToken hold sealed values; see tokens.Sealer.
type ProviderToken struct {
	ID          uint   `gorm:"primaryKey"`
	Provider    string `gorm:"index:idx_provider_token_key;not null"`
	Environment string `gorm:"index:idx_provider_token_key;not null"`
	AccountID   string `gorm:"index:idx_provider_token_key;not null"`

	// impersonated DocuSign user (sub claim)
	UserID string

	// eSignature API host for the account
	BaseURI string

	AccessToken  string    `gorm:"type:text;not null"`
	RefreshToken string    `gorm:"type:text"`
	TokenType    string    `gorm:"default:'Bearer'"`
	Scope        string    `gorm:"type:text"`
	IssuedAt     time.Time `gorm:"not null"`
	ExpiresAt    time.Time `gorm:"not null"`
	LastUsedAt   *time.Time

	RefreshCount  int    `gorm:"not null;default:0"`
	IsActive      bool   `gorm:"index;not null;default:true"`
	Version       int    `gorm:"not null;default:1"`
	Notes         string `gorm:"type:text"`
	DeactivatedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ProviderToken) TableName() string {
	return "provider_tokens"
}

// IsExpired reports whether the access token is past its expiry at now
func (t *ProviderToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// NeedsRefresh reports whether now falls inside the safety margin before expiry
func (t *ProviderToken) NeedsRefresh(now time.Time, margin time.Duration) bool {
	return !now.Before(t.ExpiresAt.Add(-margin))
}

// AppendNote adds a timestamped line to the audit notes
func (t *ProviderToken) AppendNote(now time.Time, note string) {
	line := now.UTC().Format(time.RFC3339) + " " + note
	if t.Notes == "" {
		t.Notes = line
		return
	}
	t.Notes += "\n" + line
}
