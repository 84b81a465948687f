// Package tokens owns the DocuSign OAuth credential lifecycle: the interactive
// grant, persistence, proactive and forced refresh, and revocation.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/franciscosanchezn/signflow-api/internal/metrics"
	"github.com/franciscosanchezn/signflow-api/internal/models"
	"github.com/franciscosanchezn/signflow-api/internal/provider"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// SetLogger replaces the package logger
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}

const (
	defaultRefreshMargin = 5 * time.Minute
	defaultTimeout       = 30 * time.Second
	// DocuSign access tokens live eight hours when expires_in is absent
	defaultTokenLifetime = 8 * time.Hour
)

// Credential is what an outbound API call needs
type Credential struct {
	AccessToken string
	AccountID   string
	BaseURI     string

	tokenID uint
}

// AuthStatus summarizes the active record without exposing secrets
type AuthStatus struct {
	Authenticated    bool       `json:"authenticated"`
	Environment      string     `json:"environment"`
	AccountID        string     `json:"accountId,omitempty"`
	UserID           string     `json:"userId,omitempty"`
	BaseURI          string     `json:"baseUri,omitempty"`
	IssuedAt         *time.Time `json:"issuedAt,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	Expired          bool       `json:"expired"`
	NeedsRefreshSoon bool       `json:"needsRefreshSoon"`
	LastUsedAt       *time.Time `json:"lastUsedAt,omitempty"`
	RefreshCount     int        `json:"refreshCount"`
}

// ManagerConfig carries the static settings of a Manager
type ManagerConfig struct {
	Environment string
	AccountID   string
	UserID      string
	// APIBaseURL overrides the base URI discovered at authorization
	APIBaseURL    string
	RefreshMargin time.Duration
	Timeout       time.Duration
}

// Manager hands out valid access tokens and keeps at most one refresh in
// flight per credential key within the process
type Manager struct {
	repo    Repository
	oauth   Exchanger
	metrics metrics.Recorder

	key        Key
	userID     string
	apiBaseURL string
	margin     time.Duration
	timeout    time.Duration

	flights singleflight.Group
	now     func() time.Time
}

func NewManager(repo Repository, oauth Exchanger, cfg ManagerConfig, recorder metrics.Recorder) *Manager {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	margin := cfg.RefreshMargin
	if margin <= 0 {
		margin = defaultRefreshMargin
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Manager{
		repo:    repo,
		oauth:   oauth,
		metrics: recorder,
		key: Key{
			Provider:    models.ProviderDocuSign,
			Environment: cfg.Environment,
			AccountID:   cfg.AccountID,
		},
		userID:     cfg.UserID,
		apiBaseURL: cfg.APIBaseURL,
		margin:     margin,
		timeout:    timeout,
		now:        time.Now,
	}
}

func (m *Manager) logger() *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"provider":    m.key.Provider,
		"environment": m.key.Environment,
		"account_id":  m.key.AccountID,
	})
}

func notAuthorized(msg string) error {
	return &provider.Error{Kind: provider.ErrNotAuthorized, Message: msg}
}

// AuthorizeURL builds the consent URL for an opaque state value
func (m *Manager) AuthorizeURL(state string) string {
	return m.oauth.AuthCodeURL(state)
}

// GetValidAccessToken returns a credential whose token is outside the refresh
// margin, refreshing first when needed
func (m *Manager) GetValidAccessToken(ctx context.Context) (*Credential, error) {
	token, err := m.repo.GetActive(ctx, m.key)
	if err != nil {
		if errors.Is(err, ErrNoActiveToken) {
			return nil, notAuthorized("no active DocuSign authorization")
		}
		return nil, err
	}

	if token.NeedsRefresh(m.now(), m.margin) {
		m.logger().WithFields(logrus.Fields{
			"token_id":   token.ID,
			"expires_at": token.ExpiresAt,
		}).Info("Access token inside refresh margin, refreshing")

		token, err = m.refreshShared(ctx, "")
		if err != nil {
			return nil, err
		}
	}

	if err := m.repo.TouchLastUsed(ctx, token.ID, m.now()); err != nil {
		m.logger().WithError(err).Warn("Failed to record token use")
	}
	return m.credential(token), nil
}

// ForceRefresh refreshes even inside the margin, typically after the provider
// rejected staleAccessToken. When another caller already rotated away from
// staleAccessToken the current token is returned without a second exchange.
func (m *Manager) ForceRefresh(ctx context.Context, staleAccessToken string) (*Credential, error) {
	token, err := m.refreshShared(ctx, staleAccessToken)
	if err != nil {
		return nil, err
	}
	return m.credential(token), nil
}

// RefreshNow rotates the active token even when it is still fresh and
// returns the resulting status
func (m *Manager) RefreshNow(ctx context.Context) (*AuthStatus, error) {
	current, err := m.repo.GetActive(ctx, m.key)
	if err != nil {
		if errors.Is(err, ErrNoActiveToken) {
			return nil, notAuthorized("no active DocuSign authorization")
		}
		return nil, err
	}
	token, err := m.refreshShared(ctx, current.AccessToken)
	if err != nil {
		return nil, err
	}
	return m.status(token), nil
}

// refreshShared collapses concurrent refreshes of the same key into one exchange
func (m *Manager) refreshShared(ctx context.Context, staleAccessToken string) (*models.ProviderToken, error) {
	v, err, shared := m.flights.Do(m.key.String(), func() (any, error) {
		// detached so a departing caller cannot abandon a rotation half way
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()

		current, err := m.repo.GetActive(fctx, m.key)
		if err != nil {
			if errors.Is(err, ErrNoActiveToken) {
				return nil, notAuthorized("no active DocuSign authorization")
			}
			return nil, err
		}

		if staleAccessToken == "" && !current.NeedsRefresh(m.now(), m.margin) {
			return current, nil
		}
		if staleAccessToken != "" && current.AccessToken != staleAccessToken {
			return current, nil
		}
		return m.refresh(fctx, current)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		m.logger().Debug("Joined in-flight token refresh")
	}
	return v.(*models.ProviderToken), nil
}

// refresh redeems the record's refresh token and persists the rotation
func (m *Manager) refresh(ctx context.Context, current *models.ProviderToken) (*models.ProviderToken, error) {
	logger := m.logger().WithFields(logrus.Fields{
		"token_id":      current.ID,
		"refresh_count": current.RefreshCount,
	})

	if current.RefreshToken == "" {
		m.deactivate(ctx, current.ID, "no refresh token on record")
		m.metrics.RecordTokenRefresh("rejected")
		return nil, &provider.Error{Kind: provider.ErrRefreshFailed, Message: "no refresh token on record; re-authorization required"}
	}

	grant, err := m.oauth.Refresh(ctx, current.RefreshToken)
	if err != nil {
		// another process may have rotated the pair while we were waiting
		if latest, lerr := m.repo.GetActive(ctx, m.key); lerr == nil && latest.Version != current.Version {
			logger.WithField("version", latest.Version).Info("Adopting token rotated by another writer")
			m.metrics.RecordTokenRefresh("adopted")
			return latest, nil
		}

		if errors.Is(err, provider.ErrTransport) || errors.Is(err, provider.ErrRateLimited) {
			logger.WithError(err).Warn("Token refresh did not complete, record kept active")
			m.metrics.RecordTokenRefresh("transport")
			return nil, provider.Wrap(provider.ErrRefreshFailed, err)
		}

		logger.WithError(err).Error("Refresh token rejected, deactivating record")
		m.deactivate(ctx, current.ID, "refresh rejected: "+err.Error())
		m.metrics.RecordTokenRefresh("rejected")
		return nil, provider.Wrap(provider.ErrRefreshFailed, err)
	}

	now := m.now()
	updated := *current
	updated.AccessToken = grant.AccessToken
	updated.RefreshToken = grant.RefreshToken
	updated.TokenType = grant.TokenType
	if grant.Scope != "" {
		updated.Scope = grant.Scope
	}
	updated.IssuedAt = now
	updated.ExpiresAt = m.expiry(grant, now)
	updated.RefreshCount = current.RefreshCount + 1
	updated.AppendNote(now, fmt.Sprintf("refreshed (#%d)", updated.RefreshCount))

	if err := m.repo.UpsertAfterRefresh(ctx, &updated, current.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			latest, lerr := m.repo.GetActive(ctx, m.key)
			if lerr != nil {
				return nil, provider.Wrap(provider.ErrRefreshFailed, lerr)
			}
			logger.Warn("Token record changed during refresh, using stored rotation")
			m.metrics.RecordTokenRefresh("adopted")
			return latest, nil
		}
		m.metrics.RecordTokenRefresh("error")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"refresh_count": updated.RefreshCount,
		"expires_at":    updated.ExpiresAt,
	}).Info("Access token refreshed")
	m.metrics.RecordTokenRefresh("success")
	return &updated, nil
}

// Authorize completes the interactive grant: it exchanges code, resolves the
// account via userinfo and replaces any active record for the environment
func (m *Manager) Authorize(ctx context.Context, code string) (*AuthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	grant, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		m.metrics.RecordAuthorization(false)
		if errors.Is(err, provider.ErrAuthentication) {
			return nil, provider.Wrap(provider.ErrNotAuthorized, err)
		}
		return nil, err
	}

	info, err := m.oauth.UserInfo(ctx, grant.AccessToken)
	if err != nil {
		m.metrics.RecordAuthorization(false)
		return nil, err
	}

	account := info.SelectAccount(m.key.AccountID)
	if account == nil {
		m.metrics.RecordAuthorization(false)
		return nil, &provider.Error{
			Kind:    provider.ErrAccountMismatch,
			Message: fmt.Sprintf("user %s has no access to account %q", info.Email, m.key.AccountID),
		}
	}
	if m.userID != "" && info.Sub != "" && info.Sub != m.userID {
		m.metrics.RecordAuthorization(false)
		return nil, &provider.Error{
			Kind:    provider.ErrAccountMismatch,
			Message: fmt.Sprintf("authorized user %s is not the configured integration user", info.Sub),
		}
	}

	now := m.now()
	record := &models.ProviderToken{
		Provider:     m.key.Provider,
		Environment:  m.key.Environment,
		AccountID:    account.AccountID,
		UserID:       info.Sub,
		BaseURI:      account.BaseURI,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		TokenType:    grant.TokenType,
		Scope:        grant.Scope,
		IssuedAt:     now,
		ExpiresAt:    m.expiry(grant, now),
		IsActive:     true,
		Version:      1,
	}
	record.AppendNote(now, "authorized by "+info.Email)

	if err := m.repo.ReplaceActive(ctx, record); err != nil {
		m.metrics.RecordAuthorization(false)
		return nil, err
	}

	m.logger().WithFields(logrus.Fields{
		"token_id":   record.ID,
		"account_id": record.AccountID,
		"user_id":    record.UserID,
		"expires_at": record.ExpiresAt,
	}).Info("DocuSign authorization stored")
	m.metrics.RecordAuthorization(true)
	m.refreshGauge(ctx)
	return m.status(record), nil
}

// GetAuthStatus reports the active record without refreshing it
func (m *Manager) GetAuthStatus(ctx context.Context) (*AuthStatus, error) {
	token, err := m.repo.GetActive(ctx, m.key)
	if err != nil {
		if errors.Is(err, ErrNoActiveToken) {
			return &AuthStatus{Environment: m.key.Environment, AccountID: m.key.AccountID}, nil
		}
		return nil, err
	}
	return m.status(token), nil
}

// RevokeAll deactivates every active record for the configured key
func (m *Manager) RevokeAll(ctx context.Context, reason string) (int64, error) {
	n, err := m.repo.DeactivateAll(ctx, m.key, reason, m.now())
	if err != nil {
		return 0, err
	}
	m.logger().WithFields(logrus.Fields{
		"revoked": n,
		"reason":  reason,
	}).Warn("DocuSign tokens revoked")
	m.metrics.RecordTokenRevoked("operator", int(n))
	m.refreshGauge(ctx)
	return n, nil
}

// Invalidate deactivates the record behind cred after the provider rejected
// a freshly refreshed token
func (m *Manager) Invalidate(ctx context.Context, cred *Credential, reason string) {
	if cred == nil || cred.tokenID == 0 {
		return
	}
	m.deactivate(ctx, cred.tokenID, reason)
}

// Sweep removes records deactivated longer than retention ago
func (m *Manager) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := m.repo.PurgeInactive(ctx, m.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger().WithField("purged", n).Info("Purged inactive token records")
	}
	return n, nil
}

// RefreshIfDue refreshes proactively; used by the background worker
func (m *Manager) RefreshIfDue(ctx context.Context) error {
	_, err := m.GetValidAccessToken(ctx)
	return err
}

func (m *Manager) deactivate(ctx context.Context, id uint, reason string) {
	if err := m.repo.Deactivate(context.WithoutCancel(ctx), id, reason, m.now()); err != nil {
		m.logger().WithError(err).WithField("token_id", id).Error("Failed to deactivate token")
		return
	}
	m.metrics.RecordTokenRevoked("rejected", 1)
	m.refreshGauge(ctx)
}

func (m *Manager) refreshGauge(ctx context.Context) {
	if n, err := m.repo.CountActive(context.WithoutCancel(ctx)); err == nil {
		m.metrics.SetActiveTokens(int(n))
	}
}

func (m *Manager) expiry(grant *Grant, now time.Time) time.Time {
	if grant.ExpiresAt.IsZero() {
		return now.Add(defaultTokenLifetime)
	}
	return grant.ExpiresAt
}

func (m *Manager) credential(token *models.ProviderToken) *Credential {
	base := token.BaseURI
	if m.apiBaseURL != "" {
		base = m.apiBaseURL
	}
	return &Credential{
		AccessToken: token.AccessToken,
		AccountID:   token.AccountID,
		BaseURI:     base,
		tokenID:     token.ID,
	}
}

func (m *Manager) status(token *models.ProviderToken) *AuthStatus {
	now := m.now()
	issued, expires := token.IssuedAt, token.ExpiresAt
	return &AuthStatus{
		Authenticated:    true,
		Environment:      token.Environment,
		AccountID:        token.AccountID,
		UserID:           token.UserID,
		BaseURI:          token.BaseURI,
		IssuedAt:         &issued,
		ExpiresAt:        &expires,
		Expired:          token.IsExpired(now),
		NeedsRefreshSoon: token.NeedsRefresh(now, m.margin),
		LastUsedAt:       token.LastUsedAt,
		RefreshCount:     token.RefreshCount,
	}
}
