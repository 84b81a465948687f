package tokens

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/signflow-api/internal/provider"
)

// Operation is one authenticated provider call
type Operation func(ctx context.Context, cred *Credential) error

// Runner executes operations with a valid token and recovers once from a
// rejected bearer by forcing a refresh
type Runner struct {
	manager *Manager
}

func NewRunner(manager *Manager) *Runner {
	return &Runner{manager: manager}
}

// Run calls op with a valid credential. If the provider rejects the token,
// Run forces a refresh and retries exactly once; a second rejection
// deactivates the record and surfaces ErrNotAuthorized.
func (r *Runner) Run(ctx context.Context, operation string, op Operation) error {
	cred, err := r.manager.GetValidAccessToken(ctx)
	if err != nil {
		return err
	}

	err = op(ctx, cred)
	if !provider.IsAuthError(err) {
		return err
	}

	logger := log.WithFields(logrus.Fields{
		"operation":  operation,
		"account_id": cred.AccountID,
	})
	logger.WithError(err).Warn("Access token rejected, forcing refresh")

	fresh, rerr := r.manager.ForceRefresh(ctx, cred.AccessToken)
	if rerr != nil {
		return rerr
	}

	err = op(ctx, fresh)
	if provider.IsAuthError(err) {
		logger.WithError(err).Error("Refreshed token rejected, deactivating record")
		r.manager.Invalidate(ctx, fresh, "access token rejected after refresh")
		return provider.Wrap(provider.ErrNotAuthorized, err)
	}
	return err
}
