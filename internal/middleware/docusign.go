package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/signflow-api/internal/tokens"
)

// ContextDocuSignAccount holds the account id of the credential checked by RequireDocuSign
const ContextDocuSignAccount = "docusignAccountID"

// TokenSource yields a valid DocuSign credential, refreshing when needed
type TokenSource interface {
	GetValidAccessToken(ctx context.Context) (*tokens.Credential, error)
}

// RequireDocuSign makes sure a usable DocuSign authorization exists before the
// handler runs, refreshing a token that is about to expire. Without one the
// request ends with 401 and the consent URL.
func RequireDocuSign(source TokenSource, authURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, err := source.GetValidAccessToken(c.Request.Context())
		if err != nil {
			AbortWithError(c, err, authURL)
			return
		}
		c.Set(ContextDocuSignAccount, cred.AccountID)
		c.Next()
	}
}
