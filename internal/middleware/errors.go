package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/signflow-api/internal/esign"
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

// ErrorStatus maps a classified failure to its HTTP status and API error code
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, provider.ErrRefreshFailed) && errors.Is(err, provider.ErrTransport):
		return http.StatusBadGateway, models.ErrRefreshFailed
	case errors.Is(err, provider.ErrRefreshFailed) && errors.Is(err, provider.ErrRateLimited):
		return http.StatusTooManyRequests, models.ErrRateLimited
	case errors.Is(err, provider.ErrRefreshFailed):
		return http.StatusUnauthorized, models.ErrRefreshFailed
	case errors.Is(err, provider.ErrNotAuthorized), errors.Is(err, provider.ErrAuthentication):
		return http.StatusUnauthorized, models.ErrNotAuthorized
	case errors.Is(err, provider.ErrAccountMismatch):
		return http.StatusForbidden, models.ErrAccountMismatch
	case errors.Is(err, provider.ErrRateLimited):
		return http.StatusTooManyRequests, models.ErrRateLimited
	case errors.Is(err, provider.ErrInvalidEnvelopeState):
		return http.StatusConflict, models.ErrEnvelopeInvalidState
	case errors.Is(err, esign.ErrEnvelopeNotFound), errors.Is(err, provider.ErrNotFound):
		return http.StatusNotFound, models.ErrEnvelopeNotFound
	case errors.Is(err, esign.ErrInvalidSigningLink):
		return http.StatusBadRequest, models.ErrSigningLinkInvalid
	case errors.Is(err, provider.ErrValidation):
		return http.StatusBadRequest, models.ErrValidationFailed
	case errors.Is(err, provider.ErrTransport):
		return http.StatusBadGateway, models.ErrProviderFailure
	default:
		return http.StatusInternalServerError, models.ErrInternalServer
	}
}

// AbortWithError renders err as an APIError. Authorization failures carry
// authURL so the caller can send an operator through consent again.
func AbortWithError(c *gin.Context, err error, authURL string) {
	status, code := ErrorStatus(err)

	apiErr := models.NewAPIError(code, publicMessage(err, status))
	if status == http.StatusUnauthorized {
		apiErr.AuthURL = authURL
	}

	var pe *provider.Error
	if errors.As(err, &pe) && pe.Code != "" && status != http.StatusInternalServerError {
		apiErr.Details = map[string]interface{}{"providerCode": pe.Code}
	}

	if status == http.StatusTooManyRequests {
		if wait := provider.RetryAfterOf(err); wait > 0 {
			secs := int(math.Ceil(wait.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			if apiErr.Details == nil {
				apiErr.Details = map[string]interface{}{}
			}
			apiErr.Details["retryAfterSeconds"] = secs
		}
	}

	entry := log.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"status": status,
		"code":   code,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(status, apiErr)
}

func publicMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "Internal server error"
	}
	var pe *provider.Error
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}
