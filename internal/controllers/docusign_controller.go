package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/signflow-api/internal/middleware"
	"github.com/franciscosanchezn/signflow-api/internal/models"
	"github.com/franciscosanchezn/signflow-api/internal/services"
	"github.com/franciscosanchezn/signflow-api/internal/tokens"
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

// stateTTL bounds the time an operator has to finish DocuSign consent
const stateTTL = 10 * time.Minute

// TokenManager is the part of tokens.Manager used over HTTP
type TokenManager interface {
	AuthorizeURL(state string) string
	Authorize(ctx context.Context, code string) (*tokens.AuthStatus, error)
	GetAuthStatus(ctx context.Context) (*tokens.AuthStatus, error)
	RefreshNow(ctx context.Context) (*tokens.AuthStatus, error)
	RevokeAll(ctx context.Context, reason string) (int64, error)
}

// DocuSignController handles the DocuSign consent flow and token administration
type DocuSignController struct {
	manager TokenManager
	states  services.StateStore
	authURL string
}

// NewDocuSignController creates the controller. authURL is the public address
// of the Authorize endpoint, returned with every 401.
func NewDocuSignController(manager TokenManager, states services.StateStore, authURL string) *DocuSignController {
	return &DocuSignController{manager: manager, states: states, authURL: authURL}
}

// AuthURL is the public consent entry point
func (dc *DocuSignController) AuthURL() string {
	return dc.authURL
}

// Authorize godoc
// @Summary Start DocuSign consent
// @Description Redirects to the DocuSign consent page. With format=json the URL is returned instead.
// @Tags docusign
// @Produce json
// @Param format query string false "json to receive the URL instead of a redirect"
// @Param redirect query string false "Local path to return to after consent"
// @Success 200 {object} map[string]string
// @Success 302
// @Router /api/docusign/auth [get]
func (dc *DocuSignController) Authorize(c *gin.Context) {
	state := uuid.NewString()
	pending := services.PendingAuthorization{
		RedirectTo: safeRedirect(c.Query("redirect")),
		CreatedAt:  time.Now().UTC(),
	}
	if err := dc.states.Save(c.Request.Context(), state, pending, stateTTL); err != nil {
		log.WithError(err).Error("Failed to store OAuth state")
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "Could not start authorization"))
		return
	}

	consentURL := dc.manager.AuthorizeURL(state)
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, gin.H{"authUrl": consentURL})
		return
	}
	c.Redirect(http.StatusFound, consentURL)
}

// Callback godoc
// @Summary DocuSign OAuth callback
// @Description Exchanges the authorization code and stores the token record
// @Tags docusign
// @Produce json
// @Param code query string true "Authorization code"
// @Param state query string true "State issued by /auth"
// @Success 200 {object} tokens.AuthStatus
// @Failure 400 {object} models.OAuth2Error
// @Failure 401 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Router /api/docusign/callback [get]
func (dc *DocuSignController) Callback(c *gin.Context) {
	if oauthErr := c.Query("error"); oauthErr != "" {
		log.WithFields(logrus.Fields{
			"error":       oauthErr,
			"description": c.Query("error_description"),
		}).Warn("DocuSign consent was not granted")
		c.JSON(http.StatusBadRequest, models.NewOAuth2Error(oauthErr, c.Query("error_description")))
		return
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, models.NewOAuth2Error(models.ErrInvalidRequest, "code and state are required"))
		return
	}

	pending, err := dc.states.Consume(c.Request.Context(), state)
	if err != nil {
		if !errors.Is(err, services.ErrUnknownState) {
			log.WithError(err).Error("Failed to load OAuth state")
		}
		c.JSON(http.StatusBadRequest, models.NewOAuth2Error(models.ErrInvalidRequest, "unknown or expired state"))
		return
	}

	status, err := dc.manager.Authorize(c.Request.Context(), code)
	if err != nil {
		middleware.AbortWithError(c, err, dc.authURL)
		return
	}

	if pending.RedirectTo != "" {
		c.Redirect(http.StatusFound, pending.RedirectTo)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "DocuSign authorization stored", "status": status})
}

// AuthStatus godoc
// @Summary DocuSign authorization status
// @Tags docusign
// @Produce json
// @Success 200 {object} tokens.AuthStatus
// @Security BearerAuth
// @Router /api/docusign/auth-status [get]
func (dc *DocuSignController) AuthStatus(c *gin.Context) {
	status, err := dc.manager.GetAuthStatus(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err, dc.authURL)
		return
	}
	if !status.Authenticated {
		c.JSON(http.StatusOK, gin.H{"status": status, "authUrl": dc.authURL})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// RefreshToken godoc
// @Summary Force a DocuSign token refresh
// @Tags docusign
// @Produce json
// @Success 200 {object} tokens.AuthStatus
// @Failure 401 {object} models.APIError
// @Failure 502 {object} models.APIError
// @Security BearerAuth
// @Router /api/docusign/refresh-token [post]
func (dc *DocuSignController) RefreshToken(c *gin.Context) {
	status, err := dc.manager.RefreshNow(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err, dc.authURL)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// RevokeTokens godoc
// @Summary Deactivate every stored DocuSign token
// @Tags docusign
// @Accept json
// @Produce json
// @Param body body revokeRequest false "Reason"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/docusign/revoke-tokens [post]
func (dc *DocuSignController) RevokeTokens(c *gin.Context) {
	var req revokeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, "Invalid request body"))
			return
		}
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "revoked by operator"
	}
	if operator := middleware.OperatorID(c); operator != "" {
		reason += " (" + operator + ")"
	}

	n, err := dc.manager.RevokeAll(c.Request.Context(), reason)
	if err != nil {
		middleware.AbortWithError(c, err, dc.authURL)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": n, "authUrl": dc.authURL})
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

// safeRedirect only keeps local absolute paths
func safeRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return ""
	}
	return target
}
