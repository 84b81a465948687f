package controllers

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/signflow-api/internal/esign"
	"github.com/franciscosanchezn/signflow-api/internal/middleware"
	"github.com/franciscosanchezn/signflow-api/internal/models"
)

// Connect payloads with documents excluded stay well below this
const maxWebhookBytes = 5 << 20

// SigningService is used by the public signer-facing endpoints
type SigningService interface {
	OpenSigningLink(ctx context.Context, token string) (string, error)
	ApplyWebhookEvent(ctx context.Context, event *esign.ConnectEvent) error
}

// SigningController serves signers and DocuSign Connect
type SigningController struct {
	service       SigningService
	webhookSecret string
}

func NewSigningController(service SigningService, webhookSecret string) *SigningController {
	return &SigningController{service: service, webhookSecret: webhookSecret}
}

// OpenLink godoc
// @Summary Open a signing link
// @Description Verifies the long-lived link and redirects to a fresh DocuSign signing session
// @Tags signing
// @Produce html
// @Param token path string true "Signing link token"
// @Success 302
// @Failure 400 {string} string
// @Failure 409 {string} string
// @Router /sign/{token} [get]
func (sc *SigningController) OpenLink(c *gin.Context) {
	url, err := sc.service.OpenSigningLink(c.Request.Context(), c.Param("token"))
	if err != nil {
		status, code := middleware.ErrorStatus(err)
		log.WithError(err).WithFields(logrus.Fields{"status": status, "code": code}).Warn("Signing link could not be opened")
		renderPage(c, status, "Signing unavailable", linkFailureMessage(err))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, url)
}

func linkFailureMessage(err error) string {
	switch status, _ := middleware.ErrorStatus(err); status {
	case http.StatusBadRequest:
		return "This signing link is invalid or has expired. Please contact the sender for a new link."
	case http.StatusConflict:
		return "This document can no longer be signed. It may already be completed, declined or cancelled."
	case http.StatusNotFound:
		return "We could not find this document."
	default:
		return "Signing is temporarily unavailable. Please try again in a few minutes."
	}
}

var signingEvents = map[string]string{
	"signing_complete": "Thank you. Your document has been signed.",
	"viewing_complete": "You have finished reviewing the document.",
	"decline":          "You declined to sign the document.",
	"cancel":           "Signing was cancelled. You can use your link again at any time.",
	"ttl_expired":      "Your signing session expired. Please open your link again.",
	"session_timeout":  "Your signing session timed out. Please open your link again.",
}

// SigningComplete godoc
// @Summary Signing return page
// @Description Landing page DocuSign redirects to after a signing session
// @Tags signing
// @Produce html
// @Param event query string false "DocuSign session event"
// @Success 200 {string} string
// @Router /signing-complete [get]
func (sc *SigningController) SigningComplete(c *gin.Context) {
	msg, ok := signingEvents[c.Query("event")]
	if !ok {
		msg = "Your signing session has ended."
	}
	renderPage(c, http.StatusOK, "Signing session", msg)
}

// Webhook godoc
// @Summary DocuSign Connect webhook
// @Description Receives envelope status notifications signed with HMAC-SHA256
// @Tags signing
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} models.APIError
// @Router /webhooks/docusign [post]
func (sc *SigningController) Webhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, models.NewAPIError(models.ErrBadRequest, "Payload too large"))
		return
	}

	if sc.webhookSecret != "" {
		if err := esign.VerifyConnectSignature(sc.webhookSecret, c.Request.Header, body); err != nil {
			log.WithField("remote_addr", c.ClientIP()).Warn("Rejected Connect notification with invalid signature")
			c.JSON(http.StatusUnauthorized, models.NewAPIError(models.ErrUnauthorized, "Invalid signature"))
			return
		}
	}

	event, err := esign.ParseConnectEvent(body)
	if err != nil {
		middleware.AbortWithError(c, err, "")
		return
	}

	if err := sc.service.ApplyWebhookEvent(c.Request.Context(), event); err != nil {
		// non-2xx makes Connect retry
		middleware.AbortWithError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func renderPage(c *gin.Context, status int, title, message string) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family: Arial, sans-serif; max-width: 560px; margin: 80px auto; color: #222;">
<h1 style="font-size: 22px;">%s</h1>
<p>%s</p>
</body></html>
`, html.EscapeString(title), html.EscapeString(title), html.EscapeString(message))
	c.Data(status, "text/html; charset=utf-8", []byte(page))
}
