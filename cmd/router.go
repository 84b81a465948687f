package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/franciscosanchezn/signflow-api/docs" // Import generated docs
	"github.com/franciscosanchezn/signflow-api/internal/controllers"
	"github.com/franciscosanchezn/signflow-api/internal/metrics"
	"github.com/franciscosanchezn/signflow-api/internal/middleware"
)

// setupRouter initializes the Gin router and sets up the routes
func setupRouter(app *application) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), metrics.HTTPMetricsMiddleware(app.recorder))
	router.MaxMultipartMemory = 32 << 20

	setupRoutes(router, app)
	return router
}

// setupRoutes defines the routes for the Gin router
func setupRoutes(router *gin.Engine, app *application) {
	authURL := app.authURL()
	jwtSecret := []byte(app.cfg.JWTSecret)

	docusignController := controllers.NewDocuSignController(app.manager, app.states, authURL)
	envelopeController := controllers.NewEnvelopeController(app.envelope, authURL)
	signingController := controllers.NewSigningController(app.envelope, app.cfg.DocuSign.WebhookSecret)

	// Health check endpoint
	router.GET("/health", healthCheckHandler)
	if app.cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	// Signer facing and provider callbacks
	router.GET("/sign/:token", signingController.OpenLink)
	router.GET("/signing-complete", signingController.SigningComplete)
	router.POST("/webhooks/docusign", signingController.Webhook)

	// DocuSign consent is started from a browser; state protects the callback
	docusign := router.Group("/api/docusign")
	{
		docusign.GET("/auth", docusignController.Authorize)
		docusign.GET("/callback", docusignController.Callback)

		operator := docusign.Group("", middleware.OperatorAuth(jwtSecret))
		operator.GET("/auth-status", docusignController.AuthStatus)

		admin := operator.Group("", middleware.RequireRole(middleware.RoleAdmin))
		admin.POST("/refresh-token", docusignController.RefreshToken)
		admin.POST("/revoke-tokens", docusignController.RevokeTokens)
	}

	// Envelope API requires an operator token and a usable DocuSign authorization
	envelopes := router.Group("/api/v1/envelopes", middleware.OperatorAuth(jwtSecret))
	{
		envelopes.GET("", envelopeController.ListEnvelopes)

		live := envelopes.Group("", middleware.RequireDocuSign(app.manager, authURL))
		live.POST("", envelopeController.SendEnvelope)
		live.GET("/:id/status", envelopeController.GetStatus)
		live.GET("/:id/signed", envelopeController.IsSigned)
		live.POST("/:id/signing-link", envelopeController.SigningLink)
		live.GET("/:id/document", envelopeController.DownloadDocument)
		live.POST("/:id/void", envelopeController.VoidEnvelope)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "signflow-api",
	})
}
