package controllers

import (
	"context"
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/signflow-api/internal/esign"
	"github.com/franciscosanchezn/signflow-api/internal/middleware"
	"github.com/franciscosanchezn/signflow-api/internal/models"
)

// maxUploadBytes covers a 25MB document plus base64 and form overhead
const maxUploadBytes = 36 << 20

// EnvelopeService is the envelope workflow as seen by the HTTP layer
type EnvelopeService interface {
	SendForSignature(ctx context.Context, req *esign.SendRequest) (*esign.SendResult, error)
	GetEnvelopeStatus(ctx context.Context, envelopeID string) (*esign.StatusResult, error)
	IsDocumentSigned(ctx context.Context, envelopeID string) (bool, error)
	RegenerateSigningLink(ctx context.Context, envelopeID, signerEmail, signerName, returnURL string) (string, error)
	SigningLinkURL(envelopeID, email string) (string, time.Time, error)
	DownloadSignedDocument(ctx context.Context, envelopeID string) ([]byte, error)
	VoidEnvelope(ctx context.Context, envelopeID, reason string) (*esign.StatusResult, error)
	ListEnvelopes(ctx context.Context, status string, limit int) ([]models.Envelope, error)
}

// EnvelopeController handles HTTP requests related to envelopes
type EnvelopeController interface {
	// SendEnvelope sends a document for signature
	SendEnvelope(c *gin.Context)
	// ListEnvelopes lists locally known envelopes
	ListEnvelopes(c *gin.Context)
	// GetStatus returns the provider status of an envelope
	GetStatus(c *gin.Context)
	// IsSigned reports whether an envelope is completed
	IsSigned(c *gin.Context)
	// SigningLink issues a signing session or a long-lived signing link
	SigningLink(c *gin.Context)
	// DownloadDocument streams the combined signed PDF
	DownloadDocument(c *gin.Context)
	// VoidEnvelope cancels an envelope
	VoidEnvelope(c *gin.Context)
}

type envelopeController struct {
	service EnvelopeService
	authURL string
}

// NewEnvelopeController creates a new instance of EnvelopeController
func NewEnvelopeController(service EnvelopeService, authURL string) EnvelopeController {
	return &envelopeController{service: service, authURL: authURL}
}

// sendEnvelopeRequest is the JSON form of a send request
type sendEnvelopeRequest struct {
	DocumentBase64     string `json:"documentBase64" binding:"required"`
	FileName           string `json:"fileName" binding:"required"`
	SignerEmail        string `json:"signerEmail" binding:"required"`
	SignerName         string `json:"signerName" binding:"required"`
	Subject            string `json:"subject"`
	Message            string `json:"message"`
	UseEmbeddedSigning bool   `json:"useEmbeddedSigning"`
	ReturnURL          string `json:"returnUrl"`
}

// SendEnvelope godoc
// @Summary Send a document for signature
// @Description Accepts multipart/form-data (field "document") or JSON with a base64 document
// @Tags envelopes
// @Accept json,mpfd
// @Produce json
// @Param body body sendEnvelopeRequest false "JSON request"
// @Param document formData file false "PDF document"
// @Param signerEmail formData string false "Signer email"
// @Param signerName formData string false "Signer name"
// @Success 201 {object} esign.SendResult
// @Failure 400 {object} models.APIError
// @Failure 401 {object} models.APIError
// @Failure 502 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/envelopes [post]
func (ec *envelopeController) SendEnvelope(ctx *gin.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxUploadBytes)

	var req *esign.SendRequest
	var err error
	if strings.HasPrefix(ctx.ContentType(), "multipart/") {
		req, err = sendRequestFromForm(ctx)
	} else {
		req, err = sendRequestFromJSON(ctx)
	}
	if err != nil {
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, err.Error()))
		return
	}

	result, err := ec.service.SendForSignature(ctx.Request.Context(), req)
	if err != nil {
		middleware.AbortWithError(ctx, err, ec.authURL)
		return
	}
	ctx.JSON(http.StatusCreated, result)
}

func sendRequestFromJSON(ctx *gin.Context) (*esign.SendRequest, error) {
	var body sendEnvelopeRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, err
	}
	doc, err := base64.StdEncoding.DecodeString(body.DocumentBase64)
	if err != nil {
		return nil, errBadDocument
	}
	return &esign.SendRequest{
		Document:           doc,
		FileName:           body.FileName,
		SignerEmail:        body.SignerEmail,
		SignerName:         body.SignerName,
		Subject:            body.Subject,
		Message:            body.Message,
		UseEmbeddedSigning: body.UseEmbeddedSigning,
		ReturnURL:          body.ReturnURL,
	}, nil
}

func sendRequestFromForm(ctx *gin.Context) (*esign.SendRequest, error) {
	header, err := ctx.FormFile("document")
	if err != nil {
		return nil, errMissingDocument
	}
	doc, err := readUpload(header)
	if err != nil {
		return nil, err
	}
	embedded, _ := strconv.ParseBool(ctx.PostForm("useEmbeddedSigning"))

	fileName := ctx.PostForm("fileName")
	if fileName == "" {
		fileName = header.Filename
	}
	return &esign.SendRequest{
		Document:           doc,
		FileName:           fileName,
		SignerEmail:        ctx.PostForm("signerEmail"),
		SignerName:         ctx.PostForm("signerName"),
		Subject:            ctx.PostForm("subject"),
		Message:            ctx.PostForm("message"),
		UseEmbeddedSigning: embedded,
		ReturnURL:          ctx.PostForm("returnUrl"),
	}, nil
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, errBadDocument
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ListEnvelopes godoc
// @Summary List envelopes
// @Tags envelopes
// @Produce json
// @Param status query string false "Filter by status"
// @Param limit query int false "Maximum results (default 50, at most 200)"
// @Success 200 {array} models.Envelope
// @Security BearerAuth
// @Router /api/v1/envelopes [get]
func (ec *envelopeController) ListEnvelopes(ctx *gin.Context) {
	limit := esign.DefaultListLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(n, esign.MaxListLimit)
	}

	envelopes, err := ec.service.ListEnvelopes(ctx.Request.Context(), ctx.Query("status"), limit)
	if err != nil {
		middleware.AbortWithError(ctx, err, ec.authURL)
		return
	}
	ctx.JSON(http.StatusOK, envelopes)
}

// GetStatus godoc
// @Summary Get envelope status
// @Tags envelopes
// @Produce json
// @Param id path string true "Envelope ID"
// @Success 200 {object} esign.StatusResult
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/envelopes/{id}/status [get]
func (ec *envelopeController) GetStatus(ctx *gin.Context) {
	status, err := ec.service.GetEnvelopeStatus(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		middleware.AbortWithError(ctx, err, ec.authURL)
		return
	}
	ctx.JSON(http.StatusOK, status)
}

// IsSigned godoc
// @Summary Check whether an envelope is completed
// @Tags envelopes
// @Produce json
// @Param id path string true "Envelope ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /api/v1/envelopes/{id}/signed [get]
func (ec *envelopeController) IsSigned(ctx *gin.Context) {
	id := ctx.Param("id")
	signed, err := ec.service.IsDocumentSigned(ctx.Request.Context(), id)
	if err != nil {
		middleware.AbortWithError(ctx, err, ec.authURL)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"envelopeId": id, "signed": signed})
}

type signingLinkRequest struct {
	SignerEmail string `json:"signerEmail" binding:"required"`
	SignerName  string `json:"signerName"`
	ReturnURL   string `json:"returnUrl"`
	// Persistent returns a long-lived link instead of a short-lived session
	Persistent bool `json:"persistent"`
}

// SigningLink godoc
// @Summary Issue a signing link
// @Description Mints a fresh signing session, or a long-lived link when persistent is set
// @Tags envelopes
// @Accept json
// @Produce json
// @Param id path string true "Envelope ID"
// @Param body body signingLinkRequest true "Signer"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/envelopes/{id}/signing-link [post]
func (ec *envelopeController) SigningLink(ctx *gin.Context) {
	var req signingLinkRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, "Invalid request body"))
		return
	}
	id := ctx.Param("id")

	if req.Persistent {
		link, expires, err := ec.service.SigningLinkURL(id, esign.NormalizeEmail(req.SignerEmail))
		if err != nil {
			middleware.AbortWithError(ctx, err, ec.authURL)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"envelopeId": id, "signingLink": link, "expiresAt": expires})
		return
	}

	url, err := ec.service.RegenerateSigningLink(ctx.Request.Context(), id, req.SignerEmail, req.SignerName, req.ReturnURL)
	if err != nil {
		middleware.AbortWithError(ctx, err, ec.authURL)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"envelopeId": id, "signingUrl": url})
}

// DownloadDocument godoc
// @Summary Download the signed document
// @Tags envelopes
// @Produce application/pdf
// @Param id path string true "Envelope ID"
// @Success 200 {file} binary
// @Failure 409 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/envelopes/{id}/document [get]
func (ec *envelopeController) DownloadDocument(ctx *gin.Context) {
	id := ctx.Param("id")
	pdf, err := ec.service.DownloadSignedDocument(ctx.Request.Context(), id)
	if err != nil {
		middleware.AbortWithError(ctx, err, ec.authURL)
		return
	}
	ctx.Header("Content-Disposition", `attachment; filename="`+id+`-signed.pdf"`)
	ctx.Data(http.StatusOK, "application/pdf", pdf)
}

type voidRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// VoidEnvelope godoc
// @Summary Void an envelope
// @Tags envelopes
// @Accept json
// @Produce json
// @Param id path string true "Envelope ID"
// @Param body body voidRequest true "Reason"
// @Success 200 {object} esign.StatusResult
// @Failure 409 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/envelopes/{id}/void [post]
func (ec *envelopeController) VoidEnvelope(ctx *gin.Context) {
	var req voidRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrBadRequest, "A void reason is required"))
		return
	}

	status, err := ec.service.VoidEnvelope(ctx.Request.Context(), ctx.Param("id"), req.Reason)
	if err != nil {
		middleware.AbortWithError(ctx, err, ec.authURL)
		return
	}
	ctx.JSON(http.StatusOK, status)
}
