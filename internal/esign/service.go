package esign

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/signflow-api/internal/metrics"
	"github.com/franciscosanchezn/signflow-api/internal/models"
	"github.com/franciscosanchezn/signflow-api/internal/provider"
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

// maxDocumentBytes is DocuSign's per-document upload limit
const maxDocumentBytes = 25 << 20

// Runner executes an operation with a valid DocuSign credential
type Runner interface {
	Run(ctx context.Context, operation string, op tokens.Operation) error
}

// Invitation is the branded email sent instead of DocuSign's own notification
type Invitation struct {
	EnvelopeID string
	To         string
	Name       string
	Subject    string
	Message    string
	FileName   string
	SigningURL string
	ExpiresAt  time.Time
}

// Mailer delivers signing invitations
type Mailer interface {
	SendSigningInvitation(ctx context.Context, inv *Invitation) error
}

// NotificationPolicy is the reminder and expiration schedule attached to envelopes
type NotificationPolicy struct {
	ReminderDelayDays     int
	ReminderFrequencyDays int
	ExpireAfterDays       int
	ExpireWarnDays        int
}

// Config holds the static settings of a Service
type Config struct {
	// PublicBaseURL prefixes outer signing links: {PublicBaseURL}/sign/{token}
	PublicBaseURL         string
	ReturnURL             string
	SuppressProviderEmail bool
	Anchors               []AnchorSpec
	Notification          NotificationPolicy
}

// SendRequest is one document to be signed by one signer
type SendRequest struct {
	Document           []byte
	FileName           string
	SignerEmail        string
	SignerName         string
	Subject            string
	Message            string
	UseEmbeddedSigning bool
	ReturnURL          string
}

// SendResult is returned by SendForSignature
type SendResult struct {
	EnvelopeID string `json:"envelopeId"`
	Status     string `json:"status"`
	// SigningURL is a short-lived embedded session, embedded delivery only
	SigningURL string `json:"signingUrl,omitempty"`
	// SigningLink is the long-lived outer link when this service notifies the signer
	SigningLink             string     `json:"signingLink,omitempty"`
	SigningLinkExpiresAt    *time.Time `json:"signingLinkExpiresAt,omitempty"`
	ProviderEmailSuppressed bool       `json:"providerEmailSuppressed"`
	InvitationSent          bool       `json:"invitationSent"`
}

// StatusResult is the read-only status projection
type StatusResult struct {
	EnvelopeID      string     `json:"envelopeId"`
	Status          string     `json:"status"`
	StatusChangedAt *time.Time `json:"statusChangedDateTime,omitempty"`
	SentAt          *time.Time `json:"sentDateTime,omitempty"`
	DeliveredAt     *time.Time `json:"deliveredDateTime,omitempty"`
	CompletedAt     *time.Time `json:"completedDateTime,omitempty"`
	DeclinedAt      *time.Time `json:"declinedDateTime,omitempty"`
	VoidedAt        *time.Time `json:"voidedDateTime,omitempty"`
}

// Service is the envelope workflow
type Service struct {
	provider Provider
	runner   Runner
	repo     Repository
	links    *LinkSigner
	mailer   Mailer
	metrics  metrics.Recorder
	cfg      Config
	now      func() time.Time
}

func NewService(p Provider, runner Runner, repo Repository, links *LinkSigner, mailer Mailer, recorder metrics.Recorder, cfg Config) *Service {
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	if len(cfg.Anchors) == 0 {
		cfg.Anchors = DefaultAnchors
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Service{
		provider: p,
		runner:   runner,
		repo:     repo,
		links:    links,
		mailer:   mailer,
		metrics:  recorder,
		cfg:      cfg,
		now:      time.Now,
	}
}

func validationError(format string, args ...any) error {
	return &provider.Error{Kind: provider.ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func invalidState(envelopeID string, status models.EnvelopeStatus, action string) error {
	return &provider.Error{
		Kind:    provider.ErrInvalidEnvelopeState,
		Code:    string(status),
		Message: fmt.Sprintf("envelope %s is %s; cannot %s", envelopeID, status, action),
	}
}

func (s *Service) validate(req *SendRequest) (email string, err error) {
	if len(req.Document) == 0 {
		return "", validationError("document is empty")
	}
	if len(req.Document) > maxDocumentBytes {
		return "", validationError("document exceeds %d bytes", maxDocumentBytes)
	}
	email = NormalizeEmail(req.SignerEmail)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return "", validationError("invalid signer email %q", req.SignerEmail)
	}
	if strings.TrimSpace(req.SignerName) == "" {
		return "", validationError("signer name is required")
	}
	return email, nil
}

// providerNotifies reports whether DocuSign should email the signer itself
func (s *Service) providerNotifies(embedded bool) bool {
	if embedded {
		return false
	}
	return !(s.cfg.SuppressProviderEmail && s.mailer != nil && s.links != nil)
}

func (s *Service) definition(req *SendRequest, email, clientUserID string) *EnvelopeDefinition {
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		fileName = "document.pdf"
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "Please sign: " + fileName
	}

	signer := Signer{
		Email:        email,
		Name:         strings.TrimSpace(req.SignerName),
		RecipientID:  "1",
		RoutingOrder: "1",
		ClientUserID: clientUserID,
		Tabs:         BuildTabs(s.cfg.Anchors),
	}
	if s.providerNotifies(req.UseEmbeddedSigning) {
		signer.EmbeddedRecipientStartURL = embeddedStartSignAtDocuSign
	}

	return &EnvelopeDefinition{
		EmailSubject: subject,
		EmailBlurb:   req.Message,
		Documents: []Document{{
			DocumentBase64: base64.StdEncoding.EncodeToString(req.Document),
			DocumentID:     "1",
			Name:           fileName,
			FileExtension:  strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), "."),
		}},
		Recipients:   Recipients{Signers: []Signer{signer}},
		Notification: s.notification(),
		Status:       string(models.EnvelopeSent),
	}
}

func (s *Service) notification() *Notification {
	p := s.cfg.Notification
	n := &Notification{UseAccountDefaults: "false"}
	if p.ReminderDelayDays > 0 {
		freq := p.ReminderFrequencyDays
		if freq <= 0 {
			freq = p.ReminderDelayDays
		}
		n.Reminders = &Reminders{
			ReminderEnabled:   "true",
			ReminderDelay:     strconv.Itoa(p.ReminderDelayDays),
			ReminderFrequency: strconv.Itoa(freq),
		}
	}
	if p.ExpireAfterDays > 0 {
		n.Expirations = &Expirations{
			ExpireEnabled: "true",
			ExpireAfter:   strconv.Itoa(p.ExpireAfterDays),
			ExpireWarn:    strconv.Itoa(p.ExpireWarnDays),
		}
	}
	if n.Reminders == nil && n.Expirations == nil {
		return nil
	}
	return n
}

// SendForSignature creates and sends an envelope for one signer
func (s *Service) SendForSignature(ctx context.Context, req *SendRequest) (*SendResult, error) {
	email, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	clientUserID := CorrelationID(email)
	def := s.definition(req, email, clientUserID)
	mode := models.DeliveryRemote
	if req.UseEmbeddedSigning {
		mode = models.DeliveryEmbedded
	}
	suppressed := !req.UseEmbeddedSigning && !s.providerNotifies(false)

	logger := log.WithFields(logrus.Fields{
		"signer_email":  email,
		"file_name":     def.Documents[0].Name,
		"delivery_mode": mode,
	})

	var summary *EnvelopeSummary
	var accountID string
	err = s.runner.Run(ctx, "create_envelope", func(ctx context.Context, cred *tokens.Credential) error {
		var err error
		summary, err = s.provider.CreateEnvelope(ctx, cred, def)
		accountID = cred.AccountID
		return err
	})
	if err != nil {
		s.metrics.RecordEnvelopeSent(mode, false)
		logger.WithError(err).Error("Envelope creation failed")
		return nil, err
	}
	s.metrics.RecordEnvelopeSent(mode, true)

	now := s.now()
	status := models.ParseEnvelopeStatus(summary.Status)
	if status == "" {
		status = models.EnvelopeSent
	}
	digest := sha256.Sum256(req.Document)
	record := &models.Envelope{
		EnvelopeID:            summary.EnvelopeID,
		AccountID:             accountID,
		Status:                status,
		FileName:              def.Documents[0].Name,
		DocumentSHA256:        hex.EncodeToString(digest[:]),
		DocumentSize:          len(req.Document),
		Subject:               def.EmailSubject,
		SignerEmail:           email,
		SignerName:            def.Recipients.Signers[0].Name,
		SignerClientUserID:    clientUserID,
		DeliveryMode:          mode,
		ProviderEmailSuppress: suppressed,
		ReminderDelayDays:     s.cfg.Notification.ReminderDelayDays,
		ReminderFrequencyDays: s.cfg.Notification.ReminderFrequencyDays,
		ExpireAfterDays:       s.cfg.Notification.ExpireAfterDays,
		StatusChangedAt:       &now,
	}
	if status == models.EnvelopeSent {
		record.SentAt = &now
	}
	if err := s.repo.Create(ctx, record); err != nil {
		// the envelope exists at DocuSign; the mirror is rebuilt on the next status poll
		logger.WithError(err).WithField("envelope_id", summary.EnvelopeID).Error("Failed to store envelope record")
	}

	result := &SendResult{
		EnvelopeID:              summary.EnvelopeID,
		Status:                  string(status),
		ProviderEmailSuppressed: suppressed,
	}
	logger = logger.WithField("envelope_id", summary.EnvelopeID)

	if req.UseEmbeddedSigning {
		url, err := s.recipientView(ctx, summary.EnvelopeID, email, record.SignerName, req.ReturnURL)
		s.metrics.RecordSigningView("send", err == nil)
		if err != nil {
			logger.WithError(err).Error("Envelope sent but embedded signing view failed")
			return nil, err
		}
		result.SigningURL = url
	}

	if suppressed {
		link, expires, err := s.SigningLinkURL(summary.EnvelopeID, email)
		if err != nil {
			return nil, err
		}
		result.SigningLink = link
		result.SigningLinkExpiresAt = &expires

		inv := &Invitation{
			EnvelopeID: summary.EnvelopeID,
			To:         email,
			Name:       record.SignerName,
			Subject:    def.EmailSubject,
			Message:    req.Message,
			FileName:   record.FileName,
			SigningURL: link,
			ExpiresAt:  expires,
		}
		if err := s.mailer.SendSigningInvitation(ctx, inv); err != nil {
			// the caller still gets the link and can deliver it another way
			logger.WithError(err).Error("Failed to send signing invitation")
			s.metrics.RecordEmailSent(false)
		} else {
			result.InvitationSent = true
			s.metrics.RecordEmailSent(true)
		}
	}

	logger.WithFields(logrus.Fields{
		"status":                    result.Status,
		"provider_email_suppressed": suppressed,
	}).Info("Envelope sent for signature")
	return result, nil
}

// fetch reads provider state and mirrors it locally
func (s *Service) fetch(ctx context.Context, envelopeID string) (*EnvelopeInfo, error) {
	envelopeID = strings.TrimSpace(envelopeID)
	if envelopeID == "" {
		return nil, validationError("envelope id is required")
	}

	var info *EnvelopeInfo
	err := s.runner.Run(ctx, "get_envelope", func(ctx context.Context, cred *tokens.Credential) error {
		var err error
		info, err = s.provider.GetEnvelope(ctx, cred, envelopeID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.RecordStatus(ctx, info, s.now(), true); err != nil && !errors.Is(err, ErrEnvelopeNotFound) {
		log.WithError(err).WithField("envelope_id", envelopeID).Warn("Failed to mirror envelope status")
	}
	return info, nil
}

// GetEnvelopeStatus returns the provider's current status and timestamps
func (s *Service) GetEnvelopeStatus(ctx context.Context, envelopeID string) (*StatusResult, error) {
	info, err := s.fetch(ctx, envelopeID)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		EnvelopeID:      info.EnvelopeID,
		Status:          string(models.ParseEnvelopeStatus(info.Status)),
		StatusChangedAt: info.StatusChangedAt,
		SentAt:          info.SentAt,
		DeliveredAt:     info.DeliveredAt,
		CompletedAt:     info.CompletedAt,
		DeclinedAt:      info.DeclinedAt,
		VoidedAt:        info.VoidedAt,
	}, nil
}

// IsDocumentSigned reports whether the envelope is completed
func (s *Service) IsDocumentSigned(ctx context.Context, envelopeID string) (bool, error) {
	status, err := s.GetEnvelopeStatus(ctx, envelopeID)
	if err != nil {
		return false, err
	}
	return models.EnvelopeStatus(status.Status) == models.EnvelopeCompleted, nil
}

// RegenerateSigningLink mints a fresh embedded session for a sent or delivered envelope
func (s *Service) RegenerateSigningLink(ctx context.Context, envelopeID, signerEmail, signerName, returnURL string) (string, error) {
	email := NormalizeEmail(signerEmail)
	if email == "" {
		return "", validationError("signer email is required")
	}

	local, err := s.repo.FindByEnvelopeID(ctx, envelopeID)
	if err != nil && !errors.Is(err, ErrEnvelopeNotFound) {
		return "", err
	}
	if local != nil {
		if local.SignerEmail != email {
			return "", validationError("%s is not the signer of envelope %s", email, envelopeID)
		}
		if strings.TrimSpace(signerName) == "" {
			signerName = local.SignerName
		}
	}
	if strings.TrimSpace(signerName) == "" {
		return "", validationError("signer name is required")
	}

	info, err := s.fetch(ctx, envelopeID)
	if err != nil {
		return "", err
	}
	status := models.ParseEnvelopeStatus(info.Status)
	if !status.AllowsSigningView() {
		s.metrics.RecordSigningView("regenerate", false)
		return "", invalidState(envelopeID, status, "issue a signing link")
	}

	url, err := s.recipientView(ctx, envelopeID, email, signerName, returnURL)
	s.metrics.RecordSigningView("regenerate", err == nil)
	if err != nil {
		return "", err
	}
	log.WithFields(logrus.Fields{
		"envelope_id":  envelopeID,
		"signer_email": email,
		"status":       status,
	}).Info("Signing session issued")
	return url, nil
}

func (s *Service) recipientView(ctx context.Context, envelopeID, email, name, returnURL string) (string, error) {
	if returnURL == "" {
		returnURL = s.cfg.ReturnURL
	}
	view := &RecipientViewRequest{
		ReturnURL:            returnURL,
		AuthenticationMethod: "none",
		Email:                email,
		UserName:             strings.TrimSpace(name),
		ClientUserID:         CorrelationID(email),
		RecipientID:          "1",
	}

	var url string
	err := s.runner.Run(ctx, "create_recipient_view", func(ctx context.Context, cred *tokens.Credential) error {
		var err error
		url, err = s.provider.CreateRecipientView(ctx, cred, envelopeID, view)
		return err
	})
	return url, err
}

// DownloadSignedDocument returns the combined signed PDF of a completed envelope
func (s *Service) DownloadSignedDocument(ctx context.Context, envelopeID string) ([]byte, error) {
	info, err := s.fetch(ctx, envelopeID)
	if err != nil {
		return nil, err
	}
	status := models.ParseEnvelopeStatus(info.Status)
	if status != models.EnvelopeCompleted {
		return nil, invalidState(envelopeID, status, "download the signed document")
	}

	var pdf []byte
	err = s.runner.Run(ctx, "get_combined_document", func(ctx context.Context, cred *tokens.Credential) error {
		var err error
		pdf, err = s.provider.GetCombinedDocument(ctx, cred, envelopeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

// VoidEnvelope cancels a non-terminal envelope
func (s *Service) VoidEnvelope(ctx context.Context, envelopeID, reason string) (*StatusResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("void reason is required")
	}

	info, err := s.fetch(ctx, envelopeID)
	if err != nil {
		return nil, err
	}
	status := models.ParseEnvelopeStatus(info.Status)
	if status.IsTerminal() {
		return nil, invalidState(envelopeID, status, "void")
	}

	err = s.runner.Run(ctx, "void_envelope", func(ctx context.Context, cred *tokens.Credential) error {
		return s.provider.VoidEnvelope(ctx, cred, envelopeID, reason)
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"envelope_id": envelopeID,
		"reason":      reason,
	}).Warn("Envelope voided")

	return s.GetEnvelopeStatus(ctx, envelopeID)
}

// SigningLinkURL issues the long-lived outer link for a signer
func (s *Service) SigningLinkURL(envelopeID, email string) (string, time.Time, error) {
	if s.links == nil {
		return "", time.Time{}, errors.New("esign: signing links are not configured")
	}
	token, expires, err := s.links.Issue(envelopeID, email)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.cfg.PublicBaseURL + "/sign/" + token, expires, nil
}

// OpenSigningLink verifies an outer link token and mints a fresh signing session
func (s *Service) OpenSigningLink(ctx context.Context, token string) (string, error) {
	if s.links == nil {
		return "", ErrInvalidSigningLink
	}
	claims, err := s.links.Verify(token)
	if err != nil {
		return "", err
	}

	local, err := s.repo.FindByEnvelopeID(ctx, claims.EnvelopeID)
	if err != nil {
		return "", err
	}
	url, err := s.RegenerateSigningLink(ctx, claims.EnvelopeID, claims.Email(), local.SignerName, s.cfg.ReturnURL)
	s.metrics.RecordSigningView("link", err == nil)
	return url, err
}

// ListEnvelopes returns local records, newest first
func (s *Service) ListEnvelopes(ctx context.Context, status string, limit int) ([]models.Envelope, error) {
	return s.repo.List(ctx, models.ParseEnvelopeStatus(status), limit)
}

// ApplyWebhookEvent records a status pushed by DocuSign Connect
func (s *Service) ApplyWebhookEvent(ctx context.Context, event *ConnectEvent) error {
	info := event.EnvelopeInfo()
	if info.EnvelopeID == "" {
		return validationError("notification has no envelope id")
	}

	envelope, err := s.repo.RecordStatus(ctx, info, s.now(), false)
	if errors.Is(err, ErrEnvelopeNotFound) {
		log.WithField("envelope_id", info.EnvelopeID).Info("Ignoring notification for unknown envelope")
		s.metrics.RecordWebhookEvent("unknown")
		return nil
	}
	if err != nil {
		return err
	}

	s.metrics.RecordWebhookEvent(string(envelope.Status))
	log.WithFields(logrus.Fields{
		"envelope_id": envelope.EnvelopeID,
		"event":       event.Event,
		"status":      envelope.Status,
	}).Info("Envelope status updated from Connect")
	return nil
}
