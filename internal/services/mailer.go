package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/signflow-api/internal/esign"
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

// SMTPSettings configures an SMTPMailer
type SMTPSettings struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Timeout  time.Duration
}

type smtpMailer struct {
	settings SMTPSettings
	dialer   *mail.Dialer
}

// NewSMTPMailer creates a mailer delivering signing invitations over SMTP.
// Port 465 uses implicit TLS, any other port negotiates STARTTLS when offered.
func NewSMTPMailer(settings SMTPSettings) esign.Mailer {
	d := mail.NewDialer(settings.Host, settings.Port, settings.User, settings.Password)
	d.TLSConfig = &tls.Config{ServerName: settings.Host}
	d.SSL = settings.Port == 465
	if settings.Timeout > 0 {
		d.Timeout = settings.Timeout
	}
	return &smtpMailer{settings: settings, dialer: d}
}

func (m *smtpMailer) SendSigningInvitation(ctx context.Context, inv *esign.Invitation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text, html, err := RenderInvitation(inv)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.settings.From)
	if inv.Name != "" {
		msg.SetAddressHeader("To", inv.To, inv.Name)
	} else {
		msg.SetHeader("To", inv.To)
	}
	msg.SetHeader("Subject", inv.Subject)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)

	entry := log.WithFields(logrus.Fields{
		"envelope_id": inv.EnvelopeID,
		"smtp_host":   m.settings.Host,
		"smtp_port":   m.settings.Port,
	})
	if err := m.dialer.DialAndSend(msg); err != nil {
		entry.WithError(err).Error("Failed to send signing invitation")
		return fmt.Errorf("send signing invitation: %w", err)
	}
	entry.Info("Signing invitation sent")
	return nil
}

type logMailer struct{}

// NewLogMailer returns a mailer that only logs the invitation, link included.
// For local development without an SMTP server.
func NewLogMailer() esign.Mailer {
	return logMailer{}
}

func (logMailer) SendSigningInvitation(_ context.Context, inv *esign.Invitation) error {
	log.WithFields(logrus.Fields{
		"envelope_id": inv.EnvelopeID,
		"to":          inv.To,
		"signing_url": inv.SigningURL,
		"expires_at":  inv.ExpiresAt.UTC().Format(time.RFC3339),
	}).Warn("SMTP not configured, signing invitation was not emailed")
	return nil
}

var textInvitation = texttemplate.Must(texttemplate.New("text").Parse(`Hello {{ .Greeting }},

{{ .Message }}

Document: {{ .FileName }}

Review and sign here:
{{ .SigningURL }}
{{ if .Expires }}
This link is valid until {{ .Expires }}.
{{ end }}`))

var htmlInvitation = template.Must(template.New("html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
<p>Hello {{ .Greeting }},</p>
<p>{{ .Message }}</p>
<p>Document: <strong>{{ .FileName }}</strong></p>
<p><a href="{{ .SigningURL }}" style="display:inline-block;padding:10px 18px;background:#1a5fb4;color:#fff;text-decoration:none;border-radius:4px;">Review and sign</a></p>
{{ if .Expires }}<p style="font-size:12px;color:#666;">This link is valid until {{ .Expires }}.</p>{{ end }}
</body>
</html>
`))

type invitationView struct {
	Greeting   string
	Message    string
	FileName   string
	SigningURL string
	Expires    string
}

// RenderInvitation builds the plain text and HTML bodies of an invitation
func RenderInvitation(inv *esign.Invitation) (string, string, error) {
	view := invitationView{
		Greeting:   inv.Name,
		Message:    inv.Message,
		FileName:   inv.FileName,
		SigningURL: inv.SigningURL,
	}
	if strings.TrimSpace(view.Greeting) == "" {
		view.Greeting = inv.To
	}
	if strings.TrimSpace(view.Message) == "" {
		view.Message = "You have been asked to sign a document."
	}
	if !inv.ExpiresAt.IsZero() {
		view.Expires = inv.ExpiresAt.UTC().Format("January 2, 2006")
	}

	var text, html bytes.Buffer
	if err := textInvitation.Execute(&text, view); err != nil {
		return "", "", fmt.Errorf("render text invitation: %w", err)
	}
	if err := htmlInvitation.Execute(&html, view); err != nil {
		return "", "", fmt.Errorf("render html invitation: %w", err)
	}
	return text.String(), html.String(), nil
}
