// Package esign submits documents to DocuSign for signature and manages the
// signing-link lifecycle of the resulting envelopes.
package esign

import (
	"context"
	"time"

	"github.com/franciscosanchezn/signflow-api/internal/tokens"
)

// embeddedStartSignAtDocuSign makes DocuSign email a signer that also has a clientUserId
const embeddedStartSignAtDocuSign = "SIGN_AT_DOCUSIGN"

// Provider is the subset of the eSignature REST API this service uses
type Provider interface {
	CreateEnvelope(ctx context.Context, cred *tokens.Credential, def *EnvelopeDefinition) (*EnvelopeSummary, error)
	GetEnvelope(ctx context.Context, cred *tokens.Credential, envelopeID string) (*EnvelopeInfo, error)
	CreateRecipientView(ctx context.Context, cred *tokens.Credential, envelopeID string, view *RecipientViewRequest) (string, error)
	GetCombinedDocument(ctx context.Context, cred *tokens.Credential, envelopeID string) ([]byte, error)
	VoidEnvelope(ctx context.Context, cred *tokens.Credential, envelopeID, reason string) error
}

// EnvelopeDefinition is the POST /envelopes body
type EnvelopeDefinition struct {
	EmailSubject string        `json:"emailSubject"`
	EmailBlurb   string        `json:"emailBlurb,omitempty"`
	Documents    []Document    `json:"documents"`
	Recipients   Recipients    `json:"recipients"`
	Notification *Notification `json:"notification,omitempty"`
	Status       string        `json:"status"`
}

type Document struct {
	DocumentBase64 string `json:"documentBase64"`
	DocumentID     string `json:"documentId"`
	Name           string `json:"name"`
	FileExtension  string `json:"fileExtension,omitempty"`
}

type Recipients struct {
	Signers []Signer `json:"signers"`
}

type Signer struct {
	Email                     string `json:"email"`
	Name                      string `json:"name"`
	RecipientID               string `json:"recipientId"`
	RoutingOrder              string `json:"routingOrder"`
	ClientUserID              string `json:"clientUserId"`
	EmbeddedRecipientStartURL string `json:"embeddedRecipientStartURL,omitempty"`
	Tabs                      Tabs   `json:"tabs"`
}

type Tabs struct {
	SignHereTabs   []Tab `json:"signHereTabs,omitempty"`
	DateSignedTabs []Tab `json:"dateSignedTabs,omitempty"`
	FullNameTabs   []Tab `json:"fullNameTabs,omitempty"`
}

type Tab struct {
	TabLabel                 string `json:"tabLabel,omitempty"`
	DocumentID               string `json:"documentId,omitempty"`
	RecipientID              string `json:"recipientId,omitempty"`
	AnchorString             string `json:"anchorString"`
	AnchorUnits              string `json:"anchorUnits"`
	AnchorXOffset            string `json:"anchorXOffset"`
	AnchorYOffset            string `json:"anchorYOffset"`
	AnchorIgnoreIfNotPresent string `json:"anchorIgnoreIfNotPresent"`
	AnchorCaseSensitive      string `json:"anchorCaseSensitive,omitempty"`
}

// Notification carries the reminder and expiration policy; DocuSign wants strings
type Notification struct {
	UseAccountDefaults string       `json:"useAccountDefaults"`
	Reminders          *Reminders   `json:"reminders,omitempty"`
	Expirations        *Expirations `json:"expirations,omitempty"`
}

type Reminders struct {
	ReminderEnabled   string `json:"reminderEnabled"`
	ReminderDelay     string `json:"reminderDelay"`
	ReminderFrequency string `json:"reminderFrequency"`
}

type Expirations struct {
	ExpireEnabled string `json:"expireEnabled"`
	ExpireAfter   string `json:"expireAfter"`
	ExpireWarn    string `json:"expireWarn"`
}

// EnvelopeSummary is the create response
type EnvelopeSummary struct {
	EnvelopeID     string `json:"envelopeId"`
	Status         string `json:"status"`
	StatusDateTime string `json:"statusDateTime"`
	URI            string `json:"uri"`
}

// EnvelopeInfo is the provider's view of an envelope's lifecycle
type EnvelopeInfo struct {
	EnvelopeID      string
	Status          string
	StatusChangedAt *time.Time
	CreatedAt       *time.Time
	SentAt          *time.Time
	DeliveredAt     *time.Time
	CompletedAt     *time.Time
	DeclinedAt      *time.Time
	VoidedAt        *time.Time
	VoidedReason    string
}

// RecipientViewRequest asks for a short-lived embedded signing session
type RecipientViewRequest struct {
	ReturnURL            string `json:"returnUrl"`
	AuthenticationMethod string `json:"authenticationMethod"`
	Email                string `json:"email"`
	UserName             string `json:"userName"`
	ClientUserID         string `json:"clientUserId"`
	RecipientID          string `json:"recipientId,omitempty"`
}
