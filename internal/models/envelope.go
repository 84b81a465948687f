package models

import (
	"strings"
	"time"
)

// EnvelopeStatus is the provider-owned lifecycle state of a signature request
type EnvelopeStatus string

const (
	EnvelopeCreated   EnvelopeStatus = "created"
	EnvelopeSent      EnvelopeStatus = "sent"
	EnvelopeDelivered EnvelopeStatus = "delivered"
	EnvelopeCompleted EnvelopeStatus = "completed"
	EnvelopeDeclined  EnvelopeStatus = "declined"
	EnvelopeVoided    EnvelopeStatus = "voided"
)

// ParseEnvelopeStatus normalizes a provider status string
func ParseEnvelopeStatus(s string) EnvelopeStatus {
	return EnvelopeStatus(strings.ToLower(strings.TrimSpace(s)))
}

// IsTerminal reports whether no further signing can happen
func (s EnvelopeStatus) IsTerminal() bool {
	switch s {
	case EnvelopeCompleted, EnvelopeDeclined, EnvelopeVoided:
		return true
	}
	return false
}

// statusRank orders the lifecycle; terminal states share the last rank.
var statusRank = map[EnvelopeStatus]int{
	EnvelopeCreated:   1,
	EnvelopeSent:      2,
	EnvelopeDelivered: 3,
	EnvelopeCompleted: 4,
	EnvelopeDeclined:  4,
	EnvelopeVoided:    4,
}

// CanAdvanceTo reports whether an observed status may replace s.
// Terminal states are final and known states only move forward.
// Statuses outside the lifecycle are accepted unless s is terminal.
func (s EnvelopeStatus) CanAdvanceTo(next EnvelopeStatus) bool {
	if next == "" || next == s || s.IsTerminal() {
		return false
	}
	from, known := statusRank[s]
	to, nextKnown := statusRank[next]
	if !known || !nextKnown {
		return true
	}
	return to > from
}

// AllowsSigningView reports whether a recipient signing session may be issued
func (s EnvelopeStatus) AllowsSigningView() bool {
	return s == EnvelopeSent || s == EnvelopeDelivered
}

// Delivery modes
const (
	DeliveryRemote   = "remote"
	DeliveryEmbedded = "embedded"
)

// Envelope is the local record of a document sent for signature.
// Status fields only ever hold values observed from the provider.
type Envelope struct {
	ID                    uint           `gorm:"primaryKey" json:"-"`
	EnvelopeID            string         `gorm:"uniqueIndex;not null" json:"envelope_id"`
	AccountID             string         `gorm:"index" json:"account_id"`
	Status                EnvelopeStatus `gorm:"not null" json:"status"`
	FileName              string         `json:"file_name"`
	DocumentSHA256        string         `json:"document_sha256"`
	DocumentSize          int            `json:"document_size"`
	Subject               string         `json:"subject"`
	SignerEmail           string         `gorm:"index;not null" json:"signer_email"`
	SignerName            string         `json:"signer_name"`
	SignerClientUserID    string         `gorm:"not null" json:"-"`
	DeliveryMode          string         `json:"delivery_mode"`
	ProviderEmailSuppress bool           `json:"provider_email_suppressed"`
	ReminderDelayDays     int            `json:"reminder_delay_days"`
	ReminderFrequencyDays int            `json:"reminder_frequency_days"`
	ExpireAfterDays       int            `json:"expire_after_days"`
	StatusChangedAt       *time.Time     `json:"status_changed_at,omitempty"`
	SentAt                *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt           *time.Time     `json:"delivered_at,omitempty"`
	CompletedAt           *time.Time     `json:"completed_at,omitempty"`
	DeclinedAt            *time.Time     `json:"declined_at,omitempty"`
	VoidedAt              *time.Time     `json:"voided_at,omitempty"`
	LastPolledAt          *time.Time     `json:"last_polled_at,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

func (Envelope) TableName() string {
	return "envelopes"
}
