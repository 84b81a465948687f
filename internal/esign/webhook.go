package esign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidWebhookSignature is returned when no Connect HMAC header matches
var ErrInvalidWebhookSignature = errors.New("esign: invalid webhook signature")

// DocuSign sends one X-DocuSign-Signature-N header per active Connect key
const maxConnectSignatures = 5

// ConnectEvent is a DocuSign Connect JSON (SIM) notification
type ConnectEvent struct {
	Event             string `json:"event"`
	APIVersion        string `json:"apiVersion"`
	URI               string `json:"uri"`
	RetryCount        int    `json:"retryCount"`
	GeneratedDateTime string `json:"generatedDateTime"`
	Data              struct {
		AccountID       string       `json:"accountId"`
		UserID          string       `json:"userId"`
		EnvelopeID      string       `json:"envelopeId"`
		EnvelopeSummary envelopeBody `json:"envelopeSummary"`
	} `json:"data"`
}

// ParseConnectEvent decodes a notification body
func ParseConnectEvent(body []byte) (*ConnectEvent, error) {
	var event ConnectEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, validationError("invalid Connect payload: %v", err)
	}
	return &event, nil
}

// EnvelopeInfo projects the notification onto the provider status model.
// Without a summary the status is inferred from the event name, e.g. envelope-completed.
func (e *ConnectEvent) EnvelopeInfo() *EnvelopeInfo {
	info := e.Data.EnvelopeSummary.info()
	if info.EnvelopeID == "" {
		info.EnvelopeID = e.Data.EnvelopeID
	}
	if info.Status == "" {
		if status, ok := strings.CutPrefix(e.Event, "envelope-"); ok {
			info.Status = status
		}
	}
	return info
}

// VerifyConnectSignature checks the base64 HMAC-SHA256 of body against the
// X-DocuSign-Signature-N headers
func VerifyConnectSignature(secret string, header http.Header, body []byte) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	for i := 1; i <= maxConnectSignatures; i++ {
		value := header.Get(fmt.Sprintf("X-DocuSign-Signature-%d", i))
		if value == "" {
			continue
		}
		provided, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		if hmac.Equal(provided, expected) {
			return nil
		}
	}
	return ErrInvalidWebhookSignature
}

// SignConnectPayload computes the header value DocuSign would send for body
func SignConnectPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
