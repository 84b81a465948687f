package esign

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/franciscosanchezn/signflow-api/internal/provider"
	"github.com/franciscosanchezn/signflow-api/internal/tokens"
)

// DocuSignClient implements Provider against eSignature REST v2.1
type DocuSignClient struct {
	api *provider.Client
}

var _ Provider = (*DocuSignClient)(nil)

func NewDocuSignClient(api *provider.Client) *DocuSignClient {
	return &DocuSignClient{api: api}
}

// accountURL builds {baseUri}/restapi/v2.1/accounts/{accountId}/{path...}
func accountURL(cred *tokens.Credential, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(cred.BaseURI, "/"))
	b.WriteString("/restapi/v2.1/accounts/")
	b.WriteString(url.PathEscape(cred.AccountID))
	for _, s := range segments {
		b.WriteString("/")
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func (d *DocuSignClient) CreateEnvelope(ctx context.Context, cred *tokens.Credential, def *EnvelopeDefinition) (*EnvelopeSummary, error) {
	var summary EnvelopeSummary
	err := d.api.DoJSON(ctx, provider.Request{
		Operation:   "create_envelope",
		Method:      http.MethodPost,
		URL:         accountURL(cred, "envelopes"),
		BearerToken: cred.AccessToken,
		Body:        def,
	}, &summary)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// envelopeBody mirrors GET /envelopes/{id}; DocuSign omits or blanks unset dates
type envelopeBody struct {
	EnvelopeID            string `json:"envelopeId"`
	Status                string `json:"status"`
	StatusChangedDateTime string `json:"statusChangedDateTime"`
	CreatedDateTime       string `json:"createdDateTime"`
	SentDateTime          string `json:"sentDateTime"`
	DeliveredDateTime     string `json:"deliveredDateTime"`
	CompletedDateTime     string `json:"completedDateTime"`
	DeclinedDateTime      string `json:"declinedDateTime"`
	VoidedDateTime        string `json:"voidedDateTime"`
	VoidedReason          string `json:"voidedReason"`
}

func (b *envelopeBody) info() *EnvelopeInfo {
	return &EnvelopeInfo{
		EnvelopeID:      b.EnvelopeID,
		Status:          b.Status,
		StatusChangedAt: parseProviderTime(b.StatusChangedDateTime),
		CreatedAt:       parseProviderTime(b.CreatedDateTime),
		SentAt:          parseProviderTime(b.SentDateTime),
		DeliveredAt:     parseProviderTime(b.DeliveredDateTime),
		CompletedAt:     parseProviderTime(b.CompletedDateTime),
		DeclinedAt:      parseProviderTime(b.DeclinedDateTime),
		VoidedAt:        parseProviderTime(b.VoidedDateTime),
		VoidedReason:    b.VoidedReason,
	}
}

func (d *DocuSignClient) GetEnvelope(ctx context.Context, cred *tokens.Credential, envelopeID string) (*EnvelopeInfo, error) {
	var body envelopeBody
	err := d.api.DoJSON(ctx, provider.Request{
		Operation:   "get_envelope",
		Method:      http.MethodGet,
		URL:         accountURL(cred, "envelopes", envelopeID),
		BearerToken: cred.AccessToken,
	}, &body)
	if err != nil {
		return nil, err
	}
	if body.EnvelopeID == "" {
		body.EnvelopeID = envelopeID
	}
	return body.info(), nil
}

func (d *DocuSignClient) CreateRecipientView(ctx context.Context, cred *tokens.Credential, envelopeID string, view *RecipientViewRequest) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := d.api.DoJSON(ctx, provider.Request{
		Operation:   "create_recipient_view",
		Method:      http.MethodPost,
		URL:         accountURL(cred, "envelopes", envelopeID, "views", "recipient"),
		BearerToken: cred.AccessToken,
		Body:        view,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", &provider.Error{Kind: provider.ErrTransport, Message: "recipient view response has no url"}
	}
	return out.URL, nil
}

func (d *DocuSignClient) GetCombinedDocument(ctx context.Context, cred *tokens.Credential, envelopeID string) ([]byte, error) {
	return d.api.Do(ctx, provider.Request{
		Operation:   "get_combined_document",
		Method:      http.MethodGet,
		URL:         accountURL(cred, "envelopes", envelopeID, "documents", "combined"),
		BearerToken: cred.AccessToken,
		Accept:      "application/pdf",
	})
}

func (d *DocuSignClient) VoidEnvelope(ctx context.Context, cred *tokens.Credential, envelopeID, reason string) error {
	return d.api.DoJSON(ctx, provider.Request{
		Operation:   "void_envelope",
		Method:      http.MethodPut,
		URL:         accountURL(cred, "envelopes", envelopeID),
		BearerToken: cred.AccessToken,
		Body: map[string]string{
			"status":       "voided",
			"voidedReason": reason,
		},
	}, nil)
}

// parseProviderTime accepts DocuSign's RFC 3339 timestamps with 7 fractional digits
func parseProviderTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
