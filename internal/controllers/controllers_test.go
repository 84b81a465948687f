package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscosanchezn/signflow-api/internal/esign"
	"github.com/franciscosanchezn/signflow-api/internal/models"
	"github.com/franciscosanchezn/signflow-api/internal/provider"
	"github.com/franciscosanchezn/signflow-api/internal/services"
	"github.com/franciscosanchezn/signflow-api/internal/tokens"
)

const testAuthURL = "https://api.example.com/api/docusign/auth"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeManager struct {
	codes      []string
	authorize  error
	status     *tokens.AuthStatus
	refreshErr error
	revoked    string
}

func (f *fakeManager) AuthorizeURL(state string) string {
	return "https://account-d.docusign.com/oauth/auth?state=" + state
}

func (f *fakeManager) Authorize(ctx context.Context, code string) (*tokens.AuthStatus, error) {
	f.codes = append(f.codes, code)
	if f.authorize != nil {
		return nil, f.authorize
	}
	return &tokens.AuthStatus{Authenticated: true, AccountID: "acct-1"}, nil
}

func (f *fakeManager) GetAuthStatus(ctx context.Context) (*tokens.AuthStatus, error) {
	if f.status == nil {
		return &tokens.AuthStatus{Environment: "sandbox"}, nil
	}
	return f.status, nil
}

func (f *fakeManager) RefreshNow(ctx context.Context) (*tokens.AuthStatus, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &tokens.AuthStatus{Authenticated: true, RefreshCount: 1}, nil
}

func (f *fakeManager) RevokeAll(ctx context.Context, reason string) (int64, error) {
	f.revoked = reason
	return 2, nil
}

func docusignRouter(m *fakeManager, states services.StateStore) *gin.Engine {
	dc := NewDocuSignController(m, states, testAuthURL)
	r := gin.New()
	g := r.Group("/api/docusign")
	g.GET("/auth", dc.Authorize)
	g.GET("/callback", dc.Callback)
	g.GET("/auth-status", dc.AuthStatus)
	g.POST("/refresh-token", dc.RefreshToken)
	g.POST("/revoke-tokens", dc.RevokeTokens)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDocuSignConsentRoundTrip(t *testing.T) {
	m := &fakeManager{}
	states := services.NewMemoryStateStore(time.Minute)
	r := docusignRouter(m, states)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/docusign/auth?redirect=/admin", nil))
	require.Equal(t, http.StatusFound, w.Code)

	consent, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := consent.Query().Get("state")
	require.NotEmpty(t, state)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/docusign/callback?code=abc&state="+state, nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))
	assert.Equal(t, []string{"abc"}, m.codes)

	// state is single use
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/docusign/callback?code=abc&state="+state, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, m.codes, 1)
}

func TestDocuSignAuthJSONFormat(t *testing.T) {
	r := docusignRouter(&fakeManager{}, services.NewMemoryStateStore(time.Minute))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/docusign/auth?format=json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["authUrl"], "state=")
}

func TestDocuSignCallbackErrors(t *testing.T) {
	states := services.NewMemoryStateStore(time.Minute)
	require.NoError(t, states.Save(context.Background(), "s1", services.PendingAuthorization{}, time.Minute))
	m := &fakeManager{authorize: &provider.Error{Kind: provider.ErrAccountMismatch, Message: "wrong account"}}
	r := docusignRouter(m, states)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/docusign/callback?error=access_denied", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "access_denied")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/docusign/callback?code=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/docusign/callback?code=abc&state=forged", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, m.codes)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/docusign/callback?code=abc&state=s1", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDocuSignRedirectMustBeLocal(t *testing.T) {
	assert.Equal(t, "/admin?tab=1", safeRedirect("/admin?tab=1"))
	assert.Empty(t, safeRedirect("//evil.example.com"))
	assert.Empty(t, safeRedirect("https://evil.example.com"))
	assert.Empty(t, safeRedirect("/\\evil.example.com"))
}

func TestDocuSignAuthStatusIncludesAuthURLWhenUnauthorized(t *testing.T) {
	r := docusignRouter(&fakeManager{}, services.NewMemoryStateStore(time.Minute))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/docusign/auth-status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testAuthURL)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)
}

func TestDocuSignRefreshTokenFailure(t *testing.T) {
	m := &fakeManager{refreshErr: provider.Wrap(provider.ErrRefreshFailed, &provider.Error{Kind: provider.ErrAuthentication, Code: "invalid_grant"})}
	r := docusignRouter(m, services.NewMemoryStateStore(time.Minute))

	w := serve(r, httptest.NewRequest(http.MethodPost, "/api/docusign/refresh-token", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body models.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.ErrRefreshFailed, body.Code)
	assert.Equal(t, testAuthURL, body.AuthURL)
}

func TestDocuSignRevokeTokens(t *testing.T) {
	m := &fakeManager{}
	r := docusignRouter(m, services.NewMemoryStateStore(time.Minute))

	req := httptest.NewRequest(http.MethodPost, "/api/docusign/revoke-tokens", strings.NewReader(`{"reason":"rotating integration key"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rotating integration key", m.revoked)
	assert.Contains(t, w.Body.String(), `"revoked":2`)
}

type fakeEnvelopes struct {
	sent      *esign.SendRequest
	sendErr   error
	statusErr error
	voidedFor string
	linkFor   []string
	listLimit int
}

func (f *fakeEnvelopes) SendForSignature(ctx context.Context, req *esign.SendRequest) (*esign.SendResult, error) {
	f.sent = req
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &esign.SendResult{EnvelopeID: "env-1", Status: "sent"}, nil
}

func (f *fakeEnvelopes) GetEnvelopeStatus(ctx context.Context, id string) (*esign.StatusResult, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &esign.StatusResult{EnvelopeID: id, Status: "delivered"}, nil
}

func (f *fakeEnvelopes) IsDocumentSigned(ctx context.Context, id string) (bool, error) {
	return id == "env-done", nil
}

func (f *fakeEnvelopes) RegenerateSigningLink(ctx context.Context, id, email, name, returnURL string) (string, error) {
	f.linkFor = []string{id, email, name, returnURL}
	if id == "env-done" {
		return "", &provider.Error{Kind: provider.ErrInvalidEnvelopeState, Code: "completed", Message: "envelope env-done is completed; cannot issue a signing link"}
	}
	return "https://demo.docusign.net/Signing/StartInSession.aspx?t=1", nil
}

func (f *fakeEnvelopes) SigningLinkURL(id, email string) (string, time.Time, error) {
	f.linkFor = []string{id, email}
	return "https://sign.example.com/sign/tok", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func (f *fakeEnvelopes) DownloadSignedDocument(ctx context.Context, id string) ([]byte, error) {
	return []byte("%PDF-1.7 signed"), nil
}

func (f *fakeEnvelopes) VoidEnvelope(ctx context.Context, id, reason string) (*esign.StatusResult, error) {
	f.voidedFor = reason
	return &esign.StatusResult{EnvelopeID: id, Status: "voided"}, nil
}

func (f *fakeEnvelopes) ListEnvelopes(ctx context.Context, status string, limit int) ([]models.Envelope, error) {
	f.listLimit = limit
	return []models.Envelope{{EnvelopeID: "env-1", Status: models.EnvelopeSent, SignerEmail: "jane@example.com"}}, nil
}

func envelopeRouter(svc *fakeEnvelopes) *gin.Engine {
	ec := NewEnvelopeController(svc, testAuthURL)
	r := gin.New()
	g := r.Group("/api/v1/envelopes")
	g.POST("", ec.SendEnvelope)
	g.GET("", ec.ListEnvelopes)
	g.GET("/:id/status", ec.GetStatus)
	g.GET("/:id/signed", ec.IsSigned)
	g.POST("/:id/signing-link", ec.SigningLink)
	g.GET("/:id/document", ec.DownloadDocument)
	g.POST("/:id/void", ec.VoidEnvelope)
	return r
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSendEnvelopeJSON(t *testing.T) {
	svc := &fakeEnvelopes{}
	doc := base64.StdEncoding.EncodeToString([]byte("%PDF-1.7"))
	body := `{"documentBase64":"` + doc + `","fileName":"nda.pdf","signerEmail":"Jane@Example.com","signerName":"Jane Doe","useEmbeddedSigning":true}`

	w := serve(envelopeRouter(svc), jsonRequest(http.MethodPost, "/api/v1/envelopes", body))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []byte("%PDF-1.7"), svc.sent.Document)
	assert.Equal(t, "Jane@Example.com", svc.sent.SignerEmail)
	assert.True(t, svc.sent.UseEmbeddedSigning)
	assert.Contains(t, w.Body.String(), `"envelopeId":"env-1"`)
}

func TestSendEnvelopeMultipart(t *testing.T) {
	svc := &fakeEnvelopes{}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", "contract.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 contract"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("signerEmail", "jane@example.com"))
	require.NoError(t, mw.WriteField("signerName", "Jane Doe"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/envelopes", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := serve(envelopeRouter(svc), req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "contract.pdf", svc.sent.FileName)
	assert.Equal(t, []byte("%PDF-1.4 contract"), svc.sent.Document)
	assert.False(t, svc.sent.UseEmbeddedSigning)
}

func TestSendEnvelopeValidation(t *testing.T) {
	svc := &fakeEnvelopes{}
	w := serve(envelopeRouter(svc), jsonRequest(http.MethodPost, "/api/v1/envelopes", `{"fileName":"x.pdf"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.sent)

	w = serve(envelopeRouter(svc), jsonRequest(http.MethodPost, "/api/v1/envelopes",
		`{"documentBase64":"%%%","fileName":"x.pdf","signerEmail":"a@b.c","signerName":"A"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendEnvelopeNotAuthorized(t *testing.T) {
	svc := &fakeEnvelopes{sendErr: &provider.Error{Kind: provider.ErrNotAuthorized, Message: "no active DocuSign authorization"}}
	doc := base64.StdEncoding.EncodeToString([]byte("%PDF"))
	body := `{"documentBase64":"` + doc + `","fileName":"nda.pdf","signerEmail":"jane@example.com","signerName":"Jane"}`

	w := serve(envelopeRouter(svc), jsonRequest(http.MethodPost, "/api/v1/envelopes", body))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var apiErr models.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, testAuthURL, apiErr.AuthURL)
}

func TestEnvelopeReadEndpoints(t *testing.T) {
	svc := &fakeEnvelopes{}
	r := envelopeRouter(svc)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/envelopes/env-1/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"delivered"`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/envelopes/env-done/signed", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"signed":true`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/envelopes/env-done/document", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "env-done-signed.pdf")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/envelopes?limit=10", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jane@example.com")

	assert.Equal(t, 10, svc.listLimit)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/envelopes?limit=300", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, esign.MaxListLimit, svc.listLimit)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/envelopes", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, esign.DefaultListLimit, svc.listLimit)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/envelopes?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnvelopeStatusNotFound(t *testing.T) {
	r := envelopeRouter(&fakeEnvelopes{statusErr: &provider.Error{Kind: provider.ErrNotFound, StatusCode: 404, Code: "ENVELOPE_DOES_NOT_EXIST"}})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/envelopes/missing/status", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ENVELOPE_DOES_NOT_EXIST")
}

func TestSigningLinkEndpoint(t *testing.T) {
	svc := &fakeEnvelopes{}
	r := envelopeRouter(svc)

	w := serve(r, jsonRequest(http.MethodPost, "/api/v1/envelopes/env-1/signing-link", `{"signerEmail":"Jane@Example.com","signerName":"Jane"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "StartInSession")
	assert.Equal(t, []string{"env-1", "Jane@Example.com", "Jane", ""}, svc.linkFor)

	w = serve(r, jsonRequest(http.MethodPost, "/api/v1/envelopes/env-done/signing-link", `{"signerEmail":"jane@example.com"}`))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = serve(r, jsonRequest(http.MethodPost, "/api/v1/envelopes/env-1/signing-link", `{"signerEmail":" Jane@Example.com ","persistent":true}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://sign.example.com/sign/tok")
	assert.Equal(t, []string{"env-1", "jane@example.com"}, svc.linkFor)
}

func TestVoidEndpoint(t *testing.T) {
	svc := &fakeEnvelopes{}
	r := envelopeRouter(svc)

	w := serve(r, jsonRequest(http.MethodPost, "/api/v1/envelopes/env-1/void", `{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, jsonRequest(http.MethodPost, "/api/v1/envelopes/env-1/void", `{"reason":"sent to wrong signer"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sent to wrong signer", svc.voidedFor)
	assert.Contains(t, w.Body.String(), `"status":"voided"`)
}

type fakeSigning struct {
	openErr  error
	events   []*esign.ConnectEvent
	applyErr error
}

func (f *fakeSigning) OpenSigningLink(ctx context.Context, token string) (string, error) {
	if f.openErr != nil {
		return "", f.openErr
	}
	return "https://demo.docusign.net/Signing/StartInSession.aspx?t=" + token, nil
}

func (f *fakeSigning) ApplyWebhookEvent(ctx context.Context, event *esign.ConnectEvent) error {
	f.events = append(f.events, event)
	return f.applyErr
}

func signingRouter(svc *fakeSigning, secret string) *gin.Engine {
	sc := NewSigningController(svc, secret)
	r := gin.New()
	r.GET("/sign/:token", sc.OpenLink)
	r.GET("/signing-complete", sc.SigningComplete)
	r.POST("/webhooks/docusign", sc.Webhook)
	return r
}

func TestOpenSigningLinkRedirects(t *testing.T) {
	w := serve(signingRouter(&fakeSigning{}, ""), httptest.NewRequest(http.MethodGet, "/sign/abc", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://demo.docusign.net/Signing/StartInSession.aspx?t=abc", w.Header().Get("Location"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestOpenSigningLinkFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		text   string
	}{
		{"bad token", esign.ErrInvalidSigningLink, http.StatusBadRequest, "invalid or has expired"},
		{"completed", &provider.Error{Kind: provider.ErrInvalidEnvelopeState}, http.StatusConflict, "can no longer be signed"},
		{"provider down", provider.TransportFailure(errors.New("dial tcp")), http.StatusBadGateway, "temporarily unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(signingRouter(&fakeSigning{openErr: tt.err}, ""), httptest.NewRequest(http.MethodGet, "/sign/abc", nil))
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.text)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		})
	}
}

func TestSigningCompletePage(t *testing.T) {
	w := serve(signingRouter(&fakeSigning{}, ""), httptest.NewRequest(http.MethodGet, "/signing-complete?event=signing_complete", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "has been signed")

	w = serve(signingRouter(&fakeSigning{}, ""), httptest.NewRequest(http.MethodGet, "/signing-complete?event=%3Cscript%3E", nil))
	assert.Contains(t, w.Body.String(), "Your signing session has ended.")
}

func TestWebhookVerifiesSignature(t *testing.T) {
	const secret = "connect-key"
	payload := []byte(`{"event":"envelope-completed","data":{"envelopeId":"env-1"}}`)
	svc := &fakeSigning{}
	r := signingRouter(svc, secret)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/docusign", bytes.NewReader(payload))
	req.Header.Set("X-DocuSign-Signature-1", "bm90IHRoZSByaWdodCBvbmU=")
	w := serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.events)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/docusign", bytes.NewReader(payload))
	req.Header.Set("X-DocuSign-Signature-1", esign.SignConnectPayload(secret, payload))
	w = serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.events, 1)
	assert.Equal(t, "completed", svc.events[0].EnvelopeInfo().Status)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	svc := &fakeSigning{}
	w := serve(signingRouter(svc, ""), httptest.NewRequest(http.MethodPost, "/webhooks/docusign", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.events)
}

func TestWebhookStoreFailureAsksForRetry(t *testing.T) {
	svc := &fakeSigning{applyErr: errors.New("database is locked")}
	payload := `{"event":"envelope-sent","data":{"envelopeId":"env-1"}}`
	w := serve(signingRouter(svc, ""), httptest.NewRequest(http.MethodPost, "/webhooks/docusign", strings.NewReader(payload)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
