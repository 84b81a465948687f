package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franciscosanchezn/signflow-api/internal/esign"
	"github.com/franciscosanchezn/signflow-api/internal/models"
	"github.com/franciscosanchezn/signflow-api/internal/provider"
	"github.com/franciscosanchezn/signflow-api/internal/tokens"
)

var testSecret = []byte("operator-test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(roles ...string) *gin.Engine {
	r := gin.New()
	group := r.Group("/api", OperatorAuth(testSecret))
	if len(roles) > 0 {
		group.Use(RequireRole(roles...))
	}
	group.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": OperatorID(c), "role": c.GetString(ContextRole)})
	})
	return r
}

func doGet(r http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOperatorAuth_ValidToken(t *testing.T) {
	token, err := IssueOperatorToken(testSecret, "ops@example.com", RoleOperator, time.Hour, time.Now())
	require.NoError(t, err)

	w := doGet(protectedRouter(), "/api/whoami", token)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ops@example.com", body["id"])
	assert.Equal(t, RoleOperator, body["role"])
}

func TestOperatorAuth_Rejections(t *testing.T) {
	now := time.Now()
	expired, err := IssueOperatorToken(testSecret, "ops", RoleAdmin, time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	wrongKey, err := IssueOperatorToken([]byte("other"), "ops", RoleAdmin, time.Hour, now)
	require.NoError(t, err)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    OperatorIssuer,
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(testSecret)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: OperatorIssuer, Subject: "ops"},
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		bearer string
		code   string
	}{
		{"missing header", "", "authorization_required"},
		{"expired", expired, "invalid_token"},
		{"wrong key", wrongKey, "invalid_token"},
		{"missing role", noRole, "invalid_token"},
		{"missing exp", noExpiry, "invalid_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doGet(protectedRouter(), "/api/whoami", tt.bearer)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestOperatorAuth_RejectsNonBearerScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Basic b3BzOnB3")
	w := httptest.NewRecorder()
	protectedRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request")
}

func TestRequireRole(t *testing.T) {
	operator, err := IssueOperatorToken(testSecret, "ops", RoleOperator, time.Hour, time.Now())
	require.NoError(t, err)
	admin, err := IssueOperatorToken(testSecret, "root", RoleAdmin, time.Hour, time.Now())
	require.NoError(t, err)

	r := protectedRouter(RoleAdmin)
	assert.Equal(t, http.StatusForbidden, doGet(r, "/api/whoami", operator).Code)
	assert.Equal(t, http.StatusOK, doGet(r, "/api/whoami", admin).Code)
}

func TestIssueOperatorToken_RejectsUnknownRole(t *testing.T) {
	_, err := IssueOperatorToken(testSecret, "ops", "superuser", time.Hour, time.Now())
	assert.Error(t, err)
}

type fakeTokenSource struct {
	cred *tokens.Credential
	err  error
}

func (f *fakeTokenSource) GetValidAccessToken(ctx context.Context) (*tokens.Credential, error) {
	return f.cred, f.err
}

func TestRequireDocuSign(t *testing.T) {
	const authURL = "https://api.example.com/api/docusign/auth"

	build := func(src TokenSource) *gin.Engine {
		r := gin.New()
		r.GET("/envelopes", RequireDocuSign(src, authURL), func(c *gin.Context) {
			c.String(http.StatusOK, c.GetString(ContextDocuSignAccount))
		})
		return r
	}

	t.Run("authorized", func(t *testing.T) {
		w := doGet(build(&fakeTokenSource{cred: &tokens.Credential{AccountID: "acct-1"}}), "/envelopes", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "acct-1", w.Body.String())
	})

	t.Run("not authorized", func(t *testing.T) {
		src := &fakeTokenSource{err: &provider.Error{Kind: provider.ErrNotAuthorized, Message: "no active DocuSign authorization"}}
		w := doGet(build(src), "/envelopes", "")
		require.Equal(t, http.StatusUnauthorized, w.Code)

		var body models.APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, models.ErrNotAuthorized, body.Code)
		assert.Equal(t, authURL, body.AuthURL)
		assert.Equal(t, "no active DocuSign authorization", body.Message)
	})

	t.Run("refresh rejected", func(t *testing.T) {
		src := &fakeTokenSource{err: provider.Wrap(provider.ErrRefreshFailed, &provider.Error{Kind: provider.ErrAuthentication, Code: "invalid_grant"})}
		w := doGet(build(src), "/envelopes", "")
		require.Equal(t, http.StatusUnauthorized, w.Code)

		var body models.APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, models.ErrRefreshFailed, body.Code)
		assert.Equal(t, authURL, body.AuthURL)
	})
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"account mismatch", &provider.Error{Kind: provider.ErrAccountMismatch}, http.StatusForbidden, models.ErrAccountMismatch},
		{"invalid state", &provider.Error{Kind: provider.ErrInvalidEnvelopeState}, http.StatusConflict, models.ErrEnvelopeInvalidState},
		{"transport", provider.TransportFailure(context.DeadlineExceeded), http.StatusBadGateway, models.ErrProviderFailure},
		{"refresh transport", provider.Wrap(provider.ErrRefreshFailed, provider.TransportFailure(context.DeadlineExceeded)), http.StatusBadGateway, models.ErrRefreshFailed},
		{"validation", &provider.Error{Kind: provider.ErrValidation}, http.StatusBadRequest, models.ErrValidationFailed},
		{"local not found", esign.ErrEnvelopeNotFound, http.StatusNotFound, models.ErrEnvelopeNotFound},
		{"bad link", esign.ErrInvalidSigningLink, http.StatusBadRequest, models.ErrSigningLinkInvalid},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, models.ErrInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := ErrorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestAbortWithError_RateLimitedSetsRetryAfter(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		AbortWithError(c, &provider.Error{Kind: provider.ErrRateLimited, StatusCode: 429, RetryAfter: 1500 * time.Millisecond}, "")
	})

	w := doGet(r, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.NotContains(t, w.Body.String(), "authUrl")
}

func TestAbortWithError_HidesInternalDetail(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		AbortWithError(c, errors.New("sql: connection refused on 10.0.0.3"), "")
	})

	w := doGet(r, "/x", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
}
