package tokens

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/franciscosanchezn/signflow-api/internal/provider"
)

// Grant is the credential set returned by a token endpoint
type Grant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    time.Time
}

// Account is one eSignature account the authorized user can act on
type Account struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	IsDefault   bool   `json:"is_default"`
	BaseURI     string `json:"base_uri"`
}

// UserInfo is the /oauth/userinfo payload
type UserInfo struct {
	Sub      string    `json:"sub"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Accounts []Account `json:"accounts"`
}

// SelectAccount returns accountID when the user belongs to it.
// With no accountID the default account (or the first one) is used.
func (u *UserInfo) SelectAccount(accountID string) *Account {
	if accountID != "" {
		for i := range u.Accounts {
			if strings.EqualFold(u.Accounts[i].AccountID, accountID) {
				return &u.Accounts[i]
			}
		}
		return nil
	}
	for i := range u.Accounts {
		if u.Accounts[i].IsDefault {
			return &u.Accounts[i]
		}
	}
	if len(u.Accounts) > 0 {
		return &u.Accounts[0]
	}
	return nil
}

// Exchanger talks to the authorization server
type Exchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Grant, error)
	Refresh(ctx context.Context, refreshToken string) (*Grant, error)
	UserInfo(ctx context.Context, accessToken string) (*UserInfo, error)
}

// OAuthConfig configures the authorization code grant
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	BaseURL      string // e.g. https://account-d.docusign.com
	Scopes       []string
}

// OAuthClient implements Exchanger against DocuSign's account server
type OAuthClient struct {
	config  *oauth2.Config
	baseURL string
	api     *provider.Client
}

var _ Exchanger = (*OAuthClient)(nil)

func NewOAuthClient(cfg OAuthConfig, api *provider.Client) *OAuthClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &OAuthClient{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth/auth",
				TokenURL:  base + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		baseURL: base,
		api:     api,
	}
}

func (c *OAuthClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

func (c *OAuthClient) Exchange(ctx context.Context, code string) (*Grant, error) {
	tok, err := c.config.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, classifyOAuthError(err)
	}
	return toGrant(tok), nil
}

// Refresh redeems refreshToken once; the caller persists the rotated pair
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	src := c.config.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classifyOAuthError(err)
	}
	grant := toGrant(tok)
	// the server may keep the old refresh token
	if grant.RefreshToken == "" {
		grant.RefreshToken = refreshToken
	}
	return grant, nil
}

func (c *OAuthClient) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	var info UserInfo
	err := c.api.DoJSON(ctx, provider.Request{
		Operation:   "userinfo",
		Method:      http.MethodGet,
		URL:         c.baseURL + "/oauth/userinfo",
		BearerToken: accessToken,
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *OAuthClient) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.api.HTTPClient())
}

func toGrant(tok *oauth2.Token) *Grant {
	g := &Grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		g.Scope = scope
	}
	if g.TokenType == "" {
		g.TokenType = "Bearer"
	}
	return g
}

// classifyOAuthError separates a rejected grant from a failed round trip
func classifyOAuthError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return provider.TransportFailure(err)
	}

	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	kind := provider.ErrAuthentication
	if status >= 500 || status == 0 {
		kind = provider.ErrTransport
	}
	if status == http.StatusTooManyRequests {
		kind = provider.ErrRateLimited
	}
	pe := &provider.Error{
		Kind:       kind,
		StatusCode: status,
		Code:       re.ErrorCode,
		Message:    re.ErrorDescription,
		Err:        err,
	}
	if re.Response != nil {
		pe.RetryAfter = provider.ParseRetryAfter(re.Response.Header, time.Now())
	}
	return pe
}
