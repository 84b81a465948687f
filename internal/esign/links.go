package esign

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	linkIssuer   = "signflow"
	linkAudience = "signing-link"
)

// ErrInvalidSigningLink is returned for tampered, expired or foreign link tokens
var ErrInvalidSigningLink = errors.New("esign: invalid signing link")

// LinkClaims identify the envelope and signer behind a long-lived signing link
type LinkClaims struct {
	EnvelopeID string `json:"env"`
	jwt.RegisteredClaims
}

// Email returns the normalized signer address carried in the subject
func (c *LinkClaims) Email() string {
	return c.Subject
}

// LinkSigner issues and verifies the outer signing links sent to clients.
// The link never embeds a DocuSign session; opening it mints one.
type LinkSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewLinkSigner(secret string, ttl time.Duration) *LinkSigner {
	return &LinkSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token and its expiry
func (s *LinkSigner) Issue(envelopeID, email string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := LinkClaims{
		EnvelopeID: envelopeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    linkIssuer,
			Subject:   NormalizeEmail(email),
			Audience:  jwt.ClaimStrings{linkAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign link: %w", err)
	}
	return signed, expires, nil
}

// Verify checks signature, issuer, audience and expiry
func (s *LinkSigner) Verify(token string) (*LinkClaims, error) {
	claims := &LinkClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(linkIssuer),
		jwt.WithAudience(linkAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSigningLink, err)
	}
	if !parsed.Valid || claims.EnvelopeID == "" || claims.Subject == "" {
		return nil, ErrInvalidSigningLink
	}
	return claims, nil
}
