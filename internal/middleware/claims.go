package middleware

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorIssuer is the iss claim of operator tokens
const OperatorIssuer = "signflow-operator"

// OperatorClaims are the claims of a bearer token for the operator API
type OperatorClaims struct {
	Role  string `json:"role"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// IssueOperatorToken signs an HS256 token for subject with the given role
func IssueOperatorToken(secret []byte, subject, role string, ttl time.Duration, now time.Time) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("operator subject is required")
	}
	if role != RoleAdmin && role != RoleOperator {
		return "", fmt.Errorf("invalid role '%s'. Allowed roles: admin, operator", role)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	claims := OperatorClaims{
		Role:  role,
		Scope: "envelopes docusign",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    OperatorIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
