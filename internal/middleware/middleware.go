package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by OperatorAuth
const (
	ContextOperatorID = "operatorID"
	ContextRole       = "operatorRole"
	ContextScopes     = "scopes"
)

// Operator roles
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// OperatorAuth validates HS256 operator tokens issued by `signflow operator token`
// and stores the subject and role in the gin context
func OperatorAuth(jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		// RFC 6750 bearer token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "authorization_required",
				"Missing Authorization header. A valid Bearer token is required.")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "invalid_request",
				"Authorization header must use Bearer scheme. Format: 'Bearer <token>'")
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "invalid_token", "Bearer token is empty")
			return
		}

		claims, err := parseAndValidateJWT(tokenString, jwtSecret, time.Now())
		if err != nil {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "invalid_token", err.Error())
			return
		}

		if err := extractAndSetClaims(c, claims); err != nil {
			respondWithOAuth2Error(c, http.StatusUnauthorized, "invalid_token", err.Error())
			return
		}

		c.Next()
	}
}

// respondWithOAuth2Error responds with RFC 6750 compliant error format
func respondWithOAuth2Error(c *gin.Context, status int, errorCode, description string) {
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", fmt.Sprintf(`Bearer error=%q`, errorCode))
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":             errorCode,
		"error_description": description,
	})
}

// parseAndValidateJWT checks signature, algorithm and time claims.
// exp is mandatory for operator tokens.
func parseAndValidateJWT(tokenString string, jwtSecret []byte, now time.Time) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// only HMAC; rejects alg confusion
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v. Expected HMAC", token.Header["alg"])
		}
		return jwtSecret, nil
	},
		jwt.WithIssuer(OperatorIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	return claims, nil
}

// extractAndSetClaims copies the operator identity into the gin context
func extractAndSetClaims(c *gin.Context, claims *OperatorClaims) error {
	if strings.TrimSpace(claims.Subject) == "" {
		return fmt.Errorf("token missing required 'sub' claim. This token is not valid for this API")
	}
	c.Set(ContextOperatorID, claims.Subject)

	// role is required, no defaults
	switch claims.Role {
	case RoleAdmin, RoleOperator:
	case "":
		return fmt.Errorf("token missing required 'role' claim. Tokens must explicitly specify operator roles")
	default:
		return fmt.Errorf("invalid role '%s'. Allowed roles: admin, operator", claims.Role)
	}
	c.Set(ContextRole, claims.Role)

	if claims.Scope != "" {
		c.Set(ContextScopes, claims.Scope)
	}
	return nil
}

// OperatorID returns the authenticated operator subject, or "" when unauthenticated
func OperatorID(c *gin.Context) string {
	return c.GetString(ContextOperatorID)
}
