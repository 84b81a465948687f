package models

// APIError represents a standardized error response for the API
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	AuthURL string                 `json:"authUrl,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error code constants
const (
	// General errors
	ErrBadRequest       = "BAD_REQUEST"
	ErrUnauthorized     = "UNAUTHORIZED"
	ErrForbidden        = "FORBIDDEN"
	ErrNotFound         = "NOT_FOUND"
	ErrConflict         = "CONFLICT"
	ErrInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrValidationFailed = "VALIDATION_FAILED"

	// DocuSign authorization errors
	ErrNotAuthorized   = "DOCUSIGN_NOT_AUTHORIZED"
	ErrRefreshFailed   = "DOCUSIGN_REFRESH_FAILED"
	ErrAccountMismatch = "DOCUSIGN_ACCOUNT_MISMATCH"
	ErrRateLimited     = "DOCUSIGN_RATE_LIMITED"
	ErrProviderFailure = "DOCUSIGN_UNAVAILABLE"

	// Envelope errors
	ErrEnvelopeNotFound     = "ENVELOPE_NOT_FOUND"
	ErrEnvelopeInvalidState = "ENVELOPE_INVALID_STATE"
	ErrSigningLinkInvalid   = "SIGNING_LINK_INVALID"

	// OAuth callback errors (maintain RFC 6749 compatibility)
	ErrInvalidRequest = "invalid_request"
	ErrInvalidGrant   = "invalid_grant"
	ErrAccessDenied   = "access_denied"
)

// NewAPIError creates a new API error with the given code and message
func NewAPIError(code, message string, details ...map[string]interface{}) APIError {
	err := APIError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// OAuth2Error represents an OAuth2 error response (RFC 6749)
type OAuth2Error struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// NewOAuth2Error creates a new OAuth2 error response
func NewOAuth2Error(error, description string) OAuth2Error {
	return OAuth2Error{
		Error:            error,
		ErrorDescription: description,
	}
}
