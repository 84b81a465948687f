package esign

import (
	"strings"

	"github.com/google/uuid"
)

// signerNamespace scopes the name-based UUIDs used as DocuSign clientUserId values
var signerNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:signflow:signer"))

// NormalizeEmail returns the canonical form of a signer address.
// Every code path that talks to DocuSign about a signer goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CorrelationID derives the stable clientUserId for a signer address
func CorrelationID(email string) string {
	return uuid.NewSHA1(signerNamespace, []byte(NormalizeEmail(email))).String()
}
