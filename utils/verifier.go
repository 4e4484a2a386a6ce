package utils

import (
	"net"
	"strings"

	"github.com/badoux/checkmail"
)

// Verification outcomes
const (
	VerificationValid   = "valid"
	VerificationInvalid = "invalid"
	VerificationRisky   = "risky"
	VerificationUnknown = "unknown"
)

// VerifyEmailAddress checks syntax and the recipient domain's MX records.
// SMTP-level mailbox probing is deliberately skipped; most providers block it
// and a hard bounce is already handled by the webhook path.
func VerifyEmailAddress(email string) string {
	if err := checkmail.ValidateFormat(email); err != nil {
		return VerificationInvalid
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return VerificationInvalid
	}

	mxRecords, err := net.LookupMX(parts[1])
	if err != nil {
		if dnsErr, ok := err.(*net.DNSError); ok && dnsErr.IsNotFound {
			return VerificationInvalid
		}
		// Transient resolver failure; don't condemn the address
		return VerificationUnknown
	}
	if len(mxRecords) == 0 {
		return VerificationRisky
	}
	return VerificationValid
}

// ValidateEmailSyntax is the cheap pre-insert check used by import paths
func ValidateEmailSyntax(email string) bool {
	return checkmail.ValidateFormat(email) == nil
}
