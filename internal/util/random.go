// Package util provides utility functions for the pulseboard application.
package util

import (
	"math/rand"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand; IDs are unique identifiers, not secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.Intn(16)])
	}

	return builder.String()
}

// GenerateUserID generates a unique user ID with "usr_" prefix.
func GenerateUserID() string {
	return GenerateRandomID("usr_", 32)
}

// GenerateEventID generates a unique outbox event ID with "evt_" prefix.
func GenerateEventID() string {
	return GenerateRandomID("evt_", 32)
}

// GenerateBatchID generates a unique digest batch ID with "dgb_" prefix.
func GenerateBatchID() string {
	return GenerateRandomID("dgb_", 32)
}

// GenerateAuditID generates a unique audit log ID with "aud_" prefix.
func GenerateAuditID() string {
	return GenerateRandomID("aud_", 32)
}
