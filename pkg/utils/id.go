package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID generates a random identifier for requests and log correlation
func GenerateID() string {
	return uuid.NewString()
}

// NormalizeRequestID keeps a caller supplied request id if it is a usable token
func NormalizeRequestID(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || len(candidate) > 128 || strings.ContainsAny(candidate, " \t\r\n") {
		return GenerateID()
	}
	return candidate
}
