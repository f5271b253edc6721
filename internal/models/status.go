package models

import "strings"

// StatusFailed is the status value of a failed check.
const StatusFailed = "failed"

// IsFailedStatus reports whether status equals "failed", ignoring case
// and surrounding whitespace.
func IsFailedStatus(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), StatusFailed)
}
