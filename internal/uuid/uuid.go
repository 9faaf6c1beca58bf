// Package uuid wraps the random token generation used for workspace
// suffixes and similar short identifiers.
package uuid

import (
	"strings"

	"github.com/google/uuid"
)

// NewString returns a new random (V4) UUID string. Panics on a failed
// entropy read, matching google/uuid's NewString.
func NewString() string {
	return uuid.Must(uuid.NewRandom()).String()
}

// Token returns a short random hex token of n characters (at most 32).
// Collision probability is negligible for the expected concurrency of
// workspaces sharing a base commit.
func Token(n int) string {
	s := strings.ReplaceAll(NewString(), "-", "")
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}
