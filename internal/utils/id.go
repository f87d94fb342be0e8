package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a prefixed unique identifier, e.g. "decision-6f1d...".
// The prefix keeps stored filenames and log lines self-describing.
func NewID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
