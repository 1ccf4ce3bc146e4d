package domain

import (
	"fmt"
	"strings"
)

// GeneratedText is a named text artifact emitted by an output node.
// HintName is the caller-chosen identity of the artifact within a pass.
type GeneratedText struct {
	HintName string `json:"hint_name"`
	Text     string `json:"text"`
}

// ValidateHintName rejects hint names that cannot be used as a stable artifact identity.
func ValidateHintName(hint string) error {
	if strings.TrimSpace(hint) == "" {
		return fmt.Errorf("%w: empty hint name", ErrInvalidHint)
	}
	if strings.Contains(hint, "\\") {
		return fmt.Errorf("%w: %q contains a backslash", ErrInvalidHint, hint)
	}
	if strings.HasPrefix(hint, "/") {
		return fmt.Errorf("%w: %q is absolute", ErrInvalidHint, hint)
	}
	for _, part := range strings.Split(hint, "/") {
		if part == ".." || part == "." || part == "" {
			return fmt.Errorf("%w: %q has an invalid path segment", ErrInvalidHint, hint)
		}
	}
	return nil
}
