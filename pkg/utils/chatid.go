package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidChatID is returned for identifiers that are neither numeric nor an @username.
var ErrInvalidChatID = errors.New("invalid chat identifier")

var usernamePattern = regexp.MustCompile(`^@[A-Za-z][A-Za-z0-9_]{3,31}$`)

// ValidateChatID checks that id is a numeric conversation id ("-1001234") or a
// public @username.
func ValidateChatID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("%w: identifier is required", ErrInvalidChatID)
	}
	if _, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return nil
	}
	if usernamePattern.MatchString(trimmed) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidChatID, trimmed)
}

// ParseChatID splits a validated identifier into its numeric or username form.
// Exactly one of the returned values is set.
func ParseChatID(id string) (int64, string, error) {
	if err := ValidateChatID(id); err != nil {
		return 0, "", err
	}
	trimmed := strings.TrimSpace(id)
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n, "", nil
	}
	return 0, trimmed, nil
}

// CanonicalChatID returns id in the form Telegram reports it: numeric ids
// without sign or padding noise ("+100" and "0100" become "100") and
// usernames unchanged.
func CanonicalChatID(id string) (string, error) {
	n, username, err := ParseChatID(id)
	if err != nil {
		return "", err
	}
	if username != "" {
		return username, nil
	}
	return strconv.FormatInt(n, 10), nil
}
