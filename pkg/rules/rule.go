// Package rules holds the forwarding rules keyed by source conversation.
//
// A Store owns the in-memory mapping and persists the whole mapping through
// a Persister after every successful append. Rules are immutable once created.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tinyland-inc/forwardbot/pkg/utils"
)

var (
	// ErrEmptyKeyword is returned when a keyword is empty after trimming quotes.
	ErrEmptyKeyword = errors.New("keyword must not be empty")
	// ErrStorageCorrupt marks a durable representation that could not be parsed.
	ErrStorageCorrupt = errors.New("rule storage is corrupt")
	// ErrStorageWrite marks a failed durable write after an append.
	ErrStorageWrite = errors.New("rule storage write failed")
)

// Rule forwards messages from Source to Destination when they contain Keyword.
type Rule struct {
	Source      string `json:"-"`
	Destination string `json:"to"`
	Keyword     string `json:"keyword"`
}

// NormalizeKeyword strips surrounding whitespace and single-quote characters.
func NormalizeKeyword(keyword string) string {
	return strings.Trim(strings.TrimSpace(keyword), "'")
}

// NewRule validates and builds a rule. Both ids are stored in canonical
// form. The source must be numeric because updates identify their chat by
// number only, so a rule keyed by @username could never match.
func NewRule(source, destination, keyword string) (Rule, error) {
	source, err := utils.CanonicalChatID(source)
	if err != nil {
		return Rule{}, err
	}
	if strings.HasPrefix(source, "@") {
		return Rule{}, fmt.Errorf("%w: source %s must be a numeric chat id", utils.ErrInvalidChatID, source)
	}
	destination, err = utils.CanonicalChatID(destination)
	if err != nil {
		return Rule{}, err
	}
	keyword = NormalizeKeyword(keyword)
	if keyword == "" {
		return Rule{}, ErrEmptyKeyword
	}
	return Rule{Source: source, Destination: destination, Keyword: keyword}, nil
}
