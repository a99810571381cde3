// Package commands implements the chat command surface used to manage
// forwarding rules.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tinyland-inc/forwardbot/pkg/logger"
	"github.com/tinyland-inc/forwardbot/pkg/rules"
	"github.com/tinyland-inc/forwardbot/pkg/utils"
)

const (
	CreateForward = "createforward"
	ListForwards  = "listforwards"

	CreateForwardUsage = "Usage: /CreateForward SOURCE_ID to DESTINATION_ID by 'keyword'"
)

// ErrUsage is returned when a command has too few or misplaced tokens.
var ErrUsage = errors.New(CreateForwardUsage)

// RuleStore is the part of rules.Store the commands need.
type RuleStore interface {
	AppendRule(ctx context.Context, source, destination, keyword string) (rules.Rule, error)
	RulesFor(source string) []rules.Rule
	Sources() []string
}

// CreateForwardArgs are the parsed tokens of /CreateForward.
type CreateForwardArgs struct {
	Source      string
	Destination string
	Keyword     string
}

// ParseCreateForward parses "SOURCE to DESTINATION by keyword words...".
// The keyword is all tokens after the second separator joined by spaces with
// surrounding single quotes removed.
func ParseCreateForward(args []string) (CreateForwardArgs, error) {
	if len(args) < 4 {
		return CreateForwardArgs{}, ErrUsage
	}
	if !strings.EqualFold(args[1], "to") || !strings.EqualFold(args[3], "by") {
		return CreateForwardArgs{}, ErrUsage
	}
	return CreateForwardArgs{
		Source:      args[0],
		Destination: args[2],
		Keyword:     rules.NormalizeKeyword(strings.Join(args[4:], " ")),
	}, nil
}

// Split breaks a message into a lowercased command name and its arguments.
// A trailing "@botname" on the command is dropped. ok is false when text is
// not a command.
func Split(text string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") || len(fields[0]) < 2 {
		return "", nil, false
	}
	name = strings.TrimPrefix(fields[0], "/")
	if idx := strings.Index(name, "@"); idx >= 0 {
		name = name[:idx]
	}
	return strings.ToLower(name), fields[1:], true
}

// IsCommand reports whether text is a bot command.
func IsCommand(text string) bool {
	_, _, ok := Split(text)
	return ok
}

// Router executes commands against a rule store.
type Router struct {
	store RuleStore
}

func NewRouter(store RuleStore) *Router {
	return &Router{store: store}
}

// Execute runs the command in text and returns the reply for the issuer.
// handled is false for text that is not a known command.
func (r *Router) Execute(ctx context.Context, text string) (reply string, handled bool) {
	name, args, ok := Split(text)
	if !ok {
		return "", false
	}

	switch name {
	case CreateForward:
		return r.createForward(ctx, args), true
	case ListForwards:
		return r.listForwards(args), true
	default:
		return "", false
	}
}

func (r *Router) createForward(ctx context.Context, args []string) string {
	parsed, err := ParseCreateForward(args)
	if err != nil {
		return CreateForwardUsage
	}

	rule, err := r.store.AppendRule(ctx, parsed.Source, parsed.Destination, parsed.Keyword)
	switch {
	case err == nil:
	case errors.Is(err, rules.ErrEmptyKeyword):
		return "❌ The keyword must not be empty.\n" + CreateForwardUsage
	case errors.Is(err, utils.ErrInvalidChatID):
		return fmt.Sprintf("❌ %v\n%s", err, CreateForwardUsage)
	case errors.Is(err, rules.ErrStorageWrite):
		return "❌ The rule could not be saved, nothing was changed. Please try again."
	default:
		logger.ErrorCF("commands", "CreateForward failed", map[string]any{"error": err.Error()})
		return "❌ The rule could not be created."
	}

	return fmt.Sprintf("✅ Messages from %s to %s are now forwarded when they contain: '%s'",
		rule.Source, rule.Destination, rule.Keyword)
}

func (r *Router) listForwards(args []string) string {
	sources := r.store.Sources()
	if len(args) > 0 {
		source := args[0]
		if canonical, err := utils.CanonicalChatID(source); err == nil {
			source = canonical
		}
		sources = []string{source}
	}

	var b strings.Builder
	for _, source := range sources {
		for _, rule := range r.store.RulesFor(source) {
			fmt.Fprintf(&b, "%s → %s: '%s'\n", rule.Source, rule.Destination, rule.Keyword)
		}
	}
	if b.Len() == 0 {
		return "No forwarding rules."
	}
	return strings.TrimRight(b.String(), "\n")
}
