package forward

import (
	"strings"

	"github.com/tinyland-inc/forwardbot/pkg/rules"
)

// Matches returns the rules whose keyword occurs in text, ignoring case, in
// their original order. Empty text matches nothing.
func Matches(text string, list []rules.Rule) []rules.Rule {
	if text == "" || len(list) == 0 {
		return nil
	}

	lowered := strings.ToLower(text)
	var out []rules.Rule
	for _, r := range list {
		if r.Keyword == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(r.Keyword)) {
			out = append(out, r)
		}
	}
	return out
}
