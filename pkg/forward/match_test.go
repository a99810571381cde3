package forward

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinyland-inc/forwardbot/pkg/rules"
)

func rule(dest, keyword string) rules.Rule {
	return rules.Rule{Source: "100", Destination: dest, Keyword: keyword}
}

func TestMatches_CaseInsensitiveSubstring(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		keyword string
		want    bool
	}{
		{"exact", "urgent", "urgent", true},
		{"upper text", "this is Urgent!!", "urgent", true},
		{"upper keyword", "disk is full", "DISK", true},
		{"inside word", "nonurgently", "urgent", true},
		{"multi word keyword", "the server is down now", "server is down", true},
		{"absent", "hello", "urgent", false},
		{"empty text", "", "urgent", false},
		{"unicode", "СРОЧНО: сервер упал", "срочно", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Matches(tt.text, []rules.Rule{rule("200", tt.keyword)})
			assert.Equal(t, tt.want, len(got) == 1)
			// Matches agrees with a direct substring check.
			assert.Equal(t, tt.text != "" && strings.Contains(strings.ToLower(tt.text), strings.ToLower(tt.keyword)), tt.want)
		})
	}
}

func TestMatches_PreservesOrder(t *testing.T) {
	list := []rules.Rule{
		rule("1", "server"),
		rule("2", "nomatch"),
		rule("3", "urgent"),
		rule("4", "down"),
	}

	got := Matches("urgent server down", list)

	assert.Equal(t, []rules.Rule{list[0], list[2], list[3]}, got)
}

func TestMatches_EmptyInputs(t *testing.T) {
	assert.Empty(t, Matches("anything", nil))
	assert.Empty(t, Matches("", []rules.Rule{rule("200", "x")}))
	assert.Empty(t, Matches("anything", []rules.Rule{rule("200", "")}))
}
