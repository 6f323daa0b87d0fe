package bot

import (
	"fmt"
	"strings"
)

// ===========================================================================
// Response Builder
// Builds the SYSTEM message that points a visitor at matching articles
// ===========================================================================

// ResponseBuilder builds suggestion replies
type ResponseBuilder interface {
	// BuildSuggestion returns "" when there is nothing to suggest
	BuildSuggestion(matches []ArticleMatch) string
}

type responseBuilder struct {
	intro string
}

// NewResponseBuilder creates a ResponseBuilder, intro is the first line
func NewResponseBuilder(intro string) ResponseBuilder {
	if intro == "" {
		intro = "While you wait for an agent, these articles may help:"
	}
	return &responseBuilder{intro: intro}
}

func (b *responseBuilder) BuildSuggestion(matches []ArticleMatch) string {
	if len(matches) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(b.intro)
	for i, m := range matches {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, m.Article.Title)
	}
	return sb.String()
}
