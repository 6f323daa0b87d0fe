package bot

import (
	"context"
	"sort"

	"chatdesk/internal/models"

	"go.uber.org/zap"
)

// ===========================================================================
// Article Matcher
// Scores knowledge articles against free text by keyword hits
// Best match first: score, then helpful ratio, then title
// ===========================================================================

// ArticleMatch a scored article
type ArticleMatch struct {
	// Article matched article
	Article models.KnowledgeArticle

	// Score keyword hits, title hit counts one
	Score int

	// Confidence score relative to the best possible score (0-1)
	Confidence float64
}

// Matcher interface for article matching
type Matcher interface {
	// Match returns at most limit articles with a positive score
	Match(ctx context.Context, articles []models.KnowledgeArticle, content string, limit int) []ArticleMatch
}

type matcher struct {
	logger *zap.Logger
}

// NewMatcher creates a Matcher
func NewMatcher(logger *zap.Logger) Matcher {
	return &matcher{logger: logger}
}

func (m *matcher) Match(ctx context.Context, articles []models.KnowledgeArticle, content string, limit int) []ArticleMatch {
	matches := make([]ArticleMatch, 0)
	for _, article := range articles {
		score := article.MatchScore(content)
		if score == 0 {
			continue
		}
		matches = append(matches, ArticleMatch{
			Article:    article,
			Score:      score,
			Confidence: float64(score) / float64(len(article.Keywords)+1),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ra, rb := a.Article.HelpfulRatio(), b.Article.HelpfulRatio(); ra != rb {
			return ra > rb
		}
		return a.Article.Title < b.Article.Title
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	if len(matches) > 0 {
		m.logger.Debug("knowledge articles matched",
			zap.Int("matches", len(matches)),
			zap.String("best", matches[0].Article.Title),
			zap.Int("best_score", matches[0].Score),
		)
	}
	return matches
}
