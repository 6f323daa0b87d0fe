package bot

import (
	"context"

	"chatdesk/internal/repositories"

	"go.uber.org/zap"
)

// ===========================================================================
// Bot Responder
// Orchestrates Matcher and ResponseBuilder over the knowledge base
// ===========================================================================

// Suggestion result of processing a visitor message
type Suggestion struct {
	// Matches best articles, may be empty
	Matches []ArticleMatch

	// Reply SYSTEM message body, "" when there are no matches
	Reply string
}

// Responder suggests knowledge articles for visitor messages
type Responder interface {
	Suggest(ctx context.Context, content string, limit int) (*Suggestion, error)
}

type responder struct {
	knowledgeRepo   repositories.KnowledgeRepository
	matcher         Matcher
	responseBuilder ResponseBuilder
	logger          *zap.Logger
}

// NewResponder creates a Responder
func NewResponder(
	knowledgeRepo repositories.KnowledgeRepository,
	matcher Matcher,
	responseBuilder ResponseBuilder,
	logger *zap.Logger,
) Responder {
	return &responder{
		knowledgeRepo:   knowledgeRepo,
		matcher:         matcher,
		responseBuilder: responseBuilder,
		logger:          logger,
	}
}

// Suggest matches content against every article
func (r *responder) Suggest(ctx context.Context, content string, limit int) (*Suggestion, error) {
	if limit <= 0 {
		return &Suggestion{}, nil
	}

	articles, err := r.knowledgeRepo.List(ctx, "")
	if err != nil {
		return nil, err
	}

	matches := r.matcher.Match(ctx, articles, content, limit)
	return &Suggestion{
		Matches: matches,
		Reply:   r.responseBuilder.BuildSuggestion(matches),
	}, nil
}
