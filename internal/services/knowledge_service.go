package services

import (
	"context"
	"strings"

	"chatdesk/internal/bot"
	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"
	"chatdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Knowledge Base
// Counters only move through Increment. The one exception is the admin
// correction in Update, which may set them to any non negative value
// ===========================================================================

// ArticleInput create payload
type ArticleInput struct {
	Title    string
	Content  string
	Keywords []string
	Category string
}

// ArticlePatch update payload, nil fields are left alone
type ArticlePatch struct {
	Title    *string
	Content  *string
	Keywords *[]string
	Category *string

	// counter correction
	Views      *int64
	Helpful    *int64
	NotHelpful *int64
}

// KnowledgeService knowledge base operations
type KnowledgeService interface {
	List(ctx context.Context, category string) ([]models.KnowledgeArticle, error)

	// View returns the article and counts one view
	View(ctx context.Context, id uuid.UUID) (*models.KnowledgeArticle, error)

	// Search best matching articles for free text
	Search(ctx context.Context, query string, limit int) ([]bot.ArticleMatch, error)

	// Feedback counts a helpful or not helpful vote
	Feedback(ctx context.Context, id uuid.UUID, helpful bool) (*models.KnowledgeArticle, error)

	Create(ctx context.Context, in ArticleInput) (*models.KnowledgeArticle, error)
	Update(ctx context.Context, id uuid.UUID, patch ArticlePatch) (*models.KnowledgeArticle, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type knowledgeService struct {
	repo      repositories.KnowledgeRepository
	responder bot.Responder
	logger    *zap.Logger
}

// NewKnowledgeService creates a KnowledgeService
func NewKnowledgeService(repo repositories.KnowledgeRepository, responder bot.Responder, logger *zap.Logger) KnowledgeService {
	return &knowledgeService{repo: repo, responder: responder, logger: logger}
}

func (s *knowledgeService) List(ctx context.Context, category string) ([]models.KnowledgeArticle, error) {
	return s.repo.List(ctx, strings.TrimSpace(category))
}

func (s *knowledgeService) View(ctx context.Context, id uuid.UUID) (*models.KnowledgeArticle, error) {
	if err := s.repo.Increment(ctx, id, repositories.CounterViews); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *knowledgeService) Search(ctx context.Context, query string, limit int) ([]bot.ArticleMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "query is required")
	}
	suggestion, err := s.responder.Suggest(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if suggestion.Matches == nil {
		return []bot.ArticleMatch{}, nil
	}
	return suggestion.Matches, nil
}

func (s *knowledgeService) Feedback(ctx context.Context, id uuid.UUID, helpful bool) (*models.KnowledgeArticle, error) {
	counter := repositories.CounterNotHelpful
	if helpful {
		counter = repositories.CounterHelpful
	}
	if err := s.repo.Increment(ctx, id, counter); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *knowledgeService) Create(ctx context.Context, in ArticleInput) (*models.KnowledgeArticle, error) {
	article := &models.KnowledgeArticle{
		Title:    strings.TrimSpace(in.Title),
		Content:  strings.TrimSpace(in.Content),
		Keywords: models.NewKeywords(in.Keywords),
		Category: strings.TrimSpace(in.Category),
	}
	if err := validateArticle(article); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, article); err != nil {
		return nil, err
	}
	s.logger.Info("knowledge article created",
		zap.String("article_id", article.ID.String()),
		zap.Int("keywords", len(article.Keywords)),
	)
	return article, nil
}

func (s *knowledgeService) Update(ctx context.Context, id uuid.UUID, patch ArticlePatch) (*models.KnowledgeArticle, error) {
	article, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		article.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		article.Content = strings.TrimSpace(*patch.Content)
	}
	if patch.Keywords != nil {
		article.Keywords = models.NewKeywords(*patch.Keywords)
	}
	if patch.Category != nil {
		article.Category = strings.TrimSpace(*patch.Category)
	}

	corrected := false
	for _, c := range []struct {
		value *int64
		field *int64
	}{
		{patch.Views, &article.Views},
		{patch.Helpful, &article.Helpful},
		{patch.NotHelpful, &article.NotHelpful},
	} {
		if c.value == nil {
			continue
		}
		if *c.value < 0 {
			return nil, apperrors.New(apperrors.ErrValidation, "counters must not be negative")
		}
		*c.field = *c.value
		corrected = true
	}

	if err := validateArticle(article); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, article); err != nil {
		return nil, err
	}

	if corrected {
		s.logger.Warn("knowledge counters corrected",
			zap.String("article_id", article.ID.String()),
			zap.Int64("views", article.Views),
			zap.Int64("helpful", article.Helpful),
			zap.Int64("not_helpful", article.NotHelpful),
		)
	}
	return article, nil
}

func (s *knowledgeService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func validateArticle(a *models.KnowledgeArticle) error {
	if a.Title == "" || a.Content == "" {
		return apperrors.New(apperrors.ErrValidation, "title and content are required")
	}
	return nil
}
