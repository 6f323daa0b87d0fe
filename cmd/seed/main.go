// ===========================================================================
// Seed data for development
// Run: go run ./cmd/seed -file configs/seed.yaml
// ===========================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"chatdesk/internal/auth"
	"chatdesk/internal/bot"
	"chatdesk/internal/config"
	"chatdesk/internal/database"
	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"
	"chatdesk/internal/repositories"
	"chatdesk/internal/services"
	"chatdesk/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SeedFile layout of configs/seed.yaml
type SeedFile struct {
	Departments []SeedDepartment `yaml:"departments"`
	Articles    []SeedArticle    `yaml:"articles"`
	Tokens      []SeedToken      `yaml:"tokens"`
}

type SeedDepartment struct {
	Name         string      `yaml:"name"`
	Slug         string      `yaml:"slug"`
	Description  string      `yaml:"description"`
	ContactEmail string      `yaml:"contact_email"`
	SortOrder    int         `yaml:"sort_order"`
	Inactive     bool        `yaml:"inactive"`
	Agents       []SeedAgent `yaml:"agents"`
}

type SeedAgent struct {
	Name           string `yaml:"name"`
	Email          string `yaml:"email"`
	MaxActiveChats int    `yaml:"max_active_chats"`
}

type SeedArticle struct {
	Title    string   `yaml:"title"`
	Content  string   `yaml:"content"`
	Keywords []string `yaml:"keywords"`
	Category string   `yaml:"category"`
}

// SeedToken development token printed after seeding
type SeedToken struct {
	ID   string    `yaml:"id"`
	Name string    `yaml:"name"`
	Role auth.Role `yaml:"role"`
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "config file")
	seedPath := flag.String("file", "configs/seed.yaml", "seed file")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of printed tokens")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zapLog, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer zapLog.Sync()

	seed, err := readSeed(*seedPath)
	if err != nil {
		zapLog.Fatal("failed to read seed file", zap.String("path", *seedPath), zap.Error(err))
	}

	if cfg.Database.Driver == config.DriverMemory {
		zapLog.Warn("memory storage selected, only printing tokens")
		printTokens(cfg, seed.Tokens, *tokenTTL)
		return
	}

	db, err := database.NewConnection(&cfg.Database, zapLog)
	if err != nil {
		zapLog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		zapLog.Fatal("auto migrate failed", zap.Error(err))
	}

	repos := repositories.NewGormRepositories(db)
	responder := bot.NewResponder(repos.Knowledge, bot.NewMatcher(zapLog), bot.NewResponseBuilder(""), zapLog)
	departments := services.NewDepartmentService(repos, nil, zapLog)
	agents := services.NewAgentService(repos, zapLog)
	knowledge := services.NewKnowledgeService(repos.Knowledge, responder, zapLog)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// =========================================================================
	// 1. Departments and their agents
	// =========================================================================
	for _, d := range seed.Departments {
		dept, err := departments.Create(ctx, services.DepartmentInput{
			Name:         d.Name,
			Slug:         d.Slug,
			Description:  d.Description,
			ContactEmail: d.ContactEmail,
			IsActive:     !d.Inactive,
			SortOrder:    d.SortOrder,
		})
		if apperrors.Is(err, apperrors.ErrDuplicateSlug) {
			dept, err = repos.Departments.FindBySlug(ctx, d.Slug)
			fmt.Printf("department %q exists, reusing\n", d.Slug)
		} else if err == nil {
			fmt.Printf("created department %s (%s)\n", dept.Slug, dept.ID)
		}
		if err != nil {
			zapLog.Fatal("failed to seed department", zap.String("slug", d.Slug), zap.Error(err))
		}

		for _, a := range d.Agents {
			deptID := dept.ID
			agent, err := agents.Create(ctx, services.AgentInput{
				DepartmentID:   &deptID,
				Name:           a.Name,
				Email:          a.Email,
				IsActive:       true,
				MaxActiveChats: a.MaxActiveChats,
			})
			switch {
			case apperrors.Is(err, apperrors.ErrConflict):
				fmt.Printf("agent %s exists\n", a.Email)
			case err != nil:
				zapLog.Fatal("failed to seed agent", zap.String("email", a.Email), zap.Error(err))
			default:
				fmt.Printf("created agent %s (%s)\n", agent.Email, agent.ID)
			}
		}
	}

	// =========================================================================
	// 2. Knowledge base, titles are unique within a category
	// =========================================================================
	existing, err := knowledge.List(ctx, "")
	if err != nil {
		zapLog.Fatal("failed to list articles", zap.Error(err))
	}
	for _, a := range seed.Articles {
		if hasArticle(existing, a.Title, a.Category) {
			fmt.Printf("article %q exists\n", a.Title)
			continue
		}
		article, err := knowledge.Create(ctx, services.ArticleInput{
			Title:    a.Title,
			Content:  a.Content,
			Keywords: a.Keywords,
			Category: a.Category,
		})
		if err != nil {
			zapLog.Fatal("failed to seed article", zap.String("title", a.Title), zap.Error(err))
		}
		fmt.Printf("created article %q (%s)\n", article.Title, article.ID)
	}

	fmt.Println()
	printTokens(cfg, seed.Tokens, *tokenTTL)
}

func readSeed(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &seed, nil
}

func hasArticle(articles []models.KnowledgeArticle, title, category string) bool {
	for i := range articles {
		if articles[i].Title == title && articles[i].Category == category {
			return true
		}
	}
	return false
}

// printTokens issues bearer tokens for local testing
func printTokens(cfg *config.Config, tokens []SeedToken, ttl time.Duration) {
	jwtService := auth.NewJWTService(cfg.JWT)
	for _, t := range tokens {
		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		token, err := jwtService.GenerateToken(auth.Principal{ID: id, Name: t.Name, Role: t.Role}, ttl)
		if err != nil {
			log.Fatalf("generate token for %s: %v", t.Name, err)
		}
		fmt.Printf("%s (%s):\n  %s\n", t.Name, t.Role, token)
	}
}
