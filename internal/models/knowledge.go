package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// ===========================================================================
// KnowledgeArticle
// Keyworded help article surfaced to visitors and agents
// Counters only go up, except for an explicit admin correction
// ===========================================================================

// Keywords normalized keyword set, stored as JSONB
type Keywords []string

// NewKeywords lowercases, trims and deduplicates keywords
func NewKeywords(raw []string) Keywords {
	seen := make(map[string]struct{}, len(raw))
	out := make(Keywords, 0, len(raw))
	for _, k := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Value implements driver.Valuer for JSONB
func (k Keywords) Value() (driver.Value, error) {
	if k == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(k))
}

// Scan implements sql.Scanner for JSONB
func (k *Keywords) Scan(value interface{}) error {
	if value == nil {
		*k = Keywords{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(raw, (*[]string)(k))
}

// KnowledgeArticle a help article
type KnowledgeArticle struct {
	BaseModel

	// Title article title
	Title string `gorm:"size:255;not null" json:"title"`

	// Content article body
	Content string `gorm:"type:text;not null" json:"content"`

	// Keywords lowercase keyword set
	Keywords Keywords `gorm:"type:jsonb;not null;default:'[]'" json:"keywords"`

	// Category free form grouping
	Category string `gorm:"size:100;index" json:"category"`

	// Views times the article was opened
	Views int64 `gorm:"not null;default:0" json:"views"`

	// Helpful positive feedback count
	Helpful int64 `gorm:"not null;default:0" json:"helpful"`

	// NotHelpful negative feedback count
	NotHelpful int64 `gorm:"not null;default:0" json:"not_helpful"`
}

// TableName table name
func (KnowledgeArticle) TableName() string {
	return "chat_knowledge_articles"
}

// MatchScore number of keywords contained in content, plus one when the
// title itself appears
func (a *KnowledgeArticle) MatchScore(content string) int {
	contentLower := strings.ToLower(content)
	if strings.TrimSpace(contentLower) == "" {
		return 0
	}

	score := 0
	for _, keyword := range a.Keywords {
		if strings.Contains(contentLower, keyword) {
			score++
		}
	}
	if title := strings.ToLower(a.Title); title != "" && strings.Contains(contentLower, title) {
		score++
	}
	return score
}

// HelpfulRatio share of positive feedback, 0 without feedback
func (a *KnowledgeArticle) HelpfulRatio() float64 {
	total := a.Helpful + a.NotHelpful
	if total == 0 {
		return 0
	}
	return float64(a.Helpful) / float64(total)
}
