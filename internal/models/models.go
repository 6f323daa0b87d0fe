package models

// AllModels models migrated by database.AutoMigrate
func AllModels() []interface{} {
	return []interface{}{
		&Department{},
		&Agent{},
		&ChatSession{},
		&Message{},
		&KnowledgeArticle{},
	}
}
