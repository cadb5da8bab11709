package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateGINIndexes creates full-text search GIN indexes that the
// knowledge_query and task_search capabilities' handlers query against.
// golang-migrate's versioned .sql files own the schema; these indexes are
// created separately because to_tsvector expressions are awkward to express
// as plain column DDL and don't need a down-migration to be reversible.
func CreateGINIndexes(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_messages_body_gin
		ON messages USING gin(to_tsvector('english', body))`); err != nil {
		return fmt.Errorf("failed to create messages body GIN index: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_ceo_teachings_statement_gin
		ON ceo_teachings USING gin(to_tsvector('english', statement || ' ' || reasoning))`); err != nil {
		return fmt.Errorf("failed to create ceo_teachings statement GIN index: %w", err)
	}

	return nil
}
