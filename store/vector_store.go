package store

import (
	"context"

	"github.com/evalgo/jirasync/chunk"
)

// VectorStore is the external-collaborator contract the sync coordinator
// upserts chunks into. The agent's tools do not query it; they search
// Jira through cache.RequestCache. Only
// the contract is owned here; a production deployment is expected to
// plug in its own embedding-backed implementation. VectorStorePostgres
// below is a reference adapter for local development and tests, not a
// production embedding index.
type VectorStore interface {
	// Upsert writes chunks keyed by ChunkID, idempotently: re-upserting
	// the same chunk id replaces its prior content.
	Upsert(ctx context.Context, chunks []chunk.Chunk) error
	// Query returns the k chunks most relevant to text. The reference
	// adapter below uses embedding similarity; a production adapter might
	// instead call out to a managed vector database.
	Query(ctx context.Context, text string, k int) ([]chunk.Chunk, error)
}

// Embedder produces a fixed-size vector for a chunk of text. It is
// satisfied by whatever embedding model the deployment is configured
// with; VectorStorePostgres depends on it rather than embedding anything
// itself.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
