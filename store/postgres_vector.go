package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evalgo/jirasync/chunk"
)

// chunkRow is the gorm-mapped row backing VectorStorePostgres. Embedding
// is stored as a JSON float array rather than a native vector column so
// this adapter has no dependency on a Postgres vector extension; it is a
// reference implementation, not the performance-sensitive path a large
// deployment would want.
type chunkRow struct {
	ChunkID   string `gorm:"column:chunk_id;primaryKey"`
	Text      string `gorm:"column:text"`
	Metadata  string `gorm:"column:metadata"` // JSON-encoded chunk.Chunk minus Text
	Embedding string `gorm:"column:embedding"`
}

func (chunkRow) TableName() string { return "jira_chunks" }

// VectorStorePostgres is a reference VectorStore adapter: embeddings and
// metadata live in JSONB-equivalent text columns, and Query ranks by
// naive cosine similarity computed in Go rather than in the database.
// It exists so the sync pipeline and the agent's search tools have a
// real, runnable backend in tests and small deployments; a production
// deployment synced against a high issue volume should plug in a
// dedicated vector database behind the same VectorStore interface.
type VectorStorePostgres struct {
	db       *gorm.DB
	embedder Embedder
}

func NewVectorStorePostgres(db *gorm.DB, embedder Embedder) *VectorStorePostgres {
	return &VectorStorePostgres{db: db, embedder: embedder}
}

// MigrateChunkTable creates or updates the jira_chunks table.
func MigrateChunkTable(db *gorm.DB) error {
	return db.AutoMigrate(&chunkRow{})
}

func (s *VectorStorePostgres) Upsert(ctx context.Context, chunks []chunk.Chunk) error {
	rows := make([]chunkRow, 0, len(chunks))
	for _, c := range chunks {
		vec, err := s.embedder.Embed(ctx, c.Text)
		if err != nil {
			return fmt.Errorf("embedding chunk %s: %w", c.ChunkID, err)
		}

		metaBytes, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshaling chunk %s metadata: %w", c.ChunkID, err)
		}
		vecBytes, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("marshaling chunk %s embedding: %w", c.ChunkID, err)
		}

		rows = append(rows, chunkRow{
			ChunkID:   c.ChunkID,
			Text:      c.Text,
			Metadata:  string(metaBytes),
			Embedding: string(vecBytes),
		})
	}
	if len(rows) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chunk_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "metadata", "embedding"}),
	}).Create(&rows).Error
}

func (s *VectorStorePostgres) Query(ctx context.Context, text string, k int) ([]chunk.Chunk, error) {
	queryVec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var rows []chunkRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}

	type scored struct {
		c     chunk.Chunk
		score float64
	}
	scoredRows := make([]scored, 0, len(rows))
	for _, row := range rows {
		var vec []float32
		if err := json.Unmarshal([]byte(row.Embedding), &vec); err != nil {
			continue
		}
		var c chunk.Chunk
		if err := json.Unmarshal([]byte(row.Metadata), &c); err != nil {
			continue
		}
		scoredRows = append(scoredRows, scored{c: c, score: cosineSimilarity(queryVec, vec)})
	}

	sort.Slice(scoredRows, func(i, j int) bool { return scoredRows[i].score > scoredRows[j].score })

	if k > len(scoredRows) {
		k = len(scoredRows)
	}
	result := make([]chunk.Chunk, k)
	for i := 0; i < k; i++ {
		result[i] = scoredRows[i].c
	}
	return result, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
