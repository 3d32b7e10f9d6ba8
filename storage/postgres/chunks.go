package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// ChunkRepository implements storage.ChunkRepository on the document_chunks table.
type ChunkRepository struct {
	pool *pgxpool.Pool
	dims int
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// ReplaceChunks deletes and reinserts the job's chunks in one transaction.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, jobID string, chunks []*core.Chunk) error {
	if err := core.ValidateChunkSet(chunks, r.dims); err != nil {
		return err
	}
	if len(chunks) > 0 && chunks[0].JobID != jobID {
		return core.ErrInvalidChunk
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var exists int
		err := tx.QueryRow(ctx, `SELECT 1 FROM documents WHERE id = $1 FOR UPDATE`, jobID).Scan(&exists)
		if err != nil {
			return translateError(err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, jobID); err != nil {
			return translateError(err)
		}
		if len(chunks) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, chunk := range chunks {
			batch.Queue(`INSERT INTO document_chunks
				(document_id, user_id, chunk_index, chunk_text, embedding, token_count)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				chunk.JobID, chunk.OwnerID, chunk.Index, chunk.Text,
				vectorArg(chunk.Embedding), chunk.TokenCount)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting chunks: %w", translateError(err))
		}
		return nil
	})
}

func (r *ChunkRepository) GetChunks(ctx context.Context, jobID string) ([]*core.Chunk, error) {
	rows, err := r.pool.Query(ctx, `SELECT document_id, user_id, chunk_index, chunk_text, embedding, token_count
		FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index`, jobID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var chunks []*core.Chunk
	for rows.Next() {
		var (
			chunk core.Chunk
			vec   *pgvector.Vector
		)
		if err := rows.Scan(&chunk.JobID, &chunk.OwnerID, &chunk.Index, &chunk.Text, &vec, &chunk.TokenCount); err != nil {
			return nil, err
		}
		if vec != nil {
			chunk.Embedding = vec.Slice()
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, translateError(rows.Err())
}

func (r *ChunkRepository) CountChunks(ctx context.Context, jobID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks WHERE document_id = $1`, jobID).Scan(&count)
	return count, translateError(err)
}

// FindSimilar orders by cosine distance so the HNSW index serves the scan.
// Score is 1 - distance.
func (r *ChunkRepository) FindSimilar(ctx context.Context, query storage.SimilarityQuery) ([]*core.ScoredChunk, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if len(query.Vector) != r.dims {
		return nil, core.ErrDimensionMismatch
	}

	sql := `SELECT c.document_id, c.user_id, c.chunk_index, c.chunk_text, c.embedding, c.token_count,
			d.filename, 1 - (c.embedding <=> $1) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.user_id = $2 AND c.embedding IS NOT NULL`
	args := []any{pgvector.NewVector(query.Vector), query.OwnerID}
	if query.JobID != "" {
		args = append(args, query.JobID)
		sql += fmt.Sprintf(" AND c.document_id = $%d", len(args))
	}
	args = append(args, query.Limit)
	sql += fmt.Sprintf(" ORDER BY c.embedding <=> $1, c.document_id, c.chunk_index LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	results := []*core.ScoredChunk{}
	for rows.Next() {
		var (
			chunk      core.Chunk
			vec        pgvector.Vector
			filename   string
			similarity float64
		)
		if err := rows.Scan(&chunk.JobID, &chunk.OwnerID, &chunk.Index, &chunk.Text, &vec,
			&chunk.TokenCount, &filename, &similarity); err != nil {
			return nil, err
		}
		chunk.Embedding = vec.Slice()
		results = append(results, &core.ScoredChunk{
			Chunk:    &chunk,
			Filename: filename,
			Score:    float32(similarity),
		})
	}
	return results, translateError(rows.Err())
}

func vectorArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}
