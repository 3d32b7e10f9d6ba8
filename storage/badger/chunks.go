package badger

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
// Similarity search is a brute-force scan; it is meant for development
// and tests, not for large corpora.
type ChunkRepository struct {
	backend *Backend
	dims    int
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository. When dims is positive
// every stored embedding must have exactly that many elements.
func NewChunkRepository(backend *Backend, dims int) *ChunkRepository {
	return &ChunkRepository{backend: backend, dims: dims}
}

// ReplaceChunks swaps the job's chunk set in a single transaction.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, jobID string, chunks []*core.Chunk) error {
	if err := core.ValidateChunkSet(chunks, r.dims); err != nil {
		return err
	}
	if len(chunks) > 0 && chunks[0].JobID != jobID {
		return core.ErrInvalidChunk
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := readJob(tx, jobID); err != nil {
			return err
		}
		if err := deleteChunks(tx, jobID); err != nil {
			return err
		}
		for _, chunk := range chunks {
			value, err := storage.MarshalChunk(chunk)
			if err != nil {
				return err
			}
			if err := tx.Set(makeChunkKey(jobID, chunk.Index), value); err != nil {
				return err
			}
		}
		return nil
	}, true)
}

// GetChunks returns the job's chunks in index order.
func (r *ChunkRepository) GetChunks(ctx context.Context, jobID string) ([]*core.Chunk, error) {
	if err := core.ValidateJobID(jobID); err != nil {
		return nil, err
	}
	var chunks []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(jobID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			chunks = append(chunks, chunk)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// CountChunks counts chunk keys without reading values.
func (r *ChunkRepository) CountChunks(ctx context.Context, jobID string) (int, error) {
	if err := core.ValidateJobID(jobID); err != nil {
		return 0, err
	}
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(jobID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// FindSimilar scans the owner's chunks and ranks them by cosine similarity.
func (r *ChunkRepository) FindSimilar(ctx context.Context, query storage.SimilarityQuery) ([]*core.ScoredChunk, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if r.dims > 0 && len(query.Vector) != r.dims {
		return nil, core.ErrDimensionMismatch
	}

	results := []*core.ScoredChunk{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(chunkPrefix)
		if query.JobID != "" {
			prefix = makeChunkPrefix(query.JobID)
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		filenames := make(map[string]string)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}

			// Tenant boundary
			if chunk.OwnerID != query.OwnerID {
				continue
			}
			if len(chunk.Embedding) == 0 {
				continue
			}

			filename, ok := filenames[chunk.JobID]
			if !ok {
				job, err := readJob(tx, chunk.JobID)
				if err != nil && !errors.Is(err, storage.ErrNotFound) {
					return err
				}
				if job != nil {
					filename = job.Filename
				}
				filenames[chunk.JobID] = filename
			}

			results = append(results, &core.ScoredChunk{
				Chunk:    chunk,
				Filename: filename,
				Score:    cosineSimilarity(query.Vector, chunk.Embedding),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending; ties fall back to job and index for a
	// deterministic order within one call.
	slices.SortStableFunc(results, func(a, b *core.ScoredChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		if c := strings.Compare(a.Chunk.JobID, b.Chunk.JobID); c != 0 {
			return c
		}
		return a.Chunk.Index - b.Chunk.Index
	})

	if len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

// deleteChunks removes every chunk of a job within tx.
func deleteChunks(tx *badger.Txn, jobID string) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeChunkPrefix(jobID)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// cosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different length or zero magnitude score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
