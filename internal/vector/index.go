// Package vector provides the chunk similarity index.
package vector

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// VectorIndex stores chunk embeddings and answers nearest-neighbour queries.
type VectorIndex interface {
	// Build replaces the index contents. On error the previous contents are kept.
	Build(ctx context.Context, entries []models.IndexEntry) error
	// Search returns up to k chunks ordered by descending cosine similarity.
	Search(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error)
	Ready() bool
	Size() int
	Dimensions() int
	Close() error
}
