package vector

import (
	"context"
	"sort"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// MemoryIndex is an in-memory vector index using brute-force inner product search
// over L2-normalised vectors.
type MemoryIndex struct {
	mu         sync.RWMutex
	dimensions int
	built      bool
	chunks     []models.Chunk
	vectors    [][]float32
}

// NewMemoryIndex creates an empty index. A positive dimensions value pins the
// vector length; zero lets the first non-empty Build decide it.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions < 0 {
		return nil, models.NewConfigurationError("dimensions must not be negative, got %d", dimensions)
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// Build validates every entry, then swaps in the new contents.
func (m *MemoryIndex) Build(ctx context.Context, entries []models.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	dim := m.dimensions
	m.mu.RUnlock()
	if dim == 0 && len(entries) > 0 {
		dim = len(entries[0].Vector)
	}
	chunks := make([]models.Chunk, len(entries))
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		if len(e.Vector) != dim || dim == 0 {
			return &models.DimensionMismatchError{Expected: dim, Got: len(e.Vector)}
		}
		vec := make([]float32, dim)
		copy(vec, e.Vector)
		utils.NormalizeL2(vec)
		chunks[i] = e.Chunk
		vectors[i] = vec
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dimensions != 0 && dim != 0 && dim != m.dimensions {
		return &models.DimensionMismatchError{Expected: m.dimensions, Got: dim}
	}
	if dim != 0 {
		m.dimensions = dim
	}
	m.chunks = chunks
	m.vectors = vectors
	m.built = true
	return nil
}

// Search ranks stored chunks by cosine similarity to query. Equal scores keep insertion order.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.built {
		return nil, models.ErrIndexNotReady
	}
	if len(m.vectors) == 0 || k <= 0 {
		return []models.ScoredChunk{}, nil
	}
	if len(query) != m.dimensions {
		return nil, &models.DimensionMismatchError{Expected: m.dimensions, Got: len(query)}
	}
	q := make([]float32, len(query))
	copy(q, query)
	utils.NormalizeL2(q)

	scores := make([]models.ScoredChunk, len(m.vectors))
	for i, vec := range m.vectors {
		scores[i] = models.ScoredChunk{Chunk: m.chunks[i], Score: InnerProduct(q, vec)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Ready reports whether Build has succeeded at least once.
func (m *MemoryIndex) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.built
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Dimensions returns the vector length, or zero before it is known.
func (m *MemoryIndex) Dimensions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimensions
}

// Close releases the stored vectors.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	m.vectors = nil
	m.built = false
	return nil
}
