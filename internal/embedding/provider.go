package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of texts sent to the embedder per call.
const DefaultBatchSize = 32

// Provider wraps an Embedder with batching, output validation, and error classification.
// Every failure it returns is a *models.EmbeddingUnavailableError.
type Provider struct {
	embedder  Embedder
	batchSize int
	logger    *zap.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithBatchSize sets how many texts go into a single EmbedBatch call.
func WithBatchSize(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) ProviderOption {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProvider returns a Provider over e.
func NewProvider(e Embedder, opts ...ProviderOption) *Provider {
	p := &Provider{embedder: e, batchSize: DefaultBatchSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed returns one vector per text, in input order. All vectors share one length.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.embedder == nil {
		return nil, &models.EmbeddingUnavailableError{Err: fmt.Errorf("no embedder configured")}
	}
	out := make([][]float32, 0, len(texts))
	dim := 0
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := p.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, &models.EmbeddingUnavailableError{Err: err}
		}
		if len(vecs) != end-start {
			return nil, &models.EmbeddingUnavailableError{
				Err: fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), end-start),
			}
		}
		for _, v := range vecs {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) == 0 || len(v) != dim {
				return nil, &models.EmbeddingUnavailableError{
					Err: &models.DimensionMismatchError{Expected: dim, Got: len(v)},
				}
			}
			out = append(out, v)
		}
		p.logger.Debug("embedded batch",
			zap.Int("from", start),
			zap.Int("to", end),
			zap.Int("total", len(texts)))
	}
	return out, nil
}

// EmbedOne returns the vector for a single text.
func (p *Provider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimensions reports the backing embedder's declared dimension.
func (p *Provider) Dimensions() int {
	if p.embedder == nil {
		return 0
	}
	return p.embedder.Dimensions()
}

// Close closes the backing embedder.
func (p *Provider) Close() error {
	if p.embedder == nil {
		return nil
	}
	return p.embedder.Close()
}
