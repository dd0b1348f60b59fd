// Package embedding decorates an embedding provider with rate limiting,
// request chunking and logging.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semwalk/internal/domain"
)

// DefaultMaxAPIBatchSize is the largest number of texts sent in one API request.
const DefaultMaxAPIBatchSize = 256

// Limiter gates upstream API calls.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// InstrumentedEmbedder wraps Embedder with rate limiting and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner     domain.Embedder
	provider  string
	model     string
	limiter   Limiter
	batchSize int
	logger    *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. limiter may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	limiter Limiter, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:     inner,
		provider:  provider,
		model:     model,
		limiter:   limiter,
		batchSize: DefaultMaxAPIBatchSize,
		logger:    logger,
	}
}

// WithBatchSize overrides the per-request chunk size.
func (p *InstrumentedEmbedder) WithBatchSize(n int) *InstrumentedEmbedder {
	if n > 0 {
		p.batchSize = n
	}
	return p
}

// Embed acquires a rate token and delegates to the inner embedder.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	if err := p.acquire(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed splits texts into API-sized chunks and delegates each to inner.
func (p *InstrumentedEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()

	result, err := p.embedChunked(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports it.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (p *InstrumentedEmbedder) embedChunked(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	var allEmbeddings []domain.Embedding
	var totalPrompt, totalTokens int

	for offset := 0; offset < len(texts); offset += p.batchSize {
		end := min(offset+p.batchSize, len(texts))
		chunk := texts[offset:end]

		if err := p.acquire(ctx, len(chunk)); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("chunk %d: %w", offset, err)
		}

		chunkResult, err := domain.EmbedBatch(ctx, p.inner, chunk)
		if err != nil {
			p.logger.Error("Batch embedding request failed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}

		allEmbeddings = append(allEmbeddings, chunkResult.Embeddings...)
		totalPrompt += chunkResult.PromptTokens
		totalTokens += chunkResult.TotalTokens
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   allEmbeddings,
		PromptTokens: totalPrompt,
		TotalTokens:  totalTokens,
	}, nil
}

func (p *InstrumentedEmbedder) acquire(ctx context.Context, texts int) error {
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Acquire(ctx); err != nil {
		p.logger.Warn("Embedding request throttled",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Int("texts", texts),
			zap.Error(err),
		)
		return err
	}
	return nil
}
