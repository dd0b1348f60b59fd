// Package corpus manages corpora and ingests texts into them.
package corpus

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semwalk/internal/domain"
	"github.com/kailas-cloud/semwalk/internal/logger"
)

// DefaultBatchSize is how many texts are embedded and stored per round trip.
const DefaultBatchSize = 100

// MaxPageSize bounds one Documents page.
const MaxPageSize = 1000

// IngestResult reports what Ingest stored.
type IngestResult struct {
	FirstID     int64
	Added       int
	TotalTokens int
}

// Service handles corpus CRUD and ingestion.
type Service struct {
	manager   Manager
	embedder  domain.Embedder
	vectorDim int
	batchSize int
	logger    *zap.Logger
}

// New creates a corpus service. vectorDim is used when Create gets no dimension.
func New(m Manager, embedder domain.Embedder, vectorDim, batchSize int, logger *zap.Logger) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		manager:   m,
		embedder:  embedder,
		vectorDim: vectorDim,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Create validates the name and creates an empty corpus. dim <= 0 uses the
// configured embedding dimension.
func (s *Service) Create(ctx context.Context, name string, dim int) error {
	if !domain.IsValidCorpusName(name) {
		return fmt.Errorf("corpus name %q: %w", name, domain.ErrInvalidInput)
	}
	if dim <= 0 {
		dim = s.vectorDim
	}
	if dim <= 0 {
		return fmt.Errorf("corpus dimension must be positive: %w", domain.ErrInvalidInput)
	}
	if err := s.manager.Create(ctx, name, dim); err != nil {
		return fmt.Errorf("create corpus: %w", err)
	}
	return nil
}

// Drop removes a corpus with all its documents.
func (s *Service) Drop(ctx context.Context, name string) error {
	if err := s.manager.Drop(ctx, name); err != nil {
		return fmt.Errorf("drop corpus: %w", err)
	}
	return nil
}

// List returns all corpus names.
func (s *Service) List(ctx context.Context) ([]string, error) {
	names, err := s.manager.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list corpora: %w", err)
	}
	return names, nil
}

// Count returns the number of documents in a corpus.
func (s *Service) Count(ctx context.Context, name string) (int, error) {
	n, err := s.manager.Count(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("count corpus: %w", err)
	}
	return n, nil
}

// Info returns the corpus dimension and document count.
func (s *Service) Info(ctx context.Context, name string) (domain.CorpusInfo, error) {
	dim, err := s.manager.Dimension(ctx, name)
	if err != nil {
		return domain.CorpusInfo{}, fmt.Errorf("corpus info: %w", err)
	}
	n, err := s.manager.Count(ctx, name)
	if err != nil {
		return domain.CorpusInfo{}, fmt.Errorf("corpus info: %w", err)
	}
	return domain.CorpusInfo{Name: name, Dimension: dim, Count: n}, nil
}

// Documents returns one page of stored documents in id order.
func (s *Service) Documents(ctx context.Context, name string, offset, limit int) ([]domain.StoredDocument, error) {
	if offset < 0 {
		return nil, fmt.Errorf("offset must not be negative: %w", domain.ErrInvalidInput)
	}
	if limit < 1 || limit > MaxPageSize {
		return nil, fmt.Errorf("limit must be between 1 and %d: %w", MaxPageSize, domain.ErrInvalidInput)
	}
	docs, err := s.manager.Documents(ctx, name, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Embed vectorizes texts in batches without storing them. It backs table
// file export.
func (s *Service) Embed(ctx context.Context, texts []string) ([]domain.Document, int, error) {
	if err := s.checkTexts(texts); err != nil {
		return nil, 0, err
	}
	docs := make([]domain.Document, 0, len(texts))
	tokens := 0
	for offset := 0; offset < len(texts); offset += s.batchSize {
		batch, n, err := s.embedBatch(ctx, texts, offset)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, batch...)
		tokens += n
	}
	return docs, tokens, nil
}

// Ingest embeds texts in batches and appends them to the corpus. Embeddings
// must match the corpus dimension. Batches stored before a failure stay
// stored; the result reports them.
func (s *Service) Ingest(ctx context.Context, name string, texts []string) (IngestResult, error) {
	var res IngestResult
	if len(texts) == 0 {
		return res, nil
	}
	if err := s.checkTexts(texts); err != nil {
		return res, err
	}
	dim, err := s.manager.Dimension(ctx, name)
	if err != nil {
		return res, fmt.Errorf("ingest: %w", err)
	}

	log := logger.FromContext(ctx, s.logger)

	for offset := 0; offset < len(texts); offset += s.batchSize {
		docs, tokens, err := s.embedBatch(ctx, texts, offset)
		if err != nil {
			return res, err
		}
		if err := domain.CheckDimensions(docs, dim); err != nil {
			return res, fmt.Errorf("batch at %d: %w", offset, err)
		}
		first, err := s.manager.Add(ctx, name, docs)
		if err != nil {
			return res, fmt.Errorf("add batch at %d: %w", offset, err)
		}
		if res.Added == 0 {
			res.FirstID = first
		}
		res.Added += len(docs)
		res.TotalTokens += tokens

		log.Debug("Ingested batch",
			zap.String("corpus", name),
			zap.Int("offset", offset),
			zap.Int("size", len(docs)),
		)
	}

	log.Info("Ingest completed",
		zap.String("corpus", name),
		zap.Int("added", res.Added),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

func (s *Service) checkTexts(texts []string) error {
	if s.embedder == nil {
		return fmt.Errorf("no embedder configured: %w", domain.ErrNotImplemented)
	}
	for i, t := range texts {
		if t == "" {
			return fmt.Errorf("text %d is empty: %w", i, domain.ErrInvalidInput)
		}
	}
	return nil
}

// embedBatch embeds the batch of texts starting at offset.
func (s *Service) embedBatch(ctx context.Context, texts []string, offset int) ([]domain.Document, int, error) {
	chunk := texts[offset:min(offset+s.batchSize, len(texts))]

	emb, err := domain.EmbedBatch(ctx, s.embedder, chunk)
	if err != nil {
		return nil, 0, fmt.Errorf("embed batch at %d: %w", offset, err)
	}
	if len(emb.Embeddings) != len(chunk) {
		return nil, 0, fmt.Errorf("embed batch at %d: got %d embeddings for %d texts",
			offset, len(emb.Embeddings), len(chunk))
	}

	docs := make([]domain.Document, len(chunk))
	for i, text := range chunk {
		docs[i] = domain.Document{Text: text, Embedding: emb.Embeddings[i]}
	}
	return docs, emb.TotalTokens, nil
}
