package walk

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semwalk/internal/domain"
	"github.com/kailas-cloud/semwalk/internal/logger"
	"github.com/kailas-cloud/semwalk/internal/metrics"
)

// Search runs a single top-K lookup: the first step of a walk without the
// chaining. Hits come back as the provider ranked them.
func (s *Service) Search(ctx context.Context, corpus string, q domain.Query, topK int) (domain.SearchResponse, error) {
	if topK < 1 {
		return domain.SearchResponse{}, fmt.Errorf("top_k must be positive: %w", domain.ErrInvalidInput)
	}
	if domain.IsEmptyQuery(q) {
		return domain.SearchResponse{}, fmt.Errorf("query must not be empty: %w", domain.ErrInvalidInput)
	}

	resp, err := s.provider.Search(ctx, corpus, q, topK)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return domain.SearchResponse{}, fmt.Errorf("search %s: %w", corpus, err)
	}
	metrics.SearchesTotal.WithLabelValues("ok").Inc()

	logger.FromContext(ctx, s.logger).Debug("Search finished",
		zap.String("corpus", corpus),
		zap.Int("top_k", topK),
		zap.Int("hits", len(resp.Hits)),
	)
	return resp, nil
}
