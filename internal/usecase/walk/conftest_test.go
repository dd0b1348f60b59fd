package walk

import (
	"context"
	"sync"

	"github.com/kailas-cloud/semwalk/internal/domain"
	"github.com/kailas-cloud/semwalk/internal/domain/relatedness"
)

// scriptedProvider returns its responses in order, one per Search call.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []domain.SearchResponse
	err       error
	errAt     int // call index that fails; -1 disables
	queries   []domain.Query
}

func newScripted(responses ...domain.SearchResponse) *scriptedProvider {
	return &scriptedProvider{responses: responses, errAt: -1}
}

func (p *scriptedProvider) Search(_ context.Context, _ string, q domain.Query, _ int) (domain.SearchResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := len(p.queries)
	p.queries = append(p.queries, q)
	if call == p.errAt {
		return domain.SearchResponse{}, p.err
	}
	if call >= len(p.responses) {
		return domain.SearchResponse{}, nil
	}
	return p.responses[call], nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queries)
}

// corpusProvider searches a fixed document set by brute force, like a real backend.
type corpusProvider struct {
	docs  []domain.Document
	embed map[string]domain.Embedding
}

func (p *corpusProvider) Search(_ context.Context, corpus string, q domain.Query, topK int) (domain.SearchResponse, error) {
	if corpus != "fixture" {
		return domain.SearchResponse{}, domain.ErrCorpusNotFound
	}
	var vec domain.Embedding
	switch v := q.(type) {
	case domain.TextQuery:
		vec = p.embed[v.Text]
	case domain.VectorQuery:
		vec = v.Vector
	}
	hits := make([]domain.Hit, 0, len(p.docs))
	for _, d := range p.docs {
		s, err := relatedness.Score(vec, d.Embedding)
		if err != nil {
			return domain.SearchResponse{}, err
		}
		hits = append(hits, domain.Hit{Document: d, Score: s})
	}
	domain.SortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return domain.SearchResponse{QueryEmbedding: vec, Hits: hits}, nil
}

// fiveDocs is a corpus of five documents spread around the unit circle.
func fiveDocs() *corpusProvider {
	docs := []domain.Document{
		{Text: "A", Embedding: domain.Embedding{1, 0, 0}},
		{Text: "B", Embedding: domain.Embedding{0.9, 0.43, 0}},
		{Text: "C", Embedding: domain.Embedding{0.6, 0.8, 0}},
		{Text: "D", Embedding: domain.Embedding{0.1, 0.99, 0.1}},
		{Text: "E", Embedding: domain.Embedding{0, 0.3, 0.95}},
	}
	embed := make(map[string]domain.Embedding, len(docs))
	for _, d := range docs {
		embed[d.Text] = d.Embedding
	}
	return &corpusProvider{docs: docs, embed: embed}
}

func doc(text string, vec ...float32) domain.Document {
	return domain.Document{Text: text, Embedding: vec}
}

func hit(d domain.Document, score float64) domain.Hit {
	return domain.Hit{Document: d, Score: score}
}

type fakeCompleter struct {
	got  domain.ChatRequest
	resp domain.ChatResponse
	err  error
}

func (f *fakeCompleter) Complete(_ context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	f.got = req
	return f.resp, f.err
}
