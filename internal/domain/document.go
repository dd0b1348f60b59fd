package domain

import (
	"fmt"
	"sort"
)

// Document is a unit of text together with its embedding. Two documents with
// the same Text are the same document for walk purposes.
type Document struct {
	Text      string
	Embedding Embedding
}

// Hit is one search result: a document and its similarity to the query.
type Hit struct {
	Document Document
	Score    float64
}

// SearchResponse is what a similarity provider returns for one query.
// QueryEmbedding is the vector that was actually searched; Hits are ordered
// by descending score.
type SearchResponse struct {
	QueryEmbedding Embedding
	Hits           []Hit
}

// SortHits orders hits by descending score. Equal scores keep the order the
// backend produced them in.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}

// CheckDimensions reports the first document whose embedding is not dim long.
// dim <= 0 means the corpus dimension is unknown and nothing is checked.
func CheckDimensions(docs []Document, dim int) error {
	if dim <= 0 {
		return nil
	}
	for i, d := range docs {
		if len(d.Embedding) != dim {
			return fmt.Errorf("document %d: %w: got %d, want %d", i, ErrDimensionMismatch, len(d.Embedding), dim)
		}
	}
	return nil
}
