package table

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/semwalk/internal/domain"
)

// Default column names, matching files written by WriteFile.
const (
	DefaultTextColumn      = "text"
	DefaultEmbeddingColumn = "embeddings"
)

// Source describes one file loaded as a corpus.
type Source struct {
	Name            string
	Path            string
	TextColumn      string
	EmbeddingColumn string
}

func (s Source) columns() (string, string) {
	text, emb := s.TextColumn, s.EmbeddingColumn
	if text == "" {
		text = DefaultTextColumn
	}
	if emb == "" {
		emb = DefaultEmbeddingColumn
	}
	return text, emb
}

// LoadFile reads a CSV or JSON Lines file. The format is picked by extension:
// .csv, or .jsonl / .ndjson. Embedding cells hold a JSON array of numbers.
func LoadFile(src Source) ([]domain.Document, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src.Path, err)
	}
	defer func() { _ = f.Close() }()

	text, emb := src.columns()
	switch strings.ToLower(filepath.Ext(src.Path)) {
	case ".csv":
		return ReadCSV(f, text, emb)
	case ".jsonl", ".ndjson":
		return ReadJSONL(f, text, emb)
	default:
		return nil, fmt.Errorf("unsupported table format %q", filepath.Ext(src.Path))
	}
}

// ReadCSV parses a CSV stream with a header row.
func ReadCSV(r io.Reader, textCol, embCol string) ([]domain.Document, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	ti, ei := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case textCol:
			ti = i
		case embCol:
			ei = i
		}
	}
	if ti < 0 || ei < 0 {
		return nil, fmt.Errorf("header must contain %q and %q", textCol, embCol)
	}

	var docs []domain.Document
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		vec, err := parseEmbedding([]byte(rec[ei]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, domain.Document{Text: rec[ti], Embedding: vec})
	}
	return docs, checkDims(docs)
}

// ReadJSONL parses one JSON object per line. Blank lines are skipped.
func ReadJSONL(r io.Reader, textCol, embCol string) ([]domain.Document, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var docs []domain.Document
	for line := 1; sc.Scan(); line++ {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var text string
		if err := json.Unmarshal(obj[textCol], &text); err != nil {
			return nil, fmt.Errorf("line %d: field %q: %w", line, textCol, err)
		}
		cell := obj[embCol]
		// embeddings may be stored as a stringified array
		var s string
		if json.Unmarshal(cell, &s) == nil {
			cell = []byte(s)
		}
		vec, err := parseEmbedding(cell)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, domain.Document{Text: text, Embedding: vec})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return docs, checkDims(docs)
}

func parseEmbedding(b []byte) (domain.Embedding, error) {
	var vec domain.Embedding
	if err := json.Unmarshal(b, &vec); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	if len(vec) == 0 {
		return nil, errors.New("empty embedding")
	}
	return vec, nil
}

func checkDims(docs []domain.Document) error {
	for i := 1; i < len(docs); i++ {
		if len(docs[i].Embedding) != len(docs[0].Embedding) {
			return fmt.Errorf("row %d: %w: got %d, want %d",
				i+1, domain.ErrDimensionMismatch, len(docs[i].Embedding), len(docs[0].Embedding))
		}
	}
	return nil
}
