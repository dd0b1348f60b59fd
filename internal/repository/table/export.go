package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/semwalk/internal/domain"
)

// WriteFile writes docs as a table file LoadFile can read back, picking the
// format by extension like LoadFile does. An existing file is replaced.
func WriteFile(path string, docs []domain.Document) (err error) {
	var write func(io.Writer, []domain.Document) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".jsonl", ".ndjson":
		write = WriteJSONL
	default:
		return fmt.Errorf("unsupported table format %q", filepath.Ext(path))
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return write(f, docs)
}

// WriteCSV writes a header row and one row per document; the embedding cell
// holds a JSON array.
func WriteCSV(w io.Writer, docs []domain.Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{DefaultTextColumn, DefaultEmbeddingColumn}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, d := range docs {
		vec, err := json.Marshal(d.Embedding)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		if err := cw.Write([]string{d.Text, string(vec)}); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

type jsonlRow struct {
	Text       string           `json:"text"`
	Embeddings domain.Embedding `json:"embeddings"`
}

// WriteJSONL writes one object per line.
func WriteJSONL(w io.Writer, docs []domain.Document) error {
	enc := json.NewEncoder(w)
	for i, d := range docs {
		if err := enc.Encode(jsonlRow{Text: d.Text, Embeddings: d.Embedding}); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}
