package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/semwalk/internal/domain"
)

var (
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search [corpus] [query]",
	Short: "Find the documents nearest to a text query",
	Long: `Embeds the query and prints the top-K documents of the corpus by
descending similarity. Unlike walk, nothing is followed from the hits.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of hits (default: search.walk.top_k from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output hits as JSON")
	rootCmd.AddCommand(searchCmd)
}

type searchOutput struct {
	Corpus string     `json:"corpus"`
	Hits   []stepJSON `json:"hits"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	corpus, query := args[0], args[1]

	a, err := loadApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	topK := searchTopK
	if topK == 0 {
		topK = a.defaults.TopK
	}
	resp, err := a.walks.Search(cmd.Context(), corpus, domain.TextQuery{Text: query}, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		out := searchOutput{Corpus: corpus, Hits: make([]stepJSON, len(resp.Hits))}
		for i, h := range resp.Hits {
			out.Hits[i] = stepJSON{Text: h.Document.Text, Score: h.Score}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal hits: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(resp.Hits) == 0 {
		cmd.Println("No hits.")
		return nil
	}
	for i, h := range resp.Hits {
		cmd.Printf("  [%d] (%.4f) %s\n", i+1, h.Score, h.Document.Text)
	}
	return nil
}
