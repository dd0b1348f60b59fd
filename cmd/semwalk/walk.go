package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/semwalk/internal/domain"
	domwalk "github.com/kailas-cloud/semwalk/internal/domain/walk"
)

var (
	walkTopK        int
	walkMaxDepth    int
	walkThreshold   float64
	walkMode        string
	walkSummarize   bool
	walkInstruction string
	walkJSON        bool
)

var walkCmd = &cobra.Command{
	Use:   "walk [corpus] [query]",
	Short: "Run a drift walk from a text query",
	Long: `Runs a drift walk: the query's nearest document is taken first, then each
accepted document's embedding becomes the next query. Seen documents are
skipped. Unset flags take the defaults from search.walk in the config.`,
	Args: cobra.ExactArgs(2),
	RunE: runWalk,
}

func init() {
	walkCmd.Flags().IntVarP(&walkTopK, "top-k", "k", 0, "neighbours fetched per step (default from config)")
	walkCmd.Flags().IntVarP(&walkMaxDepth, "max-depth", "d", 0, "maximum number of steps (default from config)")
	walkCmd.Flags().Float64VarP(&walkThreshold, "threshold", "t", 0, "minimum score to continue (default from config)")
	walkCmd.Flags().StringVarP(&walkMode, "mode", "m", "", `score mode: "anchor" or "previous" (default from config)`)
	walkCmd.Flags().BoolVar(&walkSummarize, "summarize", false, "summarize the walked documents with the chat model")
	walkCmd.Flags().StringVar(&walkInstruction, "instruction", "", "extra instruction for the summary")
	walkCmd.Flags().BoolVar(&walkJSON, "json", false, "output the walk as JSON")
	rootCmd.AddCommand(walkCmd)
}

type walkOutput struct {
	Corpus  string     `json:"corpus"`
	Halt    string     `json:"halt"`
	Steps   []stepJSON `json:"steps"`
	Summary string     `json:"summary,omitempty"`
}

type stepJSON struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

func runWalk(cmd *cobra.Command, args []string) error {
	corpus, query := args[0], args[1]

	a, err := loadApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	p := domwalk.Params{
		Corpus:    corpus,
		Query:     domain.TextQuery{Text: query},
		TopK:      walkTopK,
		MaxDepth:  walkMaxDepth,
		Threshold: walkThreshold,
		Mode:      domwalk.Mode(walkMode),
	}
	p = a.defaults.Apply(p, cmd.Flags().Changed("threshold"))

	res, err := a.walks.Walk(cmd.Context(), p)
	if err != nil {
		return fmt.Errorf("walk failed: %w", err)
	}

	var summary string
	if walkSummarize {
		summary, err = a.walks.Summarize(cmd.Context(), res, walkInstruction)
		if err != nil {
			if errors.Is(err, domain.ErrNotImplemented) {
				return errors.New("summary needs chat.model in the config")
			}
			return fmt.Errorf("summary failed: %w", err)
		}
	}

	if walkJSON {
		return outputWalkJSON(cmd, corpus, res, summary)
	}
	outputWalkText(cmd, res, summary)
	return nil
}

func outputWalkJSON(cmd *cobra.Command, corpus string, res domwalk.Result, summary string) error {
	out := walkOutput{Corpus: corpus, Halt: string(res.Halt), Steps: make([]stepJSON, len(res.Trace)), Summary: summary}
	for i, s := range res.Trace {
		out.Steps[i] = stepJSON{Text: s.Document.Text, Score: s.Score}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal walk: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputWalkText(cmd *cobra.Command, res domwalk.Result, summary string) {
	if len(res.Trace) == 0 {
		cmd.Printf("No documents accepted (%s).\n", res.Halt)
		return
	}

	for i, s := range res.Trace {
		cmd.Printf("  [%d] (%.4f) %s\n", i+1, s.Score, s.Document.Text)
	}
	cmd.Println()
	cmd.Printf("Halted: %s after %d step(s)\n", res.Halt, len(res.Trace))

	if summary != "" {
		cmd.Println()
		cmd.Println("Summary:")
		cmd.Println(summary)
	}
}
