package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/semwalk/internal/repository/table"
)

var (
	corpusDim    int
	corpusFile   string
	exportOutput string
	docsOffset   int
	docsLimit    int
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage corpora",
	Long:  `Creates, fills, inspects and drops corpora on the configured backend.`,
}

var corpusCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an empty corpus",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorpusCreate,
}

var corpusAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Embed texts and add them to a corpus",
	Long: `Reads one document per line from --file or stdin, embeds the lines in
batches and appends them to the corpus. Blank lines are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runCorpusAdd,
}

var corpusCountCmd = &cobra.Command{
	Use:   "count [name]",
	Short: "Count documents in a corpus",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorpusCount,
}

var corpusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List corpora",
	Args:  cobra.NoArgs,
	RunE:  runCorpusList,
}

var corpusInfoCmd = &cobra.Command{
	Use:   "info [name]",
	Short: "Show a corpus's dimension and document count",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorpusInfo,
}

var corpusDocsCmd = &cobra.Command{
	Use:   "docs [name]",
	Short: "List stored documents in id order",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorpusDocs,
}

var corpusExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Embed texts into a table file",
	Long: `Reads one document per line from --file or stdin, embeds the lines with
the configured embedder and writes text/embedding rows to --output. The
format follows the extension: .csv, .jsonl or .ndjson. The result can be
served with backend "table". Nothing is written to the corpus backend.`,
	Args: cobra.NoArgs,
	RunE: runCorpusExport,
}

var corpusDropCmd = &cobra.Command{
	Use:   "drop [name]",
	Short: "Drop a corpus and its documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runCorpusDrop,
}

func init() {
	corpusCreateCmd.Flags().IntVar(&corpusDim, "dim", 0, "embedding dimension (default from config)")
	corpusAddCmd.Flags().StringVarP(&corpusFile, "file", "f", "", "file with one document per line (default: stdin)")
	corpusExportCmd.Flags().StringVarP(&corpusFile, "file", "f", "", "file with one document per line (default: stdin)")
	corpusExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "table file to write (.csv, .jsonl)")
	_ = corpusExportCmd.MarkFlagRequired("output")
	corpusDocsCmd.Flags().IntVar(&docsOffset, "offset", 0, "documents to skip")
	corpusDocsCmd.Flags().IntVar(&docsLimit, "limit", 20, "documents to show")

	corpusCmd.AddCommand(corpusCreateCmd, corpusAddCmd, corpusCountCmd, corpusInfoCmd,
		corpusDocsCmd, corpusExportCmd, corpusListCmd, corpusDropCmd)
	rootCmd.AddCommand(corpusCmd)
}

func runCorpusCreate(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.corpora.Create(cmd.Context(), args[0], corpusDim); err != nil {
		return err
	}
	cmd.Printf("Created corpus %s\n", args[0])
	return nil
}

func runCorpusAdd(cmd *cobra.Command, args []string) error {
	texts, err := readLines(cmd.InOrStdin(), corpusFile)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("no documents to add")
	}

	a, err := loadApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.corpora.Ingest(cmd.Context(), args[0], texts)
	if err != nil {
		if res.Added > 0 {
			cmd.Printf("Added %d of %d documents before failing\n", res.Added, len(texts))
		}
		return err
	}
	cmd.Printf("Added %d documents to %s (first id %d, %d tokens)\n",
		res.Added, args[0], res.FirstID, res.TotalTokens)
	return nil
}

func runCorpusCount(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.corpora.Count(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	cmd.Println(n)
	return nil
}

func runCorpusInfo(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.corpora.Info(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	dim := "unknown"
	if info.Dimension > 0 {
		dim = fmt.Sprint(info.Dimension)
	}
	cmd.Printf("Corpus:     %s\n", info.Name)
	cmd.Printf("Dimension:  %s\n", dim)
	cmd.Printf("Documents:  %d\n", info.Count)
	return nil
}

func runCorpusDocs(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.corpora.Documents(cmd.Context(), args[0], docsOffset, docsLimit)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		cmd.Println("No documents.")
		return nil
	}
	for _, d := range docs {
		cmd.Printf("%6d  %s\n", d.ID, d.Text)
	}
	return nil
}

func runCorpusExport(cmd *cobra.Command, _ []string) error {
	texts, err := readLines(cmd.InOrStdin(), corpusFile)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("no documents to export")
	}

	a, err := loadApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, tokens, err := a.corpora.Embed(cmd.Context(), texts)
	if err != nil {
		return err
	}
	if err := table.WriteFile(exportOutput, docs); err != nil {
		return err
	}
	cmd.Printf("Exported %d documents to %s (%d tokens)\n", len(docs), exportOutput, tokens)
	return nil
}

func runCorpusList(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	names, err := a.corpora.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(names) == 0 {
		cmd.Println("No corpora.")
		return nil
	}
	for _, n := range names {
		cmd.Println(n)
	}
	return nil
}

func runCorpusDrop(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.corpora.Drop(cmd.Context(), args[0]); err != nil {
		return err
	}
	cmd.Printf("Dropped corpus %s\n", args[0])
	return nil
}

// readLines returns the non-blank lines of path, or of stdin when path is empty.
func readLines(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "" {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return out, nil
}
