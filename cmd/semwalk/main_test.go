package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/semwalk/internal/config"
	"github.com/kailas-cloud/semwalk/internal/domain"
	domwalk "github.com/kailas-cloud/semwalk/internal/domain/walk"
	"github.com/kailas-cloud/semwalk/internal/repository/table"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "walk", "search", "chat", "corpus", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestWalkCmd_RequiresCorpusAndQuery(t *testing.T) {
	setupTestApp(t, false)

	_, err := execute(t, "", "walk", "news")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestWalkCmd_Flags(t *testing.T) {
	flag := walkCmd.Flags().Lookup("top-k")
	require.NotNil(t, flag)
	assert.Equal(t, "k", flag.Shorthand)
	assert.NotNil(t, walkCmd.Flags().Lookup("summarize"))
	assert.NotNil(t, walkCmd.Flags().Lookup("threshold"))
}

func TestWalkCmd_PrintsTrace(t *testing.T) {
	env := setupTestApp(t, false)

	out, err := execute(t, "", "walk", "news", "start")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] (1.0000) alpha")
	assert.Contains(t, out, "[2] (0.9000) beta")
	assert.Contains(t, out, "Halted: depth_exhausted after 2 step(s)")
	assert.Equal(t, 1, env.closed, "app should be closed")
}

func TestWalkCmd_ThresholdFlagOverridesDefault(t *testing.T) {
	setupTestApp(t, false)

	// With threshold 0.95 the second step (0.9) stops the walk.
	out, err := execute(t, "", "walk", "news", "start", "--threshold", "0.95")
	require.NoError(t, err)
	assert.Contains(t, out, "alpha")
	assert.NotContains(t, out, "beta")
	assert.Contains(t, out, string(domwalk.HaltBelowThreshold))
}

func TestWalkCmd_JSONWithSummary(t *testing.T) {
	env := setupTestApp(t, false)

	out, err := execute(t, "", "walk", "news", "start", "--json", "--summarize", "-d", "3", "-t", "0")
	require.NoError(t, err)

	var got walkOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "news", got.Corpus)
	require.Len(t, got.Steps, 3)
	assert.Equal(t, "gamma", got.Steps[2].Text)
	assert.True(t, strings.HasPrefix(got.Summary, "echo: "), "summary %q", got.Summary)
	require.Len(t, env.completer.calls, 1)
}

func TestWalkCmd_UnknownCorpus(t *testing.T) {
	setupTestApp(t, false)

	_, err := execute(t, "", "walk", "nope", "start")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corpus not found")
}

func TestSearchCmd_PrintsHits(t *testing.T) {
	env := setupTestApp(t, false)

	out, err := execute(t, "", "search", "news", "start", "-k", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] (1.0000) alpha")
	assert.Contains(t, out, "[2] (0.9000) beta")
	assert.NotContains(t, out, "gamma")
	assert.Equal(t, 1, env.closed)
}

func TestSearchCmd_JSONUsesDefaultTopK(t *testing.T) {
	setupTestApp(t, false)

	out, err := execute(t, "", "search", "news", "start", "--json")
	require.NoError(t, err)

	var got searchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "news", got.Corpus)
	require.Len(t, got.Hits, 3)
	assert.Equal(t, "gamma", got.Hits[2].Text)
}

func TestSearchCmd_UnknownCorpus(t *testing.T) {
	setupTestApp(t, false)

	_, err := execute(t, "", "search", "nope", "start")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corpus not found")
}

func TestChatCmd_InteractiveLoop(t *testing.T) {
	env := setupTestApp(t, true)

	out, err := execute(t, "hello\n\nsecond\nexit\nnever sent\n", "chat", "--system", "be brief")
	require.NoError(t, err)
	assert.Contains(t, out, "echo: hello")
	assert.Contains(t, out, "echo: second")
	assert.Contains(t, out, "(conversation ")
	assert.NotContains(t, out, "never sent")

	require.Len(t, env.completer.calls, 2)
	second := env.completer.calls[1].Messages
	// system, stored user + assistant, new user
	require.Len(t, second, 4)
	assert.Equal(t, "be brief", second[0].Content)
	assert.Equal(t, "second", second[3].Content)
}

func TestChatCmd_Disabled(t *testing.T) {
	setupTestApp(t, false)

	_, err := execute(t, "hi\n", "chat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat.model")
}

func TestCorpusCmd_Lifecycle(t *testing.T) {
	env := setupTestApp(t, false)

	out, err := execute(t, "", "corpus", "create", "blogs")
	require.NoError(t, err)
	assert.Contains(t, out, "Created corpus blogs")

	out, err = execute(t, "first post\n\n  second post  \nthird\n", "corpus", "add", "blogs")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 3 documents to blogs (first id 0, 3 tokens)")

	out, err = execute(t, "", "corpus", "count", "blogs")
	require.NoError(t, err)
	assert.Equal(t, "3", strings.TrimSpace(out))
	assert.Equal(t, "second post", env.backend.corpora["blogs"][1].Document.Text)

	out, err = execute(t, "", "corpus", "list")
	require.NoError(t, err)
	assert.Equal(t, "blogs\nnews\n", out)

	out, err = execute(t, "", "corpus", "drop", "blogs")
	require.NoError(t, err)
	assert.Contains(t, out, "Dropped corpus blogs")

	_, err = execute(t, "", "corpus", "count", "blogs")
	require.Error(t, err)
}

func TestCorpusAdd_FromFile(t *testing.T) {
	setupTestApp(t, false)

	path := filepath.Join(t.TempDir(), "docs.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0o600))

	out, err := execute(t, "", "corpus", "add", "news", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Added 2 documents to news (first id 3")
}

func TestCorpusInfoAndDocs(t *testing.T) {
	setupTestApp(t, false)

	_, err := execute(t, "", "corpus", "create", "blogs", "--dim", "2")
	require.NoError(t, err)
	_, err = execute(t, "one\ntwo\nthree\n", "corpus", "add", "blogs")
	require.NoError(t, err)

	out, err := execute(t, "", "corpus", "info", "blogs")
	require.NoError(t, err)
	assert.Contains(t, out, "Dimension:  2")
	assert.Contains(t, out, "Documents:  3")

	out, err = execute(t, "", "corpus", "info", "news")
	require.NoError(t, err)
	assert.Contains(t, out, "Dimension:  unknown")

	out, err = execute(t, "", "corpus", "docs", "blogs", "--offset", "1", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, "     1  two\n", out)

	_, err = execute(t, "", "corpus", "docs", "blogs", "--limit", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

func TestCorpusAdd_WrongDimension(t *testing.T) {
	env := setupTestApp(t, false)

	_, err := execute(t, "", "corpus", "create", "wide", "--dim", "3")
	require.NoError(t, err)
	_, err = execute(t, "x\n", "corpus", "add", "wide")
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Empty(t, env.backend.corpora["wide"])
}

func TestCorpusExport_WritesLoadableTable(t *testing.T) {
	env := setupTestApp(t, false)

	dir := t.TempDir()
	for _, name := range []string{"docs.csv", "docs.jsonl"} {
		path := filepath.Join(dir, name)
		out, err := execute(t, "ab\ncde\n", "corpus", "export", "-o", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Exported 2 documents to "+path+" (2 tokens)")

		docs, err := table.LoadFile(table.Source{Path: path})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "cde", docs[1].Text)
		assert.Equal(t, domain.Embedding{3, 1}, docs[1].Embedding)
	}
	assert.Len(t, env.backend.corpora, 1, "export must not touch the backend")
}

func TestCorpusExport_Errors(t *testing.T) {
	setupTestApp(t, false)

	_, err := execute(t, "a\n", "corpus", "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"output" not set`)

	_, err = execute(t, "a\n", "corpus", "export", "-o", filepath.Join(t.TempDir(), "docs.parquet"))
	require.Error(t, err)

	_, err = execute(t, "\n", "corpus", "export", "-o", filepath.Join(t.TempDir(), "docs.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no documents")
}

func TestCorpusAdd_EmptyInput(t *testing.T) {
	setupTestApp(t, false)

	_, err := execute(t, "\n\n", "corpus", "add", "news")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no documents")
}

func TestCorpusCreate_InvalidName(t *testing.T) {
	setupTestApp(t, false)

	_, err := execute(t, "", "corpus", "create", "bad name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

func TestVersionCmd_SkipsConfig(t *testing.T) {
	old := loadConfig
	loadConfig = func() (config.Config, error) {
		t.Fatal("version must not load config")
		return config.Config{}, nil
	}
	defer func() { loadConfig = old }()

	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "semwalk dev")
}

func TestWalkDefaults_FromConfig(t *testing.T) {
	th := 0.0
	d := walkDefaults(config.WalkConfig{TopK: 9, Threshold: &th, Mode: "anchor"})
	assert.Equal(t, 9, d.TopK)
	assert.Equal(t, 50, d.MaxDepth)
	assert.Equal(t, 0.0, d.Threshold)
	assert.Equal(t, domwalk.RelativeToAnchor, d.Mode)
}

func TestReadLines_MissingFile(t *testing.T) {
	_, err := readLines(strings.NewReader(""), filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
