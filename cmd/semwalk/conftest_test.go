package main

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semwalk/internal/config"
	"github.com/kailas-cloud/semwalk/internal/domain"
	domwalk "github.com/kailas-cloud/semwalk/internal/domain/walk"
	chatuc "github.com/kailas-cloud/semwalk/internal/usecase/chat"
	corpusuc "github.com/kailas-cloud/semwalk/internal/usecase/corpus"
	healthuc "github.com/kailas-cloud/semwalk/internal/usecase/health"
	walkuc "github.com/kailas-cloud/semwalk/internal/usecase/walk"
)

// memBackend is an in-memory corpus store answering searches by provider score order.
type memBackend struct {
	mu      sync.Mutex
	corpora map[string][]domain.Hit
	dims    map[string]int
}

func (b *memBackend) Search(_ context.Context, corpus string, q domain.Query, topK int) (domain.SearchResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hits, ok := b.corpora[corpus]
	if !ok {
		return domain.SearchResponse{}, fmt.Errorf("search %s: %w", corpus, domain.ErrCorpusNotFound)
	}
	qv := domain.Embedding{1, 0}
	if v, ok := q.(domain.VectorQuery); ok {
		qv = v.Vector
	}
	return domain.SearchResponse{QueryEmbedding: qv, Hits: append([]domain.Hit(nil), hits[:min(topK, len(hits))]...)}, nil
}

func (b *memBackend) Create(_ context.Context, name string, dim int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.corpora[name]; ok {
		return domain.ErrAlreadyExists
	}
	b.corpora[name] = nil
	if b.dims == nil {
		b.dims = map[string]int{}
	}
	b.dims[name] = dim
	return nil
}

func (b *memBackend) Dimension(_ context.Context, name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.corpora[name]; !ok {
		return 0, domain.ErrCorpusNotFound
	}
	return b.dims[name], nil
}

func (b *memBackend) Documents(_ context.Context, name string, offset, limit int) ([]domain.StoredDocument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hits, ok := b.corpora[name]
	if !ok {
		return nil, domain.ErrCorpusNotFound
	}
	var out []domain.StoredDocument
	for i := offset; i < len(hits) && len(out) < limit; i++ {
		out = append(out, domain.StoredDocument{ID: int64(i), Document: hits[i].Document})
	}
	return out, nil
}

func (b *memBackend) Drop(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.corpora[name]; !ok {
		return domain.ErrCorpusNotFound
	}
	delete(b.corpora, name)
	return nil
}

func (b *memBackend) List(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.corpora))
	for n := range b.corpora {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func (b *memBackend) Count(_ context.Context, name string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hits, ok := b.corpora[name]
	if !ok {
		return 0, domain.ErrCorpusNotFound
	}
	return len(hits), nil
}

func (b *memBackend) Add(_ context.Context, name string, docs []domain.Document) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hits, ok := b.corpora[name]
	if !ok {
		return 0, domain.ErrCorpusNotFound
	}
	first := int64(len(hits))
	for _, d := range docs {
		hits = append(hits, domain.Hit{Document: d, Score: 1})
	}
	b.corpora[name] = hits
	return first, nil
}

type lenEmbedder struct{}

func (lenEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: domain.Embedding{float32(len(text)), 1}, TotalTokens: 1}, nil
}

type echoCompleter struct {
	mu    sync.Mutex
	calls []domain.ChatRequest
}

func (c *echoCompleter) Complete(_ context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	last := req.Messages[len(req.Messages)-1].Content
	return domain.ChatResponse{
		ID:      fmt.Sprintf("resp-%d", len(c.calls)),
		Message: domain.Message{Role: domain.RoleAssistant, Content: "echo: " + last},
		Created: time.Unix(1700000000, 0),
	}, nil
}

type memLog struct {
	mu   sync.Mutex
	msgs map[string][]domain.Message
}

func (l *memLog) Create(_ context.Context, id string, _ time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs[id] = nil
	return nil
}

func (l *memLog) Exists(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.msgs[id]
	return ok, nil
}

func (l *memLog) Append(_ context.Context, id, _ string, msgs ...domain.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.msgs[id]; !ok {
		return domain.ErrNotFound
	}
	l.msgs[id] = append(l.msgs[id], msgs...)
	return nil
}

func (l *memLog) Messages(_ context.Context, id string, _ int) ([]domain.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs, ok := l.msgs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]domain.Message(nil), msgs...), nil
}

type testEnv struct {
	backend   *memBackend
	completer *echoCompleter
	log       *memLog
	closed    int
}

// setupTestApp swaps config loading and app wiring for in-memory fakes.
func setupTestApp(t *testing.T, withChat bool) *testEnv {
	t.Helper()

	a := domain.Document{Text: "alpha", Embedding: domain.Embedding{1, 0}}
	b := domain.Document{Text: "beta", Embedding: domain.Embedding{0.9, 0.1}}
	c := domain.Document{Text: "gamma", Embedding: domain.Embedding{0, 1}}
	env := &testEnv{
		backend: &memBackend{corpora: map[string][]domain.Hit{
			"news": {{Document: a, Score: 1}, {Document: b, Score: 0.9}, {Document: c, Score: 0.3}},
		}},
		completer: &echoCompleter{},
		log:       &memLog{msgs: map[string][]domain.Message{}},
	}

	oldConfig, oldApp := loadConfig, loadApp
	loadConfig = func() (config.Config, error) {
		var c config.Config
		c.ApplyDefaults()
		return c, nil
	}
	loadApp = func(context.Context, config.Config, *zap.Logger) (*app, error) {
		ap := &app{
			walks:    walkuc.New(env.backend, walkuc.WithCompleter(env.completer)),
			corpora:  corpusuc.New(env.backend, lenEmbedder{}, 2, 2, nil),
			health:   healthuc.New(nil, nil, nil),
			defaults: domwalk.Defaults{TopK: 3, MaxDepth: 2, Threshold: 0.5, Mode: domwalk.RelativeToPrevious},
			closers:  []func(){func() { env.closed++ }},
		}
		if withChat {
			ap.chat = chatuc.New(env.completer, env.log)
		}
		return ap, nil
	}
	t.Cleanup(func() {
		loadConfig, loadApp = oldConfig, oldApp
	})
	return env
}

// execute runs the root command with args and stdin, resetting flags afterwards.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
