package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Search backends.
const (
	BackendIndex    = "index"
	BackendPgvector = "pgvector"
	BackendTable    = "table"
)

// Config holds the semwalk configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Search       SearchConfig       `yaml:"search"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Chat         ChatConfig         `yaml:"chat"`
	Conversation ConversationConfig `yaml:"conversation"`
	Auth         AuthConfig         `yaml:"auth"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Valkey/Redis connection settings for the index backend
// and the embedding cache.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// PostgresConfig holds pgvector backend settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// SearchConfig selects and tunes the similarity backend.
type SearchConfig struct {
	Backend     string        `yaml:"backend"` // index, pgvector, table (default: index)
	KeyPrefix   string        `yaml:"key_prefix"`
	HNSWM       int           `yaml:"hnsw_m"`
	HNSWEF      int           `yaml:"hnsw_ef_construction"`
	Tables      []TableConfig `yaml:"tables"`
	Walk        WalkConfig    `yaml:"walk"`
	Concurrency int           `yaml:"concurrency"`
}

// TableConfig describes one file served by the table backend.
type TableConfig struct {
	Name            string `yaml:"name"`
	Path            string `yaml:"path"`
	TextColumn      string `yaml:"text_column"`
	EmbeddingColumn string `yaml:"embedding_column"`
}

// WalkConfig holds walk defaults applied to requests that leave them unset.
type WalkConfig struct {
	TopK      int      `yaml:"top_k"`
	MaxDepth  int      `yaml:"max_depth"`
	Threshold *float64 `yaml:"score_threshold"`
	Mode      string   `yaml:"score_mode"` // anchor, previous
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Vectorizer VectorizerConfig `yaml:"vectorizer"`
	Cache      CacheConfig      `yaml:"cache"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	BatchSize  int              `yaml:"batch_size"`
}

// ProviderConfig holds OpenAI-compatible API settings.
type ProviderConfig struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	User    string `yaml:"user"`
}

// VectorizerConfig holds embedding model settings.
type VectorizerConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// CacheConfig holds embedding cache settings. The cache needs the index backend's store.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = no expiry
}

// RateLimitConfig holds embedding request rate limits.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
	Action            string  `yaml:"action"` // "wait" (default) | "reject"
}

// ChatConfig holds chat completion settings. An empty model disables chat.
type ChatConfig struct {
	Model        string   `yaml:"model"`
	Temperature  *float32 `yaml:"temperature"`
	HistoryLimit int      `yaml:"history_limit"`
	APIKey       string   `yaml:"api_key"`  // defaults to embedding.provider.api_key
	BaseURL      string   `yaml:"base_url"` // defaults to embedding.provider.base_url
}

// ConversationConfig holds the conversation log settings.
type ConversationConfig struct {
	Path string `yaml:"path"` // sqlite file, ":memory:" for a throwaway log
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML config after env substitution, then applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Postgres.MaxConns <= 0 {
		c.Postgres.MaxConns = 8
	}
	if c.Search.Backend == "" {
		c.Search.Backend = BackendIndex
	}
	if c.Search.KeyPrefix == "" {
		c.Search.KeyPrefix = "semwalk:"
	}
	if c.Search.HNSWM <= 0 {
		c.Search.HNSWM = 16
	}
	if c.Search.HNSWEF <= 0 {
		c.Search.HNSWEF = 200
	}
	if c.Search.Concurrency <= 0 {
		c.Search.Concurrency = 4
	}
	if c.Search.Walk.TopK <= 0 {
		c.Search.Walk.TopK = 5
	}
	if c.Search.Walk.MaxDepth <= 0 {
		c.Search.Walk.MaxDepth = 50
	}
	if c.Search.Walk.Threshold == nil {
		t := 0.85
		c.Search.Walk.Threshold = &t
	}
	if c.Search.Walk.Mode == "" {
		c.Search.Walk.Mode = "previous"
	}
	if c.Embedding.Provider.Name == "" {
		c.Embedding.Provider.Name = "openai"
	}
	if c.Embedding.Vectorizer.Model == "" {
		c.Embedding.Vectorizer.Model = "text-embedding-ada-002"
	}
	if c.Embedding.Vectorizer.Dimensions <= 0 {
		c.Embedding.Vectorizer.Dimensions = 1536
	}
	if c.Embedding.RateLimit.Action == "" {
		c.Embedding.RateLimit.Action = "wait"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 100
	}
	if c.Chat.Temperature == nil {
		t := float32(0.7)
		c.Chat.Temperature = &t
	}
	if c.Chat.APIKey == "" {
		c.Chat.APIKey = c.Embedding.Provider.APIKey
	}
	if c.Chat.BaseURL == "" {
		c.Chat.BaseURL = c.Embedding.Provider.BaseURL
	}
	if c.Conversation.Path == "" {
		c.Conversation.Path = "data/conversations.db"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Search.Backend {
	case BackendIndex:
		if err := c.validateDatabase(); err != nil {
			return err
		}
	case BackendPgvector:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the pgvector backend")
		}
	case BackendTable:
		if len(c.Search.Tables) == 0 {
			return fmt.Errorf("search.tables is required for the table backend")
		}
		for i, t := range c.Search.Tables {
			if t.Name == "" || t.Path == "" {
				return fmt.Errorf("search.tables[%d]: name and path are required", i)
			}
		}
	default:
		return fmt.Errorf("search.backend must be %q, %q or %q, got %q",
			BackendIndex, BackendPgvector, BackendTable, c.Search.Backend)
	}

	if c.Embedding.Cache.Enabled {
		if c.Search.Backend != BackendIndex {
			return fmt.Errorf("embedding.cache requires the %q backend", BackendIndex)
		}
		if c.Embedding.Cache.TTLSec < 0 {
			return fmt.Errorf("embedding.cache.ttl_sec must not be negative")
		}
	}

	switch c.Embedding.RateLimit.Action {
	case "", "wait", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.rate_limit.action must be \"wait\" or \"reject\", got %q",
			c.Embedding.RateLimit.Action,
		)
	}
	if c.Embedding.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("embedding.rate_limit.requests_per_second must not be negative")
	}

	switch c.Search.Walk.Mode {
	case "anchor", "previous":
		// ok
	default:
		return fmt.Errorf("search.walk.score_mode must be \"anchor\" or \"previous\", got %q", c.Search.Walk.Mode)
	}
	if c.Search.Walk.TopK < 2 {
		return fmt.Errorf("search.walk.top_k must be at least 2, got %d", c.Search.Walk.TopK)
	}

	if t := c.Chat.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("chat.temperature must be between 0 and 2, got %v", *t)
	}
	if c.Chat.HistoryLimit < 0 {
		return fmt.Errorf("chat.history_limit must not be negative")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
