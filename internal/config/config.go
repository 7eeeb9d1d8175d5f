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

// Search index drivers.
const (
	DriverAzure = "azure"
	DriverRedis = "redis"
)

// Config holds the retriever configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	SearchIndex  SearchIndexConfig  `yaml:"search_index"`
	Database     DatabaseConfig     `yaml:"database"`
	Completion   CompletionConfig   `yaml:"completion"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Cache        CacheConfig        `yaml:"cache"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
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

// SearchIndexConfig holds the search index service settings.
type SearchIndexConfig struct {
	Driver                string       `yaml:"driver"` // azure, redis (default: azure)
	Endpoint              string       `yaml:"endpoint"`
	APIKey                string       `yaml:"api_key"`
	Index                 string       `yaml:"index"`
	APIVersion            string       `yaml:"api_version"`
	SemanticConfiguration string       `yaml:"semantic_configuration"`
	VectorField           string       `yaml:"vector_field"`
	Fields                FieldMapping `yaml:"fields"`
	TagFields             []string     `yaml:"tag_fields"`
	DateFields            []string     `yaml:"date_fields"`
	FilterFields          []string     `yaml:"filter_fields"` // allow-list; empty = any field
	TimeoutSec            int          `yaml:"timeout_sec"`
}

// FieldMapping maps document attributes onto index field names.
type FieldMapping struct {
	ID         string `yaml:"id"`
	ParentID   string `yaml:"parent_id"`
	Content    string `yaml:"content"`
	ChunkIndex string `yaml:"chunk_index"`
	Header1    string `yaml:"header_1"`
	Header2    string `yaml:"header_2"`
	Header3    string `yaml:"header_3"`
}

// DatabaseConfig holds Redis connection settings (redis index driver, persistent embedding cache).
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CompletionConfig holds the text-completion provider used for query planning.
type CompletionConfig struct {
	APIKey            string   `yaml:"api_key"`
	BaseURL           string   `yaml:"base_url"`
	Model             string   `yaml:"model"`
	Temperature       *float32 `yaml:"temperature"` // nil = 0.3; 0 is kept
	MaxTokens         int      `yaml:"max_tokens"`
	TimeoutSec        int      `yaml:"timeout_sec"`
	RequestsPerSecond float64  `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int      `yaml:"burst"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	QueryInstruction  string  `yaml:"query_instruction"`
	MaxInputChars     int     `yaml:"max_input_chars"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled            *bool   `yaml:"enabled"` // default: true
	Capacity           int     `yaml:"capacity"`
	EvictFraction      float64 `yaml:"evict_fraction"`
	Persistent         bool    `yaml:"persistent"`
	PersistentTTLHours int     `yaml:"persistent_ttl_hours"`
}

// IsEnabled reports whether the in-memory embedding cache is on.
func (c CacheConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// OrchestratorConfig holds query decomposition and fusion settings.
type OrchestratorConfig struct {
	MaxSubqueries      int     `yaml:"max_subqueries"`
	MaxDocsPerSubquery int     `yaml:"max_docs_per_subquery"`
	MaxAnswers         int     `yaml:"max_answers"`
	HistoryTurns       int     `yaml:"history_turns"`
	ScoreWeight        float64 `yaml:"score_weight"`
	RerankerWeight     float64 `yaml:"reranker_weight"`
	SubqueryTimeoutSec int     `yaml:"subquery_timeout_sec"`
	PlannerTimeoutSec  int     `yaml:"planner_timeout_sec"`
	FallbackTimeoutSec int     `yaml:"fallback_timeout_sec"`
	DefaultTopK        int     `yaml:"default_top_k"`
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

// Parse decodes YAML, substitutes env variables, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
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
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	si := &c.SearchIndex
	if si.Driver == "" {
		si.Driver = DriverAzure
	}
	if si.Index == "" {
		si.Index = "neuro-rag-semantic-chunks"
	}
	if si.APIVersion == "" {
		si.APIVersion = "2024-07-01"
	}
	if si.SemanticConfiguration == "" {
		si.SemanticConfiguration = "default"
	}
	if si.VectorField == "" {
		si.VectorField = "text_vector"
	}
	si.Fields.applyDefaults()
	if len(si.TagFields) == 0 {
		si.TagFields = []string{"pozo", "equipo", "fecha", "yacimiento", "tipo_documento"}
	}
	if len(si.DateFields) == 0 {
		si.DateFields = []string{"fecha"}
	}
	if si.TimeoutSec <= 0 {
		si.TimeoutSec = 30
	}

	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "retriever:"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-4o-mini"
	}
	if c.Completion.Temperature == nil {
		t := float32(0.3)
		c.Completion.Temperature = &t
	}
	if c.Completion.MaxTokens <= 0 {
		c.Completion.MaxTokens = 500
	}
	if c.Completion.TimeoutSec <= 0 {
		c.Completion.TimeoutSec = 20
	}
	if c.Completion.Burst <= 0 {
		c.Completion.Burst = 1
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-ada-002"
	}
	if c.Embedding.MaxInputChars <= 0 {
		c.Embedding.MaxInputChars = 8000
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Embedding.Burst <= 0 {
		c.Embedding.Burst = 1
	}

	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = 200
	}
	if c.Cache.EvictFraction <= 0 {
		c.Cache.EvictFraction = 0.25
	}
	if c.Cache.PersistentTTLHours <= 0 {
		c.Cache.PersistentTTLHours = 7 * 24
	}

	o := &c.Orchestrator
	if o.MaxSubqueries <= 0 {
		o.MaxSubqueries = 5
	}
	if o.MaxDocsPerSubquery <= 0 {
		o.MaxDocsPerSubquery = 50
	}
	if o.MaxAnswers <= 0 {
		o.MaxAnswers = 3
	}
	if o.HistoryTurns <= 0 {
		o.HistoryTurns = 3
	}
	if o.ScoreWeight == 0 && o.RerankerWeight == 0 {
		o.ScoreWeight = 0.3
		o.RerankerWeight = 0.7
	}
	if o.SubqueryTimeoutSec <= 0 {
		o.SubqueryTimeoutSec = 30
	}
	if o.PlannerTimeoutSec <= 0 {
		o.PlannerTimeoutSec = 20
	}
	if o.FallbackTimeoutSec <= 0 {
		o.FallbackTimeoutSec = 30
	}
	if o.DefaultTopK <= 0 {
		o.DefaultTopK = 10
	}
}

func (f *FieldMapping) applyDefaults() {
	if f.ID == "" {
		f.ID = "chunk_id"
	}
	if f.ParentID == "" {
		f.ParentID = "parent_id"
	}
	if f.Content == "" {
		f.Content = "chunk_content"
	}
	if f.ChunkIndex == "" {
		f.ChunkIndex = "chunk_index"
	}
	if f.Header1 == "" {
		f.Header1 = "header_1"
	}
	if f.Header2 == "" {
		f.Header2 = "header_2"
	}
	if f.Header3 == "" {
		f.Header3 = "header_3"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.SearchIndex.Driver {
	case DriverAzure:
		if c.SearchIndex.Endpoint == "" {
			return fmt.Errorf("search_index.endpoint is required for driver %q", DriverAzure)
		}
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", DriverRedis)
		}
	default:
		return fmt.Errorf("search_index.driver must be %q or %q, got %q",
			DriverAzure, DriverRedis, c.SearchIndex.Driver)
	}
	if c.Cache.Persistent && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required when cache.persistent is enabled")
	}
	if t := c.Completion.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("completion.temperature must be in [0, 2], got %g", *t)
	}
	if c.Cache.EvictFraction > 1 {
		return fmt.Errorf("cache.evict_fraction must be in (0, 1], got %g", c.Cache.EvictFraction)
	}
	if c.Orchestrator.ScoreWeight < 0 || c.Orchestrator.RerankerWeight < 0 {
		return fmt.Errorf("orchestrator score weights must be non-negative")
	}
	if c.Orchestrator.MaxSubqueries > 20 {
		return fmt.Errorf("orchestrator.max_subqueries must be at most 20, got %d", c.Orchestrator.MaxSubqueries)
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
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
