// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared settings for outbound HTTP clients.
type HTTPConfig struct {
	// Timeout is the overall HTTP client timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is sent with every provider request (e.g. "research-assistant/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds 429/503 retries for providers that use the retrier.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// ScoreWeights are the relative weights of the ranking signals. They need
// not sum to one; the composite score divides by their total.
type ScoreWeights struct {
	Lexical  float64 `json:"lexical" yaml:"lexical" mapstructure:"lexical"`
	Semantic float64 `json:"semantic" yaml:"semantic" mapstructure:"semantic"`
	Citation float64 `json:"citation" yaml:"citation" mapstructure:"citation"`
	Recency  float64 `json:"recency" yaml:"recency" mapstructure:"recency"`
}

// DefaultWeights returns lexical 0.35, semantic 0.35, citation 0.15, recency 0.15.
func DefaultWeights() ScoreWeights {
	return ScoreWeights{Lexical: 0.35, Semantic: 0.35, Citation: 0.15, Recency: 0.15}
}

// Sum returns the total weight.
func (w ScoreWeights) Sum() float64 {
	return w.Lexical + w.Semantic + w.Citation + w.Recency
}

// Validate rejects negative weights and an all-zero set.
func (w ScoreWeights) Validate() error {
	if w.Lexical < 0 || w.Semantic < 0 || w.Citation < 0 || w.Recency < 0 {
		return fmt.Errorf("score weights must be non-negative: %+v", w)
	}
	if w.Sum() == 0 {
		return fmt.Errorf("score weights must not all be zero")
	}
	return nil
}

// SearchConfig holds settings for the federated orchestrator.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults is the default result cap (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// ProviderTimeout bounds each provider call (default 15s).
	ProviderTimeout time.Duration `json:"provider_timeout" yaml:"provider_timeout" mapstructure:"provider_timeout"`

	// HealthTimeout bounds each health probe (default 10s).
	HealthTimeout time.Duration `json:"health_timeout" yaml:"health_timeout" mapstructure:"health_timeout"`

	// DefaultDatabases is used when a query carries no allowlist. Empty means all registered.
	DefaultDatabases []string `json:"default_databases" yaml:"default_databases" mapstructure:"default_databases"`

	// MaxExpandedQueries caps how many expanded variants each provider runs besides the original (default 2).
	MaxExpandedQueries int `json:"max_expanded_queries" yaml:"max_expanded_queries" mapstructure:"max_expanded_queries"`

	Weights ScoreWeights `json:"weights" yaml:"weights" mapstructure:"weights"`
}

// ProvidersConfig enables and configures each connector.
type ProvidersConfig struct {
	Arxiv           ArxivConfig           `json:"arxiv" yaml:"arxiv" mapstructure:"arxiv"`
	SemanticScholar SemanticScholarConfig `json:"semantic_scholar" yaml:"semantic_scholar" mapstructure:"semantic_scholar"`
	OpenAlex        OpenAlexConfig        `json:"openalex" yaml:"openalex" mapstructure:"openalex"`
	SearxNG         SearxNGConfig         `json:"searxng" yaml:"searxng" mapstructure:"searxng"`
}

// ArxivConfig configures the arXiv connector.
type ArxivConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// SemanticScholarConfig configures the Semantic Scholar connector.
type SemanticScholarConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// APIKey is optional and raises the rate limit.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// OpenAlexConfig configures the OpenAlex connector.
type OpenAlexConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Email is sent as mailto for polite pool access.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email"`
}

// SearxNGConfig configures the web-search-like SearxNG connector.
type SearxNGConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Access is reported for every SearxNG result: open_access, restricted, or unknown.
	Access AccessType `json:"access" yaml:"access" mapstructure:"access"`

	RequireAuthors   bool `json:"require_authors" yaml:"require_authors" mapstructure:"require_authors"`
	RequireAbstract  bool `json:"require_abstract" yaml:"require_abstract" mapstructure:"require_abstract"`
	RequirePublisher bool `json:"require_publisher" yaml:"require_publisher" mapstructure:"require_publisher"`
}

// Embedding backends.
const (
	EmbedderOpenAI = "openai"
	EmbedderOllama = "ollama"
	EmbedderHash   = "hash"
	EmbedderNone   = "none"
)

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	// Provider is openai, ollama, hash, or none.
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`

	Model      string `json:"model" yaml:"model" mapstructure:"model"`
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
	Dimensions int    `json:"dimensions" yaml:"dimensions" mapstructure:"dimensions"`

	// Cache is memory, redis, or none.
	Cache     string        `json:"cache" yaml:"cache" mapstructure:"cache"`
	CacheSize int           `json:"cache_size" yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTL  time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`
	Redis     RedisConfig   `json:"redis" yaml:"redis" mapstructure:"redis"`
}

// RedisConfig points at a Redis instance.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" mapstructure:"addr"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `json:"db" yaml:"db" mapstructure:"db"`
}

// Generator backends for query expansion and query planning.
const (
	GeneratorGemini = "gemini"
	GeneratorOpenAI = "openai"
	GeneratorNone   = "none"
)

// ExpansionConfig configures query expansion.
type ExpansionConfig struct {
	// Provider is gemini, openai, or none.
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`
	Model    string `json:"model" yaml:"model" mapstructure:"model"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// ThesaurusFile replaces the built-in synonym table when set.
	ThesaurusFile string `json:"thesaurus_file,omitempty" yaml:"thesaurus_file,omitempty" mapstructure:"thesaurus_file"`

	MaxSynonyms int `json:"max_synonyms" yaml:"max_synonyms" mapstructure:"max_synonyms"`
	MaxTerms    int `json:"max_terms" yaml:"max_terms" mapstructure:"max_terms"`
}

// RerankConfig configures the reranker.
type RerankConfig struct {
	// Provider is cohere or none.
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`
	Model    string `json:"model" yaml:"model" mapstructure:"model"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxCandidates is N, the number of documents sent to the reranker (at most 50).
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates" mapstructure:"max_candidates"`

	// TopK is K, the number of documents kept for the answer.
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`
}

// LLMConfig configures the answer generator.
type LLMConfig struct {
	Model       string  `json:"model" yaml:"model" mapstructure:"model"`
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
	Temperature float32 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// MaxConcurrent caps generations in flight across all requests.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// StreamConfig configures the answer assembler.
type StreamConfig struct {
	// MaxQueries caps how many search queries are planned from a conversation (default 3).
	MaxQueries int `json:"max_queries" yaml:"max_queries" mapstructure:"max_queries"`

	// CandidatesPerQuery is the MaxResults used for each planned search (default 50).
	CandidatesPerQuery int `json:"candidates_per_query" yaml:"candidates_per_query" mapstructure:"candidates_per_query"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" mapstructure:"host"`
	Port int    `json:"port" yaml:"port" mapstructure:"port"`

	// RequestTimeout bounds non-streaming requests.
	RequestTimeout  time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	// StreamEvents is the chat completions stream_events default.
	StreamEvents bool `json:"stream_events" yaml:"stream_events" mapstructure:"stream_events"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// HistoryConfig configures the search history log.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path"`
}

// AppConfig is the full process configuration, built once at startup.
type AppConfig struct {
	Search    SearchConfig    `json:"search" yaml:"search" mapstructure:"search"`
	Providers ProvidersConfig `json:"providers" yaml:"providers" mapstructure:"providers"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	Expansion ExpansionConfig `json:"expansion" yaml:"expansion" mapstructure:"expansion"`
	Rerank    RerankConfig    `json:"rerank" yaml:"rerank" mapstructure:"rerank"`
	LLM       LLMConfig       `json:"llm" yaml:"llm" mapstructure:"llm"`
	Stream    StreamConfig    `json:"stream" yaml:"stream" mapstructure:"stream"`
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging" mapstructure:"logging"`
	History   HistoryConfig   `json:"history" yaml:"history" mapstructure:"history"`
}
