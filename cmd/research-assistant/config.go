// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/research-assistant/internal/secrets"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// setDefaults registers every configuration key so that environment
// variables resolve even when no config file sets the key.
func setDefaults(v *viper.Viper) {
	w := types.DefaultWeights()

	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("search.user_agent", "research-assistant/"+version)
	v.SetDefault("search.max_retries", 3)
	v.SetDefault("search.max_results", 20)
	v.SetDefault("search.provider_timeout", 15*time.Second)
	v.SetDefault("search.health_timeout", 10*time.Second)
	v.SetDefault("search.default_databases", []string{})
	v.SetDefault("search.max_expanded_queries", 2)
	v.SetDefault("search.weights.lexical", w.Lexical)
	v.SetDefault("search.weights.semantic", w.Semantic)
	v.SetDefault("search.weights.citation", w.Citation)
	v.SetDefault("search.weights.recency", w.Recency)

	v.SetDefault("providers.arxiv.enabled", true)
	v.SetDefault("providers.semantic_scholar.enabled", true)
	v.SetDefault("providers.semantic_scholar.api_key", "")
	v.SetDefault("providers.openalex.enabled", true)
	v.SetDefault("providers.openalex.email", "")
	v.SetDefault("providers.searxng.enabled", false)
	v.SetDefault("providers.searxng.base_url", "http://localhost:8888")
	v.SetDefault("providers.searxng.access", string(types.AccessUnknown))
	v.SetDefault("providers.searxng.require_authors", false)
	v.SetDefault("providers.searxng.require_abstract", false)
	v.SetDefault("providers.searxng.require_publisher", false)

	v.SetDefault("embedding.provider", types.EmbedderNone)
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimensions", 256)
	v.SetDefault("embedding.cache", "memory")
	v.SetDefault("embedding.cache_size", 10000)
	v.SetDefault("embedding.cache_ttl", 24*time.Hour)
	v.SetDefault("embedding.redis.addr", "localhost:6379")
	v.SetDefault("embedding.redis.password", "")
	v.SetDefault("embedding.redis.db", 0)

	v.SetDefault("expansion.provider", types.GeneratorGemini)
	v.SetDefault("expansion.model", "")
	v.SetDefault("expansion.api_key", "")
	v.SetDefault("expansion.base_url", "")
	v.SetDefault("expansion.thesaurus_file", "")
	v.SetDefault("expansion.max_synonyms", 5)
	v.SetDefault("expansion.max_terms", 5)

	v.SetDefault("rerank.provider", "none")
	v.SetDefault("rerank.model", "")
	v.SetDefault("rerank.api_key", "")
	v.SetDefault("rerank.base_url", "")
	v.SetDefault("rerank.max_candidates", 50)
	v.SetDefault("rerank.top_k", 10)

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.max_concurrent", 4)

	v.SetDefault("stream.max_queries", 3)
	v.SetDefault("stream.candidates_per_query", 50)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.stream_events", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", defaultHistoryPath())
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.db"
	}
	return filepath.Join(home, ".local", "share", "research-assistant", "history.db")
}

// loadConfig unmarshals the resolved viper configuration and fills still
// empty credentials from the secrets directory.
func loadConfig() (types.AppConfig, error) {
	var cfg types.AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.AppConfig{}, fmt.Errorf("reading configuration: %w", err)
	}
	if err := cfg.Search.Weights.Validate(); err != nil {
		return types.AppConfig{}, err
	}
	secrets.Apply(&cfg, loadedSecrets)
	return cfg, nil
}
