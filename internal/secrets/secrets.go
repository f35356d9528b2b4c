// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: semantic-scholar-api-key, openalex-email, openai-api-key,
// gemini-api-key, cohere-api-key, redis-password.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Key file names.
const (
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	OpenAlexEmail         = "openalex-email"
	OpenAIAPIKey          = "openai-api-key"
	GeminiAPIKey          = "gemini-api-key"
	CohereAPIKey          = "cohere-api-key"
	RedisPassword         = "redis-password"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged as warnings but do not abort.
func Load(dir string, logger *zap.Logger) (map[string]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills credential fields of cfg that are still empty from s.
// Explicit configuration always wins over the secrets directory.
func Apply(cfg *types.AppConfig, s map[string]string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = s[key]
		}
	}
	fill(&cfg.Providers.SemanticScholar.APIKey, SemanticScholarAPIKey)
	fill(&cfg.Providers.OpenAlex.Email, OpenAlexEmail)
	fill(&cfg.Embedding.Redis.Password, RedisPassword)
	fill(&cfg.Rerank.APIKey, CohereAPIKey)
	fill(&cfg.LLM.APIKey, OpenAIAPIKey)

	if cfg.Embedding.Provider == types.EmbedderOpenAI {
		fill(&cfg.Embedding.APIKey, OpenAIAPIKey)
	}
	switch cfg.Expansion.Provider {
	case types.GeneratorGemini:
		fill(&cfg.Expansion.APIKey, GeminiAPIKey)
	case types.GeneratorOpenAI:
		fill(&cfg.Expansion.APIKey, OpenAIAPIKey)
	}
}
