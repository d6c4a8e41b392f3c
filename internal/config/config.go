// Package config resolves aoai settings from ~/.config/aoai/config.toml and
// the process environment. Environment variables always win over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Environment keys. The names match the ingestion service's deployment
// manifests and must not change.
const (
	EnvEndpoint             = "AZURE_OPENAI_ENDPOINT"
	EnvAPIVersion           = "AZURE_OPENAI_API_VERSION"
	EnvCompletionDeployment = "AZURE_GENERATION_MODEL_DEPLOYMENT"
	EnvEmbeddingDeployment  = "AZURE_EMBEDDING_MODEL_DEPLOYMENT"
	EnvAPIKey               = "AZURE_OPENAI_KEY"
)

// Config holds all aoai settings.
type Config struct {
	Azure AzureConfig `toml:"azure"`
	Log   LogConfig   `toml:"log"`
	Batch BatchConfig `toml:"batch"`
	Cache CacheConfig `toml:"cache"`
}

// AzureConfig identifies the Azure OpenAI resource and its deployments.
type AzureConfig struct {
	Endpoint             string `toml:"endpoint"`
	APIVersion           string `toml:"api_version"`
	CompletionDeployment string `toml:"completion_deployment"`
	EmbeddingDeployment  string `toml:"embedding_deployment"`
	APIKey               string `toml:"api_key"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// BatchConfig controls embed-batch.
type BatchConfig struct {
	Concurrency       int     `toml:"concurrency"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// CacheConfig controls the on-disk embedding cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns sensible defaults. Azure settings have none: a missing
// value must surface as a warning rather than silently pointing somewhere.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Batch: BatchConfig{
			Concurrency:       4,
			RequestsPerSecond: 5,
		},
		Cache: CacheConfig{
			Enabled: false,
		},
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "aoai", "config.toml"), nil
}

// DefaultCachePath returns where the embedding cache lives when the config
// does not say.
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "aoai", "embeddings.db"), nil
}

// Load reads the default config file if it exists and applies environment
// overrides.
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		cfg := Default()
		cfg.Azure = cfg.Azure.withEnv()
		return cfg, nil // No home dir: defaults plus env.
	}
	return LoadFile(path)
}

// LoadFile reads the config at path, falling back to defaults when the file
// does not exist, and applies environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config: load %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: stat %s: %w", path, err)
	}

	cfg.Azure = cfg.Azure.withEnv()
	return cfg, nil
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("config: close %s: %w", path, err)
	}
	return nil
}

// FromEnv returns Azure settings taken only from the environment.
func FromEnv() AzureConfig {
	return AzureConfig{}.withEnv()
}

func (a AzureConfig) withEnv() AzureConfig {
	if v := os.Getenv(EnvEndpoint); v != "" {
		a.Endpoint = v
	}
	if v := os.Getenv(EnvAPIVersion); v != "" {
		a.APIVersion = v
	}
	if v := os.Getenv(EnvCompletionDeployment); v != "" {
		a.CompletionDeployment = v
	}
	if v := os.Getenv(EnvEmbeddingDeployment); v != "" {
		a.EmbeddingDeployment = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		a.APIKey = v
	}
	return a
}

// Trimmed returns a with surrounding whitespace removed from every value, so
// a blank value reads as unset everywhere.
func (a AzureConfig) Trimmed() AzureConfig {
	a.Endpoint = strings.TrimSpace(a.Endpoint)
	a.APIVersion = strings.TrimSpace(a.APIVersion)
	a.CompletionDeployment = strings.TrimSpace(a.CompletionDeployment)
	a.EmbeddingDeployment = strings.TrimSpace(a.EmbeddingDeployment)
	a.APIKey = strings.TrimSpace(a.APIKey)
	return a
}

// Missing returns the environment key of every unset Azure value, in a
// stable order.
func (a AzureConfig) Missing() []string {
	var missing []string
	for _, kv := range []struct {
		key string
		val string
	}{
		{EnvEndpoint, a.Endpoint},
		{EnvAPIVersion, a.APIVersion},
		{EnvCompletionDeployment, a.CompletionDeployment},
		{EnvEmbeddingDeployment, a.EmbeddingDeployment},
		{EnvAPIKey, a.APIKey},
	} {
		if strings.TrimSpace(kv.val) == "" {
			missing = append(missing, kv.key)
		}
	}
	return missing
}

// MaskSecret hides all but the last four characters of s.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", 10) + s[len(s)-4:]
}
