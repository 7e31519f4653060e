package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	FastModel      string `toml:"fast_model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type ResolverConfig struct {
	SemanticThreshold float64           `toml:"semantic_threshold"`
	LexicalLimit      int               `toml:"lexical_limit"`
	SearchBound       int               `toml:"search_bound"`
	Abbreviations     map[string]string `toml:"abbreviations"`
}

type ValidatorConfig struct {
	MinConfidence float64 `toml:"min_confidence"`
}

type StorageConfig struct {
	PostgresURL string `toml:"postgres_url"`
}

type AuditConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers"`
	Topic        string   `toml:"topic"`
}

type ServerConfig struct {
	Address string `toml:"address"`
	// ParseTimeoutSeconds bounds one whole /v1/parse run, covering every
	// reasoning, embedding and catalog call it makes.
	ParseTimeoutSeconds int `toml:"parse_timeout_seconds"`
}

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Validator ValidatorConfig `toml:"validator"`
	Storage   StorageConfig   `toml:"storage"`
	Audit     AuditConfig     `toml:"audit"`
	Server    ServerConfig    `toml:"server"`
}

// Load reads the TOML file at path, then applies environment overrides.
// A missing file is not an error when env alone configures the service.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	case os.IsNotExist(err):
		// env-only configuration
	default:
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
		},
		Resolver: ResolverConfig{
			SemanticThreshold: 0.75,
			LexicalLimit:      50,
			SearchBound:       2,
		},
		Validator: ValidatorConfig{
			MinConfidence: 0.7,
		},
		Server: ServerConfig{
			Address:             ":8080",
			ParseTimeoutSeconds: 60,
		},
	}
}

func (c *Config) applyEnv() {
	setString(&c.LLM.Provider, "REPSET_LLM_PROVIDER")
	setString(&c.LLM.Model, "REPSET_LLM_MODEL")
	setString(&c.LLM.FastModel, "REPSET_LLM_FAST_MODEL")
	setString(&c.LLM.EmbeddingModel, "REPSET_LLM_EMBEDDING_MODEL")
	setString(&c.LLM.APIKey, "REPSET_LLM_API_KEY")
	setString(&c.LLM.BaseURL, "REPSET_LLM_BASE_URL")
	setString(&c.Storage.PostgresURL, "REPSET_POSTGRES_URL")
	setString(&c.Audit.Topic, "REPSET_AUDIT_TOPIC")
	setString(&c.Server.Address, "REPSET_HTTP_ADDR")
	setInt(&c.Server.ParseTimeoutSeconds, "REPSET_PARSE_TIMEOUT_SECONDS")
	setFloat(&c.Resolver.SemanticThreshold, "REPSET_SEMANTIC_THRESHOLD")
	setInt(&c.Resolver.LexicalLimit, "REPSET_LEXICAL_LIMIT")
	setInt(&c.Resolver.SearchBound, "REPSET_SEARCH_BOUND")
	setFloat(&c.Validator.MinConfidence, "REPSET_MIN_CONFIDENCE")

	if v := os.Getenv("REPSET_KAFKA_BROKERS"); v != "" {
		c.Audit.KafkaBrokers = splitCommas(v)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitCommas(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
