// Package config loads deskfix configuration from YAML with environment
// overrides layered on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all deskfix configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration (generation collaborator)
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine for knowledge-base similarity search
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Knowledge base storage and corpus
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// Web search
	Web WebConfig `yaml:"web"`

	// Command safety policy
	Policy PolicyConfig `yaml:"policy"`

	// Execution settings
	Execution ExecutionConfig `yaml:"execution"`

	// Session transcripts
	Session SessionConfig `yaml:"session"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the text-generation collaborator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // groq, openai-compatible
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the similarity engine. Provider "gemini" uses
// the hosted embedding API; "hash" is the deterministic offline fallback.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// KnowledgeConfig configures the support knowledge base.
type KnowledgeConfig struct {
	CorpusPath   string `yaml:"corpus_path"`
	DatabasePath string `yaml:"database_path"`
	TopK         int    `yaml:"top_k"`
}

// WebConfig configures web evidence retrieval.
type WebConfig struct {
	Enabled    bool   `yaml:"enabled"`
	MaxResults int    `yaml:"max_results"`
	Timeout    string `yaml:"timeout"`
}

// PolicyConfig configures the command deny-list.
type PolicyConfig struct {
	DenylistPath string `yaml:"denylist_path"`
	LiveReload   bool   `yaml:"live_reload"`
}

// ExecutionConfig configures command execution.
type ExecutionConfig struct {
	DefaultTimeout string `yaml:"default_timeout"`
}

// SessionConfig configures run transcripts.
type SessionConfig struct {
	TranscriptDir string `yaml:"transcript_dir"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "deskfix",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider: "groq",
			Model:    "llama3-70b-8192",
			BaseURL:  "https://api.groq.com/openai/v1",
			Timeout:  "120s",
		},

		Embedding: EmbeddingConfig{
			Provider: "hash",
			Model:    "text-embedding-004",
		},

		Knowledge: KnowledgeConfig{
			CorpusPath:   "data/tech_support.csv",
			DatabasePath: "data/deskfix.db",
			TopK:         5,
		},

		Web: WebConfig{
			Enabled:    false,
			MaxResults: 3,
			Timeout:    "8s",
		},

		Policy: PolicyConfig{
			DenylistPath: "configs/denylist.yaml",
			LiveReload:   false,
		},

		Execution: ExecutionConfig{
			DefaultTimeout: "60s",
		},

		Session: SessionConfig{
			TranscriptDir: "data/transcripts",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "groq"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.APIKey = key
		c.Embedding.Provider = "gemini"
	}
	if v := os.Getenv("ENABLE_WEB_SEARCH"); v != "" {
		c.Web.Enabled = isTruthy(v)
	}
	if path := os.Getenv("DESKFIX_DB"); path != "" {
		c.Knowledge.DatabasePath = path
	}
	if path := os.Getenv("DESKFIX_DENYLIST"); path != "" {
		c.Policy.DenylistPath = path
	}
	if level := os.Getenv("DESKFIX_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetWebTimeout returns the web search timeout as a duration.
func (c *Config) GetWebTimeout() time.Duration {
	d, err := time.ParseDuration(c.Web.Timeout)
	if err != nil {
		return 8 * time.Second
	}
	return d
}

// GetExecutionTimeout returns the command execution timeout as a duration.
func (c *Config) GetExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.DefaultTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
