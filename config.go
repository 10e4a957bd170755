package crickrag

import (
	"os"
	"path/filepath"
)

// Config holds all configuration for the crickrag engine.
type Config struct {
	// VectorDBPath is the full path to the SQLite vector store file.
	// If empty, defaults to ~/.crickrag/<VectorDBName>.db
	VectorDBPath string `json:"vector_db_path" yaml:"vector_db_path"`

	// VectorDBName is the name for the vector store (used when
	// VectorDBPath is empty). Defaults to "crickrag".
	VectorDBName string `json:"vector_db_name" yaml:"vector_db_name"`

	// StorageDir controls where the vector store is created when
	// VectorDBPath is not explicitly set. Options: "home" (default) uses
	// ~/.crickrag/, "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// StatsDB configures the relational statistics database.
	StatsDB StatsDBConfig `json:"stats_db" yaml:"stats_db"`

	// LLM providers.
	Chat      LLMConfig `json:"chat" yaml:"chat"`
	Grading   LLMConfig `json:"grading" yaml:"grading"` // optional: fast model for yes/no grading (defaults to Chat)
	Embedding LLMConfig `json:"embedding" yaml:"embedding"`

	// Search configures the web search fallback.
	Search SearchConfig `json:"search" yaml:"search"`

	// Chunking for document ingestion.
	MaxChunkTokens int `json:"max_chunk_tokens" yaml:"max_chunk_tokens"`
	ChunkOverlap   int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Retrieval
	MaxResults int `json:"max_results" yaml:"max_results"`

	// MaxRewrites bounds the number of question-rewrite cycles before the
	// workflow accepts a degraded answer.
	MaxRewrites int `json:"max_rewrites" yaml:"max_rewrites"`

	// Embedding dimensions (must match model).
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// RedisAddr enables the answer cache when non-empty (host:port).
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
}

// StatsDBConfig holds PostgreSQL connection parameters for the cricket
// statistics database. Defaults match the DB_* environment variables.
type StatsDBConfig struct {
	Name     string `json:"name" yaml:"name"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Host     string `json:"host" yaml:"host"`
	Port     string `json:"port" yaml:"port"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // openai, groq, openrouter, ollama, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// SearchConfig configures the web search API client.
type SearchConfig struct {
	APIKey     string `json:"api_key" yaml:"api_key"`
	BaseURL    string `json:"base_url" yaml:"base_url"`
	MaxResults int    `json:"max_results" yaml:"max_results"`
	TimeoutSec int    `json:"timeout_sec" yaml:"timeout_sec"`
}

// DefaultConfig returns a Config with sensible defaults: local
// PostgreSQL for stats, OpenAI-hosted models, and a two-rewrite budget.
func DefaultConfig() Config {
	return Config{
		VectorDBName: "crickrag",
		StorageDir:   "home",
		StatsDB: StatsDBConfig{
			Name:     "ipl_data",
			User:     "postgres",
			Password: "postgres",
			Host:     "localhost",
			Port:     "5432",
			SSLMode:  "disable",
		},
		Chat: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
		},
		Grading: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Embedding: LLMConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Search: SearchConfig{
			MaxResults: 3,
			TimeoutSec: 10,
		},
		MaxChunkTokens: 250,
		ChunkOverlap:   50,
		MaxResults:     4,
		MaxRewrites:    2,
		EmbeddingDim:   1536,
	}
}

// resolveVectorDBPath computes the final vector store path from config fields.
func (c *Config) resolveVectorDBPath() string {
	if c.VectorDBPath != "" {
		return c.VectorDBPath
	}

	name := c.VectorDBName
	if name == "" {
		name = "crickrag"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".crickrag", name+".db")
	}
}
