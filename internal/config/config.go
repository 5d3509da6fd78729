// Package config loads runtime configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration. Gemini credentials are not
// listed here; the genai client reads them from the environment itself.
type Config struct {
	// LedgerDialect selects the transaction store: "sqlite" or "bigquery".
	LedgerDialect string `envconfig:"LEDGER_DIALECT" default:"sqlite"`
	// MemoryDialect selects the long-term memory store: "memory" or "sqlite".
	MemoryDialect string `envconfig:"MEMORY_DIALECT" default:"memory"`

	SQLitePath     string `envconfig:"SQLITE_PATH" default:"expense-agent.db"`
	CheckpointPath string `envconfig:"CHECKPOINT_PATH" default:"checkpoints.db"`
	MemoryPath     string `envconfig:"MEMORY_PATH" default:"memories.db"`
	TranscriptDir  string `envconfig:"TRANSCRIPT_DIR" default:"transcripts"`

	BigQueryProject string `envconfig:"BQ_PROJECT"`
	BigQueryDataset string `envconfig:"BQ_DATASET" default:"finance"`
	BigQueryTable   string `envconfig:"BQ_TABLE" default:"transactions"`

	GCSBucket string `envconfig:"GCS_BUCKET"`

	GenModel   string `envconfig:"GEN_MODEL" default:"gemini-2.5-flash"`
	EmbedModel string `envconfig:"EMBED_MODEL" default:"gemini-embedding-001"`

	UserID string `envconfig:"USER_ID" default:"local"`

	ContextBudget int `envconfig:"CONTEXT_BUDGET" default:"4000"`
	WindowTurns   int `envconfig:"WINDOW_TURNS" default:"6"`
	RetrieveK     int `envconfig:"RETRIEVE_K" default:"3"`
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("Load: process env: %w", err)
	}
	if cfg.LedgerDialect == "bigquery" && cfg.BigQueryProject == "" {
		return nil, fmt.Errorf("Load: BQ_PROJECT is required when LEDGER_DIALECT=bigquery")
	}
	return &cfg, nil
}
