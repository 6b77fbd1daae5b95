package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// validTemperature reports whether t is a usable sampling temperature.
func validTemperature(t float32) bool {
	return t >= 0 && t <= 2
}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key (required for generation and embedding)
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://aistudio.google.com/apikey", ErrMissingAPIKey)
	}

	// Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.EmbedderDimensions < 1 || c.EmbedderDimensions > 4096 {
		return fmt.Errorf("%w: %d (must be 1-4096)", ErrInvalidEmbedderDimension, c.EmbedderDimensions)
	}

	// Pipeline configuration
	for _, t := range []struct {
		name  string
		value float32
	}{
		{"casual_temperature", c.Pipeline.CasualTemperature},
		{"history_temperature", c.Pipeline.HistoryTemperature},
		{"retrieval_temperature", c.Pipeline.RetrievalTemperature},
	} {
		if !validTemperature(t.value) {
			return fmt.Errorf("%w: %s=%g (must be 0-2)", ErrInvalidTemperature, t.name, t.value)
		}
	}
	if c.Pipeline.RetrievalTopK < 1 || c.Pipeline.RetrievalTopK > 50 {
		return fmt.Errorf("%w: %d (must be 1-50)", ErrInvalidTopK, c.Pipeline.RetrievalTopK)
	}
	if c.Pipeline.HistoryWindow < 1 || c.Pipeline.HistoryWindow > 100 {
		return fmt.Errorf("%w: %d (must be 1-100)", ErrInvalidHistoryWindow, c.Pipeline.HistoryWindow)
	}
	if c.Pipeline.WebResults < 1 || c.Pipeline.WebResults > 20 {
		return fmt.Errorf("%w: %d (must be 1-20)", ErrInvalidWebResults, c.Pipeline.WebResults)
	}

	// Ingest configuration. Overlap must leave the window moving forward,
	// otherwise chunking never terminates.
	if c.Ingest.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size=%d (must be >= 1)", ErrInvalidChunking, c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap=%d (must be 0 <= overlap < chunk_size)",
			ErrInvalidChunking, c.Ingest.ChunkOverlap)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrInvalidPostgresPassword)
	}

	// Warn on default password in non-local environments
	if c.PostgresPassword == "heron_dev_password" && c.PostgresHost != "localhost" && c.PostgresHost != "127.0.0.1" {
		slog.Warn("using default PostgreSQL password with remote host",
			"host", c.PostgresHost,
			"recommendation", "set postgres_password or DATABASE_URL")
	}

	validSSLModes := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q (must be one of: %v)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
