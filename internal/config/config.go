// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.heron/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Model: generation model, embedder model and vector dimensionality
//   - Pipeline: query-routing temperatures, retrieval and history limits
//   - Storage: PostgreSQL connection (see storage.go)
//   - Ingest: chunking and crawling limits
//   - WebSearch: optional web search API credentials
//   - Telemetry: OTLP trace export
//
// Secrets (Postgres password, web search API key) are masked in MarshalJSON
// and String. Validation lives in validation.go and returns sentinel errors
// usable with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates a sampling temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedder vector dimensionality is invalid.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top k")

	// ErrInvalidHistoryWindow indicates the conversation history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidWebResults indicates the web search result count is out of range.
	ErrInvalidWebResults = errors.New("invalid web search result count")

	// ErrInvalidChunking indicates the chunk size/overlap combination is invalid.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default but supports
	// truncation via OutputDimensionality; the documents schema stores
	// DefaultEmbedderDimensions-wide vectors.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimensions is the vector width of the documents table.
	DefaultEmbedderDimensions = 768

	// DefaultServeAddr is the default listen address for heron serve.
	DefaultServeAddr = "127.0.0.1:8080"
)

// PipelineConfig holds the query-routing parameters of the answer pipeline.
//
// The three temperatures correspond to the three query categories: casual
// chat wants variety, history and retrieval answers want to stay close to
// the provided material.
type PipelineConfig struct {
	CasualTemperature    float32 `mapstructure:"casual_temperature" json:"casual_temperature"`
	HistoryTemperature   float32 `mapstructure:"history_temperature" json:"history_temperature"`
	RetrievalTemperature float32 `mapstructure:"retrieval_temperature" json:"retrieval_temperature"`

	// RetrievalTopK is the number of document chunks fetched per query.
	RetrievalTopK int `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	// HistoryWindow is the number of recent exchanges loaded as context.
	HistoryWindow int `mapstructure:"history_window" json:"history_window"`
	// WebResults is the number of web snippets requested on fallback.
	WebResults int `mapstructure:"web_results" json:"web_results"`

	// ClassifyQueries toggles LLM query classification. When false every
	// query is treated as a retrieval question.
	ClassifyQueries bool `mapstructure:"classify_queries" json:"classify_queries"`
	// CheckHistory toggles the answered-from-history shortcut for
	// history questions.
	CheckHistory bool `mapstructure:"check_history" json:"check_history"`
}

// IngestConfig holds document ingestion limits.
type IngestConfig struct {
	// ChunkSize is the chunk window in words.
	ChunkSize int `mapstructure:"chunk_size" json:"chunk_size"`
	// ChunkOverlap is the number of words repeated between neighboring chunks.
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	// CrawlDepth bounds link depth for site crawls.
	CrawlDepth int `mapstructure:"crawl_depth" json:"crawl_depth"`
	// CrawlMaxPages bounds the number of pages fetched per crawl.
	CrawlMaxPages int `mapstructure:"crawl_max_pages" json:"crawl_max_pages"`
	// FetchTimeoutMs is the per-page HTTP timeout for URL ingestion.
	FetchTimeoutMs int `mapstructure:"fetch_timeout_ms" json:"fetch_timeout_ms"`
}

// WebSearchConfig holds web search API settings. The collaborator is
// optional: an empty APIKey leaves the pipeline local-only.
type WebSearchConfig struct {
	// APIKey authenticates against the search API. SENSITIVE: masked in MarshalJSON.
	APIKey string `mapstructure:"api_key" json:"api_key"`
	// BaseURL is the search API endpoint.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// TimeoutMs is the per-request HTTP timeout.
	TimeoutMs int `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// MarshalJSON masks the API key.
func (w WebSearchConfig) MarshalJSON() ([]byte, error) {
	type alias WebSearchConfig
	a := alias(w)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal web search config: %w", err)
	}
	return data, nil
}

// TelemetryConfig holds OTLP trace export settings.
// An empty Endpoint disables tracing.
type TelemetryConfig struct {
	// Endpoint is the OTLP HTTP collector address (host:port).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag.
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the service name attached to exported spans.
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON or the nested
// struct's MarshalJSON.
type Config struct {
	// Model configuration
	ModelName          string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel      string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimensions int    `mapstructure:"embedder_dimensions" json:"embedder_dimensions"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline" json:"pipeline"`

	// Ingestion configuration
	Ingest IngestConfig `mapstructure:"ingest" json:"ingest"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Web search configuration (optional collaborator)
	WebSearch WebSearchConfig `mapstructure:"web_search" json:"web_search"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry" json:"telemetry"`

	// Serve configuration
	ServeAddr   string   `mapstructure:"serve_addr" json:"serve_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	// TrustProxy trusts X-Real-IP/X-Forwarded-For headers. Set true only
	// behind a reverse proxy.
	TrustProxy bool `mapstructure:"trust_proxy" json:"trust_proxy"`
	// RateBurst is the per-IP rate limiter burst size (0 = default).
	RateBurst int `mapstructure:"rate_burst" json:"rate_burst"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	// Configuration directory: ~/.heron/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".heron")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error, defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Model defaults
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimensions", DefaultEmbedderDimensions)

	// Pipeline defaults
	viper.SetDefault("pipeline.casual_temperature", 0.7)
	viper.SetDefault("pipeline.history_temperature", 0.3)
	viper.SetDefault("pipeline.retrieval_temperature", 0.2)
	viper.SetDefault("pipeline.retrieval_top_k", 5)
	viper.SetDefault("pipeline.history_window", 5)
	viper.SetDefault("pipeline.web_results", 3)
	viper.SetDefault("pipeline.classify_queries", true)
	viper.SetDefault("pipeline.check_history", true)

	// Ingest defaults
	viper.SetDefault("ingest.chunk_size", 3500)
	viper.SetDefault("ingest.chunk_overlap", 150)
	viper.SetDefault("ingest.crawl_depth", 2)
	viper.SetDefault("ingest.crawl_max_pages", 20)
	viper.SetDefault("ingest.fetch_timeout_ms", 30000)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "heron")
	viper.SetDefault("postgres_password", "heron_dev_password")
	viper.SetDefault("postgres_db_name", "heron")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Web search defaults (API key intentionally has no default)
	viper.SetDefault("web_search.base_url", "https://api.tavily.com")
	viper.SetDefault("web_search.timeout_ms", 15000)

	// Telemetry defaults (endpoint empty = tracing disabled)
	viper.SetDefault("telemetry.environment", "dev")
	viper.SetDefault("telemetry.service_name", "heron")

	// Serve defaults
	viper.SetDefault("serve_addr", DefaultServeAddr)
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("trust_proxy", false)

	// Logging defaults
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variables explicitly.
//
// GEMINI_API_KEY is read directly by Genkit (not via Viper); Validate()
// checks its presence.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't
	// fail). A panic here is a bug in this file, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Web search API key (optional; absence disables the web collaborator)
	mustBind("web_search.api_key", "TAVILY_API_KEY")
	mustBind("web_search.base_url", "HERON_WEB_SEARCH_URL")

	// Model overrides
	mustBind("model_name", "HERON_MODEL_NAME")
	mustBind("embedder_model", "HERON_EMBEDDER_MODEL")

	// Serve mode
	mustBind("serve_addr", "HERON_SERVE_ADDR")
	mustBind("cors_origins", "HERON_CORS_ORIGINS")
	mustBind("trust_proxy", "HERON_TRUST_PROXY")
	mustBind("rate_burst", "HERON_RATE_BURST")

	// Telemetry
	mustBind("telemetry.endpoint", "HERON_OTLP_ENDPOINT")
	mustBind("telemetry.environment", "HERON_ENVIRONMENT")

	// Logging
	mustBind("log_level", "HERON_LOG_LEVEL")
	mustBind("log_json", "HERON_LOG_JSON")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid substring matches against the real secret.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 bytes or fewer are fully masked; longer secrets keep the
// first and last 2 characters for debug utility.
//
// THREAT MODEL: this defends against accidental logging of real secrets.
// It is not cryptographically secure; if logs are compromised, rotate.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - WebSearch.APIKey (via WebSearchConfig.MarshalJSON)
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "googleai/gemini-2.5-flash". A ModelName already containing a
// "/" is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}

// WebSearchEnabled reports whether the optional web search collaborator
// is configured.
func (c *Config) WebSearchEnabled() bool {
	return c.WebSearch.APIKey != ""
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
