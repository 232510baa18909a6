package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the taskctx service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Graph    GraphConfig    `yaml:"graph"`
	LLM      LLMConfig      `yaml:"llm"`
	Ranking  RankingConfig  `yaml:"ranking"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
// APIKeys maps a bearer key to the principal id it authenticates.
// When no keys are configured the principal is read from DevPrincipalHeader.
type AuthConfig struct {
	APIKeys            map[string]string `yaml:"api_keys"`
	DevPrincipalHeader string            `yaml:"dev_principal_header"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds relational store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite file, ":memory:" for tests
}

// RedisConfig holds Redis connection settings. Empty Addrs disables Redis.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool { return len(r.Addrs) > 0 }

// GraphConfig holds task relationship graph settings.
type GraphConfig struct {
	Driver       string `yaml:"driver"` // sqlite (default), redis, memory
	DefaultDepth int    `yaml:"default_depth"`
	MaxDepth     int    `yaml:"max_depth"`
}

// LLMConfig holds the OpenAI-compatible provider settings.
// An empty APIKey selects lexical retrieval for the lifetime of the process.
type LLMConfig struct {
	Provider       string       `yaml:"provider"`
	APIKey         string       `yaml:"api_key"`
	BaseURL        string       `yaml:"base_url"`
	EmbeddingModel string       `yaml:"embedding_model"`
	ChatModel      string       `yaml:"chat_model"`
	Dimensions     int          `yaml:"dimensions"`
	RatePerSec     float64      `yaml:"rate_per_sec"` // 0 = unlimited
	Budget         BudgetConfig `yaml:"budget"`
}

// Enabled reports whether the provider is configured.
func (l LLMConfig) Enabled() bool { return l.APIKey != "" }

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// RankingConfig holds relevance ranking tunables.
type RankingConfig struct {
	EmbeddingConcurrency int           `yaml:"embedding_concurrency"`
	LLMSnippets          *bool         `yaml:"llm_snippets"`
	Search               ProfileConfig `yaml:"search"`
	TaskContext          ProfileConfig `yaml:"task_context"`
}

// LLMSnippetsEnabled reports whether transcript snippets may be refined by the completer.
func (r RankingConfig) LLMSnippetsEnabled() bool {
	return r.LLMSnippets == nil || *r.LLMSnippets
}

// ProfileConfig holds thresholds and bounds for one retrieval flow.
// Thresholds are pointers so an explicit 0 survives ApplyDefaults.
type ProfileConfig struct {
	TaskThreshold          *float64 `yaml:"task_threshold"`
	TranscriptThreshold    *float64 `yaml:"transcript_threshold"`
	Limit                  int      `yaml:"limit"`
	TaskLimit              int      `yaml:"task_limit"`
	TranscriptLimit        int      `yaml:"transcript_limit"`
	LexicalTaskLimit       int      `yaml:"lexical_task_limit"`
	LexicalTranscriptLimit int      `yaml:"lexical_transcript_limit"`
}

// Thresholds returns the task and transcript thresholds, 0 for any left unset.
func (p ProfileConfig) Thresholds() (task, transcript float64) {
	if p.TaskThreshold != nil {
		task = *p.TaskThreshold
	}
	if p.TranscriptThreshold != nil {
		transcript = *p.TranscriptThreshold
	}
	return task, transcript
}

// Float64 returns a pointer to v, for building ProfileConfig literals.
func Float64(v float64) *float64 { return &v }

// MaxEmbeddingConcurrency bounds in-flight embedding calls per request.
const MaxEmbeddingConcurrency = 5

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, when present, is loaded first.
func Load(env string) (Config, error) {
	_ = godotenv.Load()

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "taskctx.db"
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Graph.Driver == "" {
		c.Graph.Driver = "sqlite"
	}
	if c.Graph.DefaultDepth <= 0 {
		c.Graph.DefaultDepth = 2
	}
	if c.Graph.MaxDepth <= 0 {
		c.Graph.MaxDepth = 5
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.EmbeddingModel == "" {
		c.LLM.EmbeddingModel = "text-embedding-ada-002"
	}
	if c.LLM.ChatModel == "" {
		c.LLM.ChatModel = "gpt-3.5-turbo"
	}
	if c.Ranking.EmbeddingConcurrency <= 0 {
		c.Ranking.EmbeddingConcurrency = 1
	}
	if c.Auth.DevPrincipalHeader == "" {
		c.Auth.DevPrincipalHeader = "X-User-ID"
	}
	c.Ranking.Search.applyDefaults(ProfileConfig{
		TaskThreshold:          Float64(0.5),
		TranscriptThreshold:    Float64(0.5),
		Limit:                  10,
		TaskLimit:              20,
		TranscriptLimit:        10,
		LexicalTaskLimit:       5,
		LexicalTranscriptLimit: 5,
	})
	c.Ranking.TaskContext.applyDefaults(ProfileConfig{
		TaskThreshold:          Float64(0.6),
		TranscriptThreshold:    Float64(0.5),
		Limit:                  8,
		TaskLimit:              20,
		TranscriptLimit:        10,
		LexicalTaskLimit:       5,
		LexicalTranscriptLimit: 3,
	})
}

func (p *ProfileConfig) applyDefaults(d ProfileConfig) {
	if p.TaskThreshold == nil {
		p.TaskThreshold = Float64(*d.TaskThreshold)
	}
	if p.TranscriptThreshold == nil {
		p.TranscriptThreshold = Float64(*d.TranscriptThreshold)
	}
	if p.Limit <= 0 {
		p.Limit = d.Limit
	}
	if p.TaskLimit <= 0 {
		p.TaskLimit = d.TaskLimit
	}
	if p.TranscriptLimit <= 0 {
		p.TranscriptLimit = d.TranscriptLimit
	}
	if p.LexicalTaskLimit <= 0 {
		p.LexicalTaskLimit = d.LexicalTaskLimit
	}
	if p.LexicalTranscriptLimit <= 0 {
		p.LexicalTranscriptLimit = d.LexicalTranscriptLimit
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Graph.Driver {
	case "sqlite", "memory":
	case "redis":
		if !c.Redis.Enabled() {
			return fmt.Errorf("graph.driver redis requires redis.addrs")
		}
	default:
		return fmt.Errorf("graph.driver must be \"sqlite\", \"redis\" or \"memory\", got %q", c.Graph.Driver)
	}
	if c.Graph.DefaultDepth > c.Graph.MaxDepth {
		return fmt.Errorf("graph.default_depth (%d) exceeds graph.max_depth (%d)", c.Graph.DefaultDepth, c.Graph.MaxDepth)
	}
	switch c.LLM.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("llm.budget.action must be \"warn\" or \"reject\", got %q", c.LLM.Budget.Action)
	}
	if c.LLM.RatePerSec < 0 {
		return fmt.Errorf("llm.rate_per_sec must not be negative, got %v", c.LLM.RatePerSec)
	}
	if c.Ranking.EmbeddingConcurrency > MaxEmbeddingConcurrency {
		return fmt.Errorf("ranking.embedding_concurrency must be between 1 and %d, got %d",
			MaxEmbeddingConcurrency, c.Ranking.EmbeddingConcurrency)
	}
	if err := c.Ranking.Search.validate("ranking.search"); err != nil {
		return err
	}
	return c.Ranking.TaskContext.validate("ranking.task_context")
}

func (p *ProfileConfig) validate(prefix string) error {
	for name, v := range map[string]*float64{
		"task_threshold":       p.TaskThreshold,
		"transcript_threshold": p.TranscriptThreshold,
	} {
		if v != nil && (*v < -1 || *v > 1) {
			return fmt.Errorf("%s.%s must be between -1 and 1, got %v", prefix, name, *v)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
