package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Logging     LoggingConfig  `toml:"logging"`
	Storage     StorageConfig  `toml:"storage"`
	Policy      PolicyConfig   `toml:"policy"`
	Pipeline    PipelineConfig `toml:"pipeline"`
	Claude      ClaudeConfig   `toml:"claude"`
	Gemini      GeminiConfig   `toml:"gemini"`
	Events      EventsConfig   `toml:"events"`
	Report      ReportConfig   `toml:"report"`
	Delivery    DeliveryConfig `toml:"delivery"`
	Templates   TemplateConfig `toml:"templates"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output []string `toml:"output" validate:"dive,oneof=stdout console file"` // "stdout", "console", "file"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// PolicyConfig holds the audit policy. It is converted into immutable
// classifier and compliance policies when services are built.
type PolicyConfig struct {
	NoiseThresholds       map[string]float64 `toml:"noise_thresholds" validate:"dive,gt=0"` // asset class -> min |OI Δ|
	SectionAssets         map[string]string  `toml:"section_assets" validate:"dive,oneof=equity rates fx"`
	ExtraActorTerms       []string           `toml:"extra_actor_terms"`
	ExtraDirectionalTerms []string           `toml:"extra_directional_terms"`
	Placeholder           string             `toml:"placeholder"`
	MaxAgeDays            int                `toml:"max_age_days" validate:"min=0,max=30"`
}

// PipelineConfig controls the scheduled daily run
type PipelineConfig struct {
	Enabled        bool   `toml:"enabled"`
	Schedule       string `toml:"schedule"` // 5-field cron, e.g. "30 7 * * 1-5"
	WisdomTreePDF  string `toml:"wisdomtree_pdf"`
	CMEPDF         string `toml:"cme_pdf"`
	Provider       string `toml:"provider" validate:"oneof=claude gemini all"` // "all" drafts with both providers (A/B)
	RetryAttempts  int    `toml:"retry_attempts" validate:"min=1,max=10"`
	RetryBaseDelay string `toml:"retry_base_delay"` // duration string, doubled per attempt
	RateLimit      string `toml:"rate_limit"`       // minimum gap between LLM calls
	Timeout        string `toml:"timeout"`          // per-run timeout

	RunMode         string   `toml:"run_mode" validate:"omitempty,oneof=production benchmark"`
	BenchmarkModels []string `toml:"benchmark_models"` // "provider:model" entries drafted in benchmark mode
}

// Pipeline providers and run modes
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
	ProviderAll    = "all"

	RunModeProduction = "production"
	RunModeBenchmark  = "benchmark"
)

// ModelRef names one provider and model, parsed from "claude:claude-opus-4-5".
// An empty Model means the provider's configured model.
type ModelRef struct {
	Provider string
	Model    string
}

// ParseModelRef parses "provider" or "provider:model"
func ParseModelRef(s string) (ModelRef, error) {
	provider, model, _ := strings.Cut(strings.TrimSpace(s), ":")
	ref := ModelRef{Provider: strings.ToLower(strings.TrimSpace(provider)), Model: strings.TrimSpace(model)}
	switch ref.Provider {
	case ProviderClaude, ProviderGemini:
		return ref, nil
	default:
		return ModelRef{}, fmt.Errorf("unsupported provider %q in %q", provider, s)
	}
}

// IsBenchmark reports whether runs draft with every benchmark model
func (p PipelineConfig) IsBenchmark() bool {
	return strings.EqualFold(p.RunMode, RunModeBenchmark)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens" validate:"min=256"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature" validate:"min=0,max=1"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature" validate:"min=0,max=2"`
}

type EventsConfig struct {
	CalendarFile string `toml:"calendar_file"` // YAML dated events and holidays; empty uses expiry rules only
}

type ReportConfig struct {
	OutputDir string `toml:"output_dir" validate:"required"`
	Title     string `toml:"title"`
}

// DeliveryConfig controls the .eml artifact written for each run. Sending is external.
type DeliveryConfig struct {
	Enabled       bool     `toml:"enabled"`
	OutboxDir     string   `toml:"outbox_dir"`
	From          string   `toml:"from" validate:"omitempty,email"`
	To            []string `toml:"to" validate:"dive,email"`
	SubjectPrefix string   `toml:"subject_prefix"`
}

// TemplateConfig points at a directory of prompt templates overriding the embedded ones
type TemplateConfig struct {
	Dir string `toml:"dir"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8086,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Policy: PolicyConfig{
			NoiseThresholds: map[string]float64{
				"equity": 50_000,
				"rates":  75_000,
				"fx":     25_000,
			},
			SectionAssets: map[string]string{
				"EQUITIES": "equity",
				"RATES":    "rates",
				"FX":       "fx",
			},
			MaxAgeDays: DefaultMaxAgeDays,
		},
		Pipeline: PipelineConfig{
			Enabled:        false,
			Schedule:       "30 7 * * 1-5", // 07:30 on weekdays
			Provider:       "claude",
			RunMode:        RunModeProduction,
			RetryAttempts:  3,
			RetryBaseDelay: "2s",
			RateLimit:      "1s",
			Timeout:        "10m",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-5",
			MaxTokens:   8192,
			Timeout:     "5m",
			Temperature: 0.2,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "5m",
			Temperature: 0.2,
		},
		Report: ReportConfig{
			OutputDir: "./reports",
			Title:     "Macro Dashboard",
		},
		Delivery: DeliveryConfig{
			OutboxDir:     "./outbox",
			SubjectPrefix: "[macrolens]",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied by the caller with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies MACROLENS_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MACROLENS_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("MACROLENS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MACROLENS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging
	if level := os.Getenv("MACROLENS_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if output := os.Getenv("MACROLENS_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}

	// Storage
	if path := os.Getenv("MACROLENS_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if reset := os.Getenv("MACROLENS_BADGER_RESET_ON_STARTUP"); reset != "" {
		config.Storage.Badger.ResetOnStartup = reset == "true" || reset == "1"
	}

	// Policy
	if maxAge := os.Getenv("MACROLENS_POLICY_MAX_AGE_DAYS"); maxAge != "" {
		if d, err := strconv.Atoi(maxAge); err == nil {
			config.Policy.MaxAgeDays = d
		}
	}

	// Pipeline
	if enabled := os.Getenv("MACROLENS_PIPELINE_ENABLED"); enabled != "" {
		config.Pipeline.Enabled = enabled == "true" || enabled == "1"
	}
	if schedule := os.Getenv("MACROLENS_PIPELINE_SCHEDULE"); schedule != "" {
		config.Pipeline.Schedule = schedule
	}
	if provider := os.Getenv("MACROLENS_PIPELINE_PROVIDER"); provider != "" {
		config.Pipeline.Provider = strings.ToLower(provider)
	}
	if mode := os.Getenv("MACROLENS_PIPELINE_RUN_MODE"); mode != "" {
		config.Pipeline.RunMode = strings.ToLower(mode)
	}
	if refs := os.Getenv("MACROLENS_PIPELINE_BENCHMARK_MODELS"); refs != "" {
		config.Pipeline.BenchmarkModels = splitList(refs)
	}
	if pdf := os.Getenv("MACROLENS_PIPELINE_WISDOMTREE_PDF"); pdf != "" {
		config.Pipeline.WisdomTreePDF = pdf
	}
	if pdf := os.Getenv("MACROLENS_PIPELINE_CME_PDF"); pdf != "" {
		config.Pipeline.CMEPDF = pdf
	}

	// LLM keys: MACROLENS_* first, then the provider's standard variable
	if key := firstEnv("MACROLENS_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if model := os.Getenv("MACROLENS_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if key := firstEnv("MACROLENS_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if model := os.Getenv("MACROLENS_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// Paths
	if file := os.Getenv("MACROLENS_EVENTS_CALENDAR_FILE"); file != "" {
		config.Events.CalendarFile = file
	}
	if dir := os.Getenv("MACROLENS_REPORT_OUTPUT_DIR"); dir != "" {
		config.Report.OutputDir = dir
	}
	if dir := os.Getenv("MACROLENS_DELIVERY_OUTBOX_DIR"); dir != "" {
		config.Delivery.OutboxDir = dir
	}
	if to := os.Getenv("MACROLENS_DELIVERY_TO"); to != "" {
		config.Delivery.To = splitList(to)
	}
	if dir := os.Getenv("MACROLENS_TEMPLATES_DIR"); dir != "" {
		config.Templates.Dir = dir
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks struct tags, the cron schedule and the duration strings
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Pipeline.Enabled {
		if err := ValidateSchedule(c.Pipeline.Schedule); err != nil {
			return fmt.Errorf("invalid pipeline.schedule: %w", err)
		}
	}

	durations := map[string]string{
		"pipeline.retry_base_delay": c.Pipeline.RetryBaseDelay,
		"pipeline.rate_limit":       c.Pipeline.RateLimit,
		"pipeline.timeout":          c.Pipeline.Timeout,
		"claude.timeout":            c.Claude.Timeout,
		"gemini.timeout":            c.Gemini.Timeout,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}

	if c.Pipeline.IsBenchmark() {
		if len(c.Pipeline.BenchmarkModels) == 0 {
			return fmt.Errorf("pipeline.run_mode is benchmark but pipeline.benchmark_models is empty")
		}
		for _, m := range c.Pipeline.BenchmarkModels {
			if _, err := ParseModelRef(m); err != nil {
				return fmt.Errorf("invalid pipeline.benchmark_models: %w", err)
			}
		}
	}

	if c.Delivery.Enabled && (c.Delivery.From == "" || len(c.Delivery.To) == 0) {
		return fmt.Errorf("delivery is enabled but delivery.from or delivery.to is empty")
	}

	return nil
}

// ValidateSchedule validates a 5-field cron expression and ensures a minimum 5-minute interval
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// ParseDurationOr parses value, returning fallback when it is empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
