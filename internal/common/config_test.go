package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 50_000.0, cfg.Policy.NoiseThresholds["equity"])
	assert.Equal(t, 75_000.0, cfg.Policy.NoiseThresholds["rates"])
	assert.Equal(t, DefaultMaxAgeDays, cfg.Policy.MaxAgeDays)
	assert.Equal(t, 3, cfg.Pipeline.RetryAttempts)
}

func TestLoadFromFiles_LaterFilesWin(t *testing.T) {
	base := writeConfig(t, "base.toml", `
[server]
port = 9000

[policy.noise_thresholds]
equity = 60000.0

[pipeline]
provider = "gemini"
`)
	override := writeConfig(t, "override.toml", `
[server]
port = 9100
`)

	cfg, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.Pipeline.Provider)
	assert.Equal(t, 60_000.0, cfg.Policy.NoiseThresholds["equity"])
	assert.Equal(t, "localhost", cfg.Server.Host, "defaults survive when a file omits a key")
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("MACROLENS_SERVER_PORT", "9200")
	t.Setenv("MACROLENS_PIPELINE_PROVIDER", "GEMINI")
	t.Setenv("MACROLENS_CLAUDE_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("MACROLENS_DELIVERY_TO", "a@example.com, b@example.com")

	cfg, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.Pipeline.Provider)
	assert.Equal(t, "sk-test", cfg.Claude.APIKey)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Delivery.To)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFromFiles(writeConfig(t, "bad.toml", "[server\nport = "))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"non-positive threshold", func(c *Config) { c.Policy.NoiseThresholds["fx"] = 0 }},
		{"unknown section asset", func(c *Config) { c.Policy.SectionAssets["CREDIT"] = "credit" }},
		{"unknown provider", func(c *Config) { c.Pipeline.Provider = "openai" }},
		{"bad schedule", func(c *Config) { c.Pipeline.Enabled = true; c.Pipeline.Schedule = "* * * * *" }},
		{"bad duration", func(c *Config) { c.Pipeline.RetryBaseDelay = "soon" }},
		{"bad recipient", func(c *Config) { c.Delivery.To = []string{"not-an-email"} }},
		{"delivery without recipients", func(c *Config) { c.Delivery.Enabled = true }},
		{"unknown run mode", func(c *Config) { c.Pipeline.RunMode = "dry" }},
		{"benchmark without models", func(c *Config) { c.Pipeline.RunMode = RunModeBenchmark }},
		{"benchmark with unknown provider", func(c *Config) {
			c.Pipeline.RunMode = RunModeBenchmark
			c.Pipeline.BenchmarkModels = []string{"claude:claude-opus-4-5", "openai:gpt-5"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_ValidateComparisonModes(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Pipeline.Provider = ProviderAll
	require.NoError(t, cfg.Validate())

	cfg.Pipeline.RunMode = RunModeBenchmark
	cfg.Pipeline.BenchmarkModels = []string{"claude:claude-opus-4-5", "gemini"}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Pipeline.IsBenchmark())
}

func TestParseModelRef(t *testing.T) {
	ref, err := ParseModelRef(" Gemini : gemini-2.5-pro ")
	require.NoError(t, err)
	assert.Equal(t, ModelRef{Provider: "gemini", Model: "gemini-2.5-pro"}, ref)

	ref, err = ParseModelRef("claude")
	require.NoError(t, err)
	assert.Equal(t, ModelRef{Provider: "claude"}, ref)

	_, err = ParseModelRef("x-ai/grok-4")
	assert.Error(t, err)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("30 7 * * 1-5"))
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))
	assert.Error(t, ValidateSchedule("*/2 * * * *"))
	assert.Error(t, ValidateSchedule("* * * * *"))
	assert.Error(t, ValidateSchedule("not a schedule"))
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, 2*time.Second, ParseDurationOr("2s", time.Minute))
	assert.Equal(t, time.Minute, ParseDurationOr("", time.Minute))
	assert.Equal(t, time.Minute, ParseDurationOr("-1s", time.Minute))
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	assert.True(t, IsRunID(id), id)
	assert.NotEqual(t, id, NewRunID())
	assert.False(t, IsRunID("doc_123"))
}
