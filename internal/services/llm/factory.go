// Package llm holds the text generation collaborators of the pipeline: the
// Claude and Gemini chat services, the bounded retry policy, and the metrics
// extractor and narrative summarizer built on them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/models"
)

const (
	ProviderClaude = common.ProviderClaude
	ProviderGemini = common.ProviderGemini

	DefaultClaudeModel = "claude-sonnet-4-5"
	DefaultGeminiModel = "gemini-2.5-flash"

	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a provider answers with no text
var ErrEmptyResponse = errors.New("llm returned an empty response")

// NewLLMService creates the primary provider: the one named by
// pipeline.provider, or Claude when it is "all". Metric extraction always
// uses the primary.
func NewLLMService(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	provider := PrimaryProvider(cfg.Pipeline)
	logger.Info().Str("provider", provider).Msg("Initializing LLM service")
	return NewProviderService(ctx, cfg, common.ModelRef{Provider: provider}, logger)
}

// PrimaryProvider resolves pipeline.provider to a single provider name
func PrimaryProvider(cfg common.PipelineConfig) string {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == common.ProviderAll {
		return ProviderClaude
	}
	return provider
}

// NewProviderService creates one provider's service. A non-empty ref.Model
// replaces the configured model.
func NewProviderService(ctx context.Context, cfg *common.Config, ref common.ModelRef, logger arbor.ILogger) (interfaces.LLMService, error) {
	switch ref.Provider {
	case ProviderClaude:
		claude := cfg.Claude
		if ref.Model != "" {
			claude.Model = ref.Model
		}
		return NewClaudeService(&claude, logger)
	case ProviderGemini:
		gemini := cfg.Gemini
		if ref.Model != "" {
			gemini.Model = ref.Model
		}
		return NewGeminiService(ctx, &gemini, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", ref.Provider)
	}
}

// DraftTargets lists who drafts the narrative of a run: every benchmark
// model in benchmark mode, Claude then Gemini for "all", otherwise the
// configured provider alone. Entries that do not parse are skipped.
func DraftTargets(cfg common.PipelineConfig) []common.ModelRef {
	if cfg.IsBenchmark() {
		var refs []common.ModelRef
		for _, m := range cfg.BenchmarkModels {
			if ref, err := common.ParseModelRef(m); err == nil {
				refs = append(refs, ref)
			}
		}
		if len(refs) > 0 {
			return refs
		}
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Provider), common.ProviderAll) {
		return []common.ModelRef{{Provider: ProviderClaude}, {Provider: ProviderGemini}}
	}
	return []common.ModelRef{{Provider: PrimaryProvider(cfg)}}
}

// RunMode returns the audit run mode for the configured draft targets
func RunMode(cfg common.PipelineConfig) string {
	switch {
	case len(DraftTargets(cfg)) < 2:
		return ""
	case cfg.IsBenchmark():
		return models.RunModeBenchmark
	default:
		return models.RunModeAB
	}
}

func validateMessages(messages []interfaces.Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("messages cannot be empty")
	}
	for _, msg := range messages {
		if msg.Role == RoleUser {
			return nil
		}
	}
	return fmt.Errorf("at least one message must have role 'user'")
}

// UnavailableService stands in for a provider that could not be initialized.
// Every call fails permanently, so the pipeline degrades without retrying.
type UnavailableService struct {
	provider string
	reason   error
}

var _ interfaces.LLMService = (*UnavailableService)(nil)

func NewUnavailableService(provider string, reason error) *UnavailableService {
	return &UnavailableService{provider: provider, reason: reason}
}

func (s *UnavailableService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "", Permanent(fmt.Errorf("%s provider unavailable: %w", s.provider, s.reason))
}

func (s *UnavailableService) HealthCheck(ctx context.Context) error {
	return fmt.Errorf("%s provider unavailable: %w", s.provider, s.reason)
}

func (s *UnavailableService) Provider() string {
	return s.provider
}

func (s *UnavailableService) Close() error {
	return nil
}
