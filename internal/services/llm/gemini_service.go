package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"google.golang.org/genai"
)

// GeminiService implements the LLMService interface using the Google genai SDK
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

var _ interfaces.LLMService = (*GeminiService)(nil)

// convertMessagesToGemini splits out the first system message and maps
// assistant turns to the model role.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if err := validateMessages(messages); err != nil {
		return nil, "", err
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, genai.Role(role)))
	}

	return contents, systemText, nil
}

// NewGeminiService creates a new Gemini LLM service instance
func NewGeminiService(ctx context.Context, geminiConfig *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required for Gemini service (set via GEMINI_API_KEY, MACROLENS_GEMINI_API_KEY, or gemini.api_key in config)")
	}

	cfg := *geminiConfig
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	timeout := common.ParseDurationOr(cfg.Timeout, 5*time.Minute)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("model", cfg.Model).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized successfully")

	return &GeminiService{
		config:  &cfg,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}, nil
}

// Chat generates a completion response based on the conversation history
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	contents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.config.Temperature),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	startTime := time.Now()
	resp, err := s.client.Models.GenerateContent(timeoutCtx, s.config.Model, contents, config)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("message_count", len(messages)).
			Msg("Gemini chat completion failed")
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	text := ""
	if resp != nil {
		text = resp.Text()
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini chat completion completed successfully")

	return text, nil
}

// HealthCheck sends a minimal ping request to the API
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.Chat(pingCtx, []interfaces.Message{{Role: RoleUser, Content: "ping"}}); err != nil {
		return fmt.Errorf("Gemini health check failed: %w", err)
	}
	return nil
}

// Provider returns "gemini"
func (s *GeminiService) Provider() string {
	return ProviderGemini
}

// Close drops the client reference; genai.Client needs no explicit close
func (s *GeminiService) Close() error {
	s.logger.Debug().Msg("Closing Gemini LLM service")
	s.client = nil
	return nil
}
