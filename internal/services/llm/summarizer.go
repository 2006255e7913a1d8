package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/templates"
)

// NarrativeSummarizer drafts the daily narrative from the ground truth.
// The draft is untrusted and always goes through the compliance filter.
type NarrativeSummarizer struct {
	llm          interfaces.LLMService
	retry        RetryConfig
	templatesDir string
	logger       arbor.ILogger
}

// NewNarrativeSummarizer creates a summarizer
func NewNarrativeSummarizer(llm interfaces.LLMService, retry RetryConfig, templatesDir string, logger arbor.ILogger) *NarrativeSummarizer {
	return &NarrativeSummarizer{llm: llm, retry: retry, templatesDir: templatesDir, logger: logger}
}

// Prompt renders the system and user messages for the ground truth
func (s *NarrativeSummarizer) Prompt(truth models.GroundTruth) ([]interfaces.Message, error) {
	gt, err := json.MarshalIndent(truth, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode ground truth: %w", err)
	}
	ev, err := json.MarshalIndent(truth.Events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode event context: %w", err)
	}

	tmpl, err := templates.GetTemplate(templates.NameSummary, s.templatesDir)
	if err != nil {
		return nil, err
	}
	system, prompt, err := tmpl.Render(map[string]string{
		"GroundTruth": string(gt),
		"Events":      string(ev),
	})
	if err != nil {
		return nil, err
	}

	return []interfaces.Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: prompt},
	}, nil
}

// Summarize returns the raw narrative markdown
func (s *NarrativeSummarizer) Summarize(ctx context.Context, truth models.GroundTruth) (string, error) {
	messages, err := s.Prompt(truth)
	if err != nil {
		return "", err
	}

	var narrative string
	err = Do(ctx, s.retry, func(ctx context.Context) error {
		resp, err := s.llm.Chat(ctx, messages)
		if err != nil {
			return err
		}
		if strings.TrimSpace(resp) == "" {
			return ErrEmptyResponse
		}
		narrative = resp
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info().
		Str("effective_date", truth.EffectiveDate).
		Int("length", len(narrative)).
		Msg("Narrative drafted")
	return narrative, nil
}
