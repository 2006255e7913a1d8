package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/templates"
)

// Extraction is everything the extractor pulled out of one day's PDFs
type Extraction struct {
	Metrics   models.ExtractedMetrics
	Section09 *models.Section09
	Section11 *models.Section11
}

// MetricsExtractor asks the LLM to turn PDF text into ExtractedMetrics and bulletin tables
type MetricsExtractor struct {
	llm          interfaces.LLMService
	retry        RetryConfig
	templatesDir string
	logger       arbor.ILogger
}

// NewMetricsExtractor creates an extractor. templatesDir may override the embedded prompts.
func NewMetricsExtractor(llm interfaces.LLMService, retry RetryConfig, templatesDir string, logger arbor.ILogger) *MetricsExtractor {
	return &MetricsExtractor{llm: llm, retry: retry, templatesDir: templatesDir, logger: logger}
}

// Extract runs the metrics prompt over text and, when bulletinText is not
// empty, the Section 09 and 11 prompts over it. Only a failed metrics
// extraction is an error; a failed table extraction leaves that table nil.
func (e *MetricsExtractor) Extract(ctx context.Context, text, bulletinText string) (*Extraction, error) {
	metrics, err := e.ExtractMetrics(ctx, text)
	if err != nil {
		return nil, err
	}

	out := &Extraction{Metrics: metrics}
	if strings.TrimSpace(bulletinText) == "" {
		return out, nil
	}

	if sec09, err := e.ExtractSection09(ctx, bulletinText); err != nil {
		e.logger.Warn().Err(err).Msg("Section 09 extraction failed, rates curve omitted")
	} else {
		out.Section09 = sec09
	}
	if sec11, err := e.ExtractSection11(ctx, bulletinText); err != nil {
		e.logger.Warn().Err(err).Msg("Section 11 extraction failed, equity flows omitted")
	} else {
		out.Section11 = sec11
	}
	return out, nil
}

// ExtractMetrics returns the flat metrics object
func (e *MetricsExtractor) ExtractMetrics(ctx context.Context, text string) (models.ExtractedMetrics, error) {
	var metrics models.ExtractedMetrics
	err := e.run(ctx, templates.NameExtraction, text, func(raw []byte) error {
		m, err := models.ParseExtractedMetrics(raw)
		if err != nil {
			return err
		}
		metrics = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().Int("fields", len(metrics)).Msg("Metrics extracted")
	return metrics, nil
}

// ExtractSection09 returns the rates curve rows
func (e *MetricsExtractor) ExtractSection09(ctx context.Context, text string) (*models.Section09, error) {
	var doc models.Section09
	if err := e.run(ctx, templates.NameExtractionSec09, text, decodeInto(&doc)); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ExtractSection11 returns the equity index flow rows
func (e *MetricsExtractor) ExtractSection11(ctx context.Context, text string) (*models.Section11, error) {
	var doc models.Section11
	if err := e.run(ctx, templates.NameExtractionSec11, text, decodeInto(&doc)); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (e *MetricsExtractor) run(ctx context.Context, name, text string, decode func([]byte) error) error {
	tmpl, err := templates.GetTemplate(name, e.templatesDir)
	if err != nil {
		return err
	}
	system, prompt, err := tmpl.Render(map[string]string{"Text": text})
	if err != nil {
		return err
	}
	messages := []interfaces.Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: prompt},
	}

	return Do(ctx, e.retry, func(ctx context.Context) error {
		resp, err := e.llm.Chat(ctx, messages)
		if err != nil {
			return err
		}
		raw, err := JSONObject(resp, tmpl.SchemaRef)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := decode(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

func decodeInto(v interface{}) func([]byte) error {
	return func(raw []byte) error {
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

// JSONObject pulls the JSON object out of a model response, dropping any code
// fence or chatter around it. When key is set and the object wraps its
// payload under key, the inner object is returned.
func JSONObject(resp, key string) ([]byte, error) {
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	raw := []byte(resp[start : end+1])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	if key != "" {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err == nil {
			if inner, ok := wrapper[key]; ok && len(bytes.TrimSpace(inner)) > 0 && !bytes.Equal(bytes.TrimSpace(inner), []byte("null")) {
				return inner, nil
			}
		}
	}
	return raw, nil
}
