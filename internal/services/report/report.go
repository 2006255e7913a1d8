// Package report renders an audit run as markdown, HTML and PDF files.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

const defaultTitle = "Macro Dashboard"

// Renderer turns audit runs into report documents. It is safe for concurrent use.
type Renderer struct {
	config common.ReportConfig
	logger arbor.ILogger
	md     goldmark.Markdown
}

// NewRenderer creates a Renderer
func NewRenderer(cfg common.ReportConfig, logger arbor.ILogger) *Renderer {
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	return &Renderer{
		config: cfg,
		logger: logger,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			// Section markers are raw anchors and must survive rendering.
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Title returns the document title for a run.
func (r *Renderer) Title(run *models.AuditRun) string {
	return fmt.Sprintf("%s: %s", r.config.Title, run.EffectiveDate)
}

// Markdown composes the published document: title, verification block, then
// the compliant narrative. Comparison runs list every draft under its own heading.
func (r *Renderer) Markdown(run *models.AuditRun) string {
	var b strings.Builder
	b.WriteString(r.preamble(run))

	if !run.IsComparison() {
		writeNarrative(&b, run.Narrative, "")
		return b.String()
	}
	for i, d := range run.Narratives {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&b, "## %s Summary\n\n", d.Label())
		writeNarrative(&b, d.Narrative, d.Error)
	}
	return b.String()
}

// preamble is the title and verification block shared by every layout.
func (r *Renderer) preamble(run *models.AuditRun) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(r.Title(run))
	b.WriteString("\n\n")

	if v := strings.TrimSpace(run.Verification); v != "" {
		b.WriteString(v)
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}

func writeNarrative(b *strings.Builder, narrative, failure string) {
	switch {
	case strings.TrimSpace(narrative) != "":
		b.WriteString(strings.TrimSpace(narrative))
		b.WriteString("\n")
	case failure != "":
		fmt.Fprintf(b, "_No narrative was produced: %s_\n", failure)
	default:
		b.WriteString("_No narrative was produced for this run._\n")
	}
}

// WriteFiles renders the run into dir as .md, .html and .pdf and returns the written paths.
// An empty dir uses the configured output directory.
func (r *Renderer) WriteFiles(run *models.AuditRun, dir string) ([]string, error) {
	if dir == "" {
		dir = r.config.OutputDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	htmlDoc, err := r.RenderHTML(run)
	if err != nil {
		return nil, err
	}
	pdfDoc, err := r.RenderPDF(run)
	if err != nil {
		return nil, err
	}

	base := filepath.Join(dir, baseName(run))
	files := []struct {
		path string
		data []byte
	}{
		{base + ".md", []byte(r.Markdown(run))},
		{base + ".html", htmlDoc},
		{base + ".pdf", pdfDoc},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		if err := os.WriteFile(f.path, f.data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", filepath.Base(f.path), err)
		}
		paths = append(paths, f.path)
	}

	r.logger.Info().
		Str("run_id", run.ID).
		Str("dir", dir).
		Int("files", len(paths)).
		Msg("Report files written")
	return paths, nil
}

// baseName is the file stem shared by a run's artifacts, e.g. "macro_2025-06-20_run_ab12".
func baseName(run *models.AuditRun) string {
	date := run.EffectiveDate
	if date == "" {
		date = run.CreatedAt.Format("2006-01-02")
	}
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, run.ID)
	return fmt.Sprintf("macro_%s_%s", date, id)
}
