// Package templates provides the embedded TOML prompt templates with user override support.
// Templates are loaded with resolution order:
// 1. User override: templatesDir/{name}.toml
// 2. Embedded default: internal/templates/{name}.toml
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"
)

//go:embed *.toml
var fs embed.FS

// TemplateType defines the type of template
type TemplateType string

const (
	// TemplateTypeExtraction turns PDF text into JSON metrics
	TemplateTypeExtraction TemplateType = "extraction"
	// TemplateTypeSummary drafts the narrative from ground truth
	TemplateTypeSummary TemplateType = "summary"
)

// Embedded template names
const (
	NameExtraction      = "extraction"
	NameExtractionSec09 = "extraction_sec09"
	NameExtractionSec11 = "extraction_sec11"
	NameSummary         = "summary"
)

// Template represents a loaded prompt template. System and Prompt are
// text/template bodies rendered with Render.
type Template struct {
	Name      string       `toml:"-"`
	Type      TemplateType `toml:"type"`
	System    string       `toml:"system"`
	Prompt    string       `toml:"prompt"`
	SchemaRef string       `toml:"schema_ref"` // JSON key the response is expected under, if any
}

// GetTemplate loads a template by name with resolution order:
// 1. User override: templatesDir/{name}.toml
// 2. Embedded default: internal/templates/{name}.toml
func GetTemplate(name string, templatesDir string) (*Template, error) {
	if templatesDir != "" {
		userPath := filepath.Join(templatesDir, name+".toml")
		if data, err := os.ReadFile(userPath); err == nil {
			return parseTemplate(name, data)
		}
	}

	data, err := fs.ReadFile(name + ".toml")
	if err != nil {
		return nil, fmt.Errorf("template '%s' not found (checked user override and embedded)", name)
	}
	return parseTemplate(name, data)
}

// ListEmbeddedTemplates returns names of all embedded templates
func ListEmbeddedTemplates() ([]string, error) {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".toml") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".toml"))
		}
	}
	return names, nil
}

// Render executes the system and prompt bodies against data
func (t *Template) Render(data interface{}) (system string, prompt string, err error) {
	if system, err = execute(t.Name+".system", t.System, data); err != nil {
		return "", "", err
	}
	if prompt, err = execute(t.Name+".prompt", t.Prompt, data); err != nil {
		return "", "", err
	}
	return system, prompt, nil
}

func execute(name, body string, data interface{}) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func parseTemplate(name string, data []byte) (*Template, error) {
	var t Template
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	if t.Prompt == "" {
		return nil, fmt.Errorf("template %s has no prompt", name)
	}
	t.Name = name
	return &t, nil
}
