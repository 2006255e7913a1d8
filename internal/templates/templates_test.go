package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedTemplatesRender(t *testing.T) {
	names, err := ListEmbeddedTemplates()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{NameExtraction, NameExtractionSec09, NameExtractionSec11, NameSummary}, names)

	data := map[string]string{"Text": "PDF TEXT", "GroundTruth": `{"scores":{}}`, "Events": `{"flags_today":[]}`}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			tmpl, err := GetTemplate(name, "")
			require.NoError(t, err)
			system, prompt, err := tmpl.Render(data)
			require.NoError(t, err)
			assert.NotEmpty(t, system)
			assert.NotEmpty(t, prompt)
		})
	}
}

func TestSummaryTemplateCarriesSentinels(t *testing.T) {
	tmpl, err := GetTemplate(NameSummary, "")
	require.NoError(t, err)
	_, prompt, err := tmpl.Render(map[string]string{"GroundTruth": "GT", "Events": "EV"})
	require.NoError(t, err)

	for _, tag := range []string{"[SECTION:DASHBOARD]", "[SECTION:RATES]", "[SECTION:EQUITIES]", "| Dial | Score (0-10) | Justification |"} {
		assert.Contains(t, prompt, tag)
	}
	assert.Contains(t, prompt, "GT")
	assert.Contains(t, prompt, "EV")
}

func TestGetTemplate_UserOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, NameSummary+".toml"), []byte("type = \"summary\"\nprompt = \"custom {{.GroundTruth}}\"\n"), 0644))

	tmpl, err := GetTemplate(NameSummary, dir)
	require.NoError(t, err)
	_, prompt, err := tmpl.Render(map[string]string{"GroundTruth": "x"})
	require.NoError(t, err)
	assert.Equal(t, "custom x", prompt)

	_, err = GetTemplate("missing", dir)
	assert.Error(t, err)
}

func TestRender_MissingKey(t *testing.T) {
	tmpl, err := GetTemplate(NameExtraction, "")
	require.NoError(t, err)
	_, _, err = tmpl.Render(map[string]string{})
	assert.Error(t, err)
}
