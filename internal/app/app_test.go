package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
)

func testConfig(t *testing.T) *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = t.TempDir()
	cfg.Report.OutputDir = t.TempDir()
	cfg.Claude.APIKey = ""
	return cfg
}

func TestNew_DegradesWithoutProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.Enabled = false

	application, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer application.Close()

	assert.NotNil(t, application.AuditService)
	assert.NotNil(t, application.PipelineService)
	assert.NotNil(t, application.MCPHandler)
	assert.Nil(t, application.SchedulerService)
	assert.NoError(t, application.StartScheduler())
}

func TestNew_ComparisonDrafters(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.Provider = common.ProviderAll

	application, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer application.Close()

	assert.Equal(t, "claude", application.LLMService.Provider())
	require.Len(t, application.DraftServices, 1)
	assert.Equal(t, "gemini", application.DraftServices[0].Provider())
}

func TestNewAuditService_CalendarFile(t *testing.T) {
	cfg := testConfig(t)

	cfg.Events.CalendarFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := NewAuditService(cfg, nil, nil, arbor.NewLogger())
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("holidays: [\n"), 0644))
	cfg.Events.CalendarFile = bad
	_, err = NewAuditService(cfg, nil, nil, arbor.NewLogger())
	assert.Error(t, err)

	cfg.Events.CalendarFile = ""
	svc, err := NewAuditService(cfg, nil, nil, arbor.NewLogger())
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
