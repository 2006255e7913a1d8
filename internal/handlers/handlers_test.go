package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/services/audit"
	"github.com/ternarybob/macrolens/internal/services/events"
	"github.com/ternarybob/macrolens/internal/services/report"
	"github.com/ternarybob/macrolens/internal/storage/badger"
)

var testLogger = arbor.NewLogger()

type testEnv struct {
	audit    *audit.Service
	runs     interfaces.AuditRunStorage
	renderer *report.Renderer
	bus      *events.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mgr, err := badger.NewManager(testLogger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	bus := events.NewService(testLogger)
	t.Cleanup(func() { bus.Close() })

	auditSvc, err := audit.NewService(common.NewDefaultConfig().Policy, events.NewCalendar(), mgr.AuditRunStorage(), bus, testLogger)
	require.NoError(t, err)

	return &testEnv{
		audit:    auditSvc,
		runs:     mgr.AuditRunStorage(),
		renderer: report.NewRenderer(common.ReportConfig{OutputDir: t.TempDir()}, testLogger),
		bus:      bus,
	}
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "error", body["status"])
	return body["error"]
}

func TestRequireMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	ok := RequireMethod(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.MethodPost)

	assert.False(t, ok)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", errorMessage(t, rec))
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantOK  bool
		wantErr string
	}{
		{name: "valid", body: `{"asset":"fx"}`, wantOK: true},
		{name: "empty body", body: "", wantErr: "Request body is required"},
		{name: "bad json", body: `{"asset":`, wantErr: "Invalid JSON"},
		{name: "missing field", body: `{}`, wantErr: "asset is required"},
		{name: "bad enum", body: `{"asset":"gold"}`, wantErr: "asset must be one of: equity, rates, fx"},
		{name: "bad threshold", body: `{"asset":"fx","noise_threshold":-1}`, wantErr: "noise_threshold must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))

			var out ClassifyRequest
			ok := DecodeAndValidate(rec, req, &out)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, "fx", out.Asset)
				return
			}
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorMessage(t, rec), tt.wantErr)
		})
	}
}

func TestGetLimitParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"?limit=5", 5},
		{"?limit=0", 20},
		{"?limit=abc", 20},
		{"?limit=1000", 200},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/runs"+tt.query, nil)
		assert.Equal(t, tt.want, GetLimitParam(r, 20, 200), tt.query)
	}
}

func TestAPIHandler(t *testing.T) {
	h := NewAPIHandler(testLogger, nil)

	rec := doJSON(t, h.HealthHandler, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	decodeBody(t, rec, &health)
	assert.Equal(t, "ok", health["status"])
	assert.NotContains(t, health, "scheduler")

	rec = doJSON(t, h.VersionHandler, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var info common.VersionInfo
	decodeBody(t, rec, &info)
	assert.Equal(t, common.GetVersion(), info.Version)

	rec = doJSON(t, h.NotFoundHandler, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
