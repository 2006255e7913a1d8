// -----------------------------------------------------------------------
// Last Modified: Friday, 16th October 2026 4:20:41 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package server

import (
	"net/http"
	"strings"

	"github.com/ternarybob/macrolens/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Run lifecycle stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// MCP (Model Context Protocol) over streamable HTTP
	mux.Handle("/mcp", s.app.MCPHandler)

	// API routes - Deterministic audit layer
	mux.HandleFunc("/api/classify", s.app.AuditHandler.ClassifyHandler)         // POST - classify one asset
	mux.HandleFunc("/api/scores", s.app.AuditHandler.ScoresHandler)             // POST - score the dials
	mux.HandleFunc("/api/enforce", s.app.AuditHandler.EnforceHandler)           // POST - compliance filter only
	mux.HandleFunc("/api/verification", s.app.AuditHandler.VerificationHandler) // POST - verification block only
	mux.HandleFunc("/api/audit", s.app.AuditHandler.AuditHandler)               // POST - full audit run

	// API routes - Stored runs
	mux.HandleFunc("/api/runs", s.app.RunsHandler.ListHandler) // GET - list runs (?date=, ?limit=)
	mux.HandleFunc("/api/runs/", s.handleRunRoutes)            // GET/DELETE /{id}, GET /{id}/report.*

	// API routes - Pipeline
	mux.HandleFunc("/api/pipeline/run", s.app.PipelineHandler.RunHandler)       // POST - run now
	mux.HandleFunc("/api/pipeline/status", s.app.PipelineHandler.StatusHandler) // GET - last run and schedule

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleRunRoutes routes /api/runs/{id} and its report sub-resources
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	if handlers.RunIDFromPath(r.URL.Path) == "" {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}

	if strings.Contains(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/") {
		routes := []PathSuffixRouter{
			{Suffix: "/report.html", Handler: s.app.RunsHandler.ReportHTMLHandler},
			{Suffix: "/report.pdf", Handler: s.app.RunsHandler.ReportPDFHandler},
			{Suffix: "/report.md", Handler: s.app.RunsHandler.ReportMarkdownHandler},
		}
		if !RouteByPathSuffix(w, r, "/api/runs/", routes) {
			s.app.APIHandler.NotFoundHandler(w, r)
		}
		return
	}

	RouteResourceItem(w, r, s.app.RunsHandler.GetHandler, s.app.RunsHandler.DeleteHandler)
}
