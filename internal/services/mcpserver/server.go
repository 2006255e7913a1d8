package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/interfaces"
	"github.com/ternarybob/macrolens/internal/services/audit"
	"github.com/ternarybob/macrolens/internal/services/report"
)

// Tools holds the collaborators the tool handlers call
type Tools struct {
	audit    *audit.Service
	runs     interfaces.AuditRunStorage
	renderer *report.Renderer
	logger   arbor.ILogger
}

// NewTools creates the tool set. runs and renderer may be nil, in which case
// the run lookup tools are not registered.
func NewTools(auditService *audit.Service, runs interfaces.AuditRunStorage, renderer *report.Renderer, logger arbor.ILogger) *Tools {
	return &Tools{
		audit:    auditService,
		runs:     runs,
		renderer: renderer,
		logger:   logger,
	}
}

// NewServer builds an MCP server with every available tool registered
func NewServer(tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(
		"macrolens",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	s.AddTool(classifySignalTool(), tools.handleClassifySignal)
	s.AddTool(scoreDialsTool(), tools.handleScoreDials)
	s.AddTool(enforceNarrativeTool(), tools.handleEnforceNarrative)
	s.AddTool(verificationBlockTool(), tools.handleVerificationBlock)

	if tools.runs != nil && tools.renderer != nil {
		s.AddTool(getRunTool(), tools.handleGetRun)
		s.AddTool(listRunsTool(), tools.handleListRuns)
	}

	return s
}

// NewHTTPHandler serves the tools over streamable HTTP
func NewHTTPHandler(tools *Tools) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(NewServer(tools))
}
