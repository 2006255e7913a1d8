// Package mcpserver exposes the audit layer as Model Context Protocol tools.
// The same server is served over stdio by cmd/macrolens-mcp and over
// streamable HTTP at /mcp by the API server.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	ToolClassifySignal    = "classify_signal"
	ToolScoreDials        = "score_dials"
	ToolEnforceNarrative  = "enforce_narrative"
	ToolVerificationBlock = "verification_block"
	ToolGetRun            = "get_run"
	ToolListRuns          = "list_runs"
)

func classifySignalTool() mcp.Tool {
	return mcp.NewTool(ToolClassifySignal,
		mcp.WithDescription("Classify one asset class's CME open interest changes as Directional, Hedging-Vol, Low Signal/Noise or Unknown"),
		mcp.WithString("asset",
			mcp.Required(),
			mcp.Description("Asset class: equity, rates or fx"),
		),
		mcp.WithNumber("futures_oi_delta",
			mcp.Description("Signed futures OI change. Omit when not reported."),
		),
		mcp.WithNumber("options_oi_delta",
			mcp.Description("Signed options OI change. Omit when not reported."),
		),
		mcp.WithNumber("noise_threshold",
			mcp.Description("Override the configured noise threshold for the asset"),
		),
	)
}

func scoreDialsTool() mcp.Tool {
	return mcp.NewTool(ToolScoreDials,
		mcp.WithDescription("Compute the six 0-10 macro dial scores with their provenance from extracted metrics"),
		mcp.WithObject("metrics",
			mcp.Required(),
			mcp.Description("Extracted metrics keyed by field name, e.g. hy_spread_current, forward_pe_current"),
		),
	)
}

func enforceNarrativeTool() mcp.Tool {
	return mcp.NewTool(ToolEnforceNarrative,
		mcp.WithDescription("Run the compliance filter over a draft narrative: neutral actor language, deterministic signal lines and redaction of directional claims where signals do not allow them"),
		mcp.WithString("narrative",
			mcp.Required(),
			mcp.Description("Draft markdown narrative with [SECTION:NAME] sentinels"),
		),
		mcp.WithObject("metrics",
			mcp.Description("Extracted metrics used to classify the CME signals. Missing fields gate their sections."),
		),
	)
}

func verificationBlockTool() mcp.Tool {
	return mcp.NewTool(ToolVerificationBlock,
		mcp.WithDescription("Render the deterministic verification block: source dates, signals, event flags, completeness and dial provenance"),
		mcp.WithString("effective_date",
			mcp.Required(),
			mcp.Description("Effective date, YYYY-MM-DD"),
		),
		mcp.WithObject("metrics",
			mcp.Description("Extracted metrics keyed by field name"),
		),
	)
}

func getRunTool() mcp.Tool {
	return mcp.NewTool(ToolGetRun,
		mcp.WithDescription("Retrieve a stored audit run as its rendered markdown report"),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run ID (format: run_{uuid})"),
		),
	)
}

func listRunsTool() mcp.Tool {
	return mcp.NewTool(ToolListRuns,
		mcp.WithDescription("List recent audit runs, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10, max: 100)"),
		),
	)
}
