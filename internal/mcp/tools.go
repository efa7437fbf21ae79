package mcp

import "github.com/mark3labs/mcp-go/mcp"

const dirDescription = "Directory inside the repository (default: the server's working directory)"

var workspaceStateToolDef = mcp.NewTool("workspace_state",
	mcp.WithDescription("Report whether the repository is clean: uncommitted changes and open pull requests. "+
		"Results are cached for state_ttl_seconds."),
	mcp.WithString("dir", mcp.Description(dirDescription)),
	mcp.WithNumber("ttl_seconds", mcp.Description("Cache freshness override; 0 forces a refresh")),
	mcp.WithBoolean("refresh", mcp.Description("Bypass the cache")),
)

var intentClassifyToolDef = mcp.NewTool("intent_classify",
	mcp.WithDescription("Classify an instruction as MAINTENANCE, NEW, or AMBIGUOUS work."),
	mcp.WithString("text", mcp.Required(), mcp.Description("The user's instruction")),
)

var gateDecideToolDef = mcp.NewTool("gate_decide",
	mcp.WithDescription("Decide whether an instruction may proceed. Maintenance always proceeds; "+
		"new work needs a clean workspace with no open pull requests; ambiguous work may only read. "+
		"A BLOCK verdict is a normal result, not a tool error."),
	mcp.WithString("text", mcp.Required(), mcp.Description("The user's instruction")),
	mcp.WithString("action", mcp.Description("read or write (default: write)")),
	mcp.WithString("dir", mcp.Description(dirDescription)),
)

var boundaryDetectToolDef = mcp.NewTool("boundary_detect",
	mcp.WithDescription("Map a workflow context label (spec_approved, task_complete, ...) to its commit boundary."),
	mcp.WithString("label", mcp.Required(), mcp.Description("Context label")),
)

var boundaryCommitToolDef = mcp.NewTool("boundary_commit",
	mcp.WithDescription("Stage and commit all changes at a workflow boundary. "+
		"A no-op when no work session is active or the tree is clean."),
	mcp.WithString("label", mcp.Required(), mcp.Description("Context label")),
	mcp.WithString("message", mcp.Description("Commit subject (default: the boundary's summary)")),
	mcp.WithString("dir", mcp.Description(dirDescription)),
)

var docsScanToolDef = mcp.NewTool("docs_scan",
	mcp.WithDescription("Propose documentation updates for changed files. Deep mode also reports "+
		"missing core docs, broken references, spec issues, and roadmap progress."),
	mcp.WithString("mode", mcp.Description("dry-run (default), diff-only, or deep")),
	mcp.WithBoolean("create_missing", mcp.Description("Scaffold proposed documents that do not exist")),
	mcp.WithString("dir", mcp.Description(dirDescription)),
)

var stopCheckToolDef = mcp.NewTool("stop_check",
	mcp.WithDescription("Check whether the session may end without abandoning uncommitted work."),
	mcp.WithBoolean("stop_hook_active", mcp.Description("Set when a previous stop was already blocked")),
	mcp.WithString("dir", mcp.Description(dirDescription)),
)

var configResolveToolDef = mcp.NewTool("config_resolve",
	mcp.WithDescription("Resolve the project's session config: package managers, ports, and startup command."),
	mcp.WithBoolean("refresh", mcp.Description("Ignore the on-disk cache")),
	mcp.WithString("dir", mcp.Description(dirDescription)),
)
