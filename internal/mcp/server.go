package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/agentos/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"workspace_state": {
		def:     workspaceStateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWorkspaceState },
	},
	"intent_classify": {
		def:     intentClassifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIntentClassify },
	},
	"gate_decide": {
		def:     gateDecideToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGateDecide },
	},
	"boundary_detect": {
		def:     boundaryDetectToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBoundaryDetect },
	},
	"boundary_commit": {
		def:     boundaryCommitToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBoundaryCommit },
	},
	"docs_scan": {
		def:     docsScanToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDocsScan },
	},
	"stop_check": {
		def:     stopCheckToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStopCheck },
	},
	"config_resolve": {
		def:     configResolveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConfigResolve },
	},
}

// AllToolNames returns every registered tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the agentos tools registered.
// Tools listed in disabled_tools are excluded. dir is the directory a tool
// call works in when it does not name one. Gate decisions are audited with
// source "mcp".
func NewServer(env *ops.Env, dir, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"agentos",
		version,
		server.WithToolCapabilities(true),
	)

	env.Source = "mcp"
	h := NewHandlers(env, dir)

	disabled := make(map[string]bool)
	for _, name := range env.Config.DisabledTools {
		disabled[name] = true
	}
	if unknown := ValidateDisabledTools(env.Config.DisabledTools); len(unknown) > 0 {
		env.Logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(env *ops.Env, dir, version string) error {
	s := NewServer(env, dir, version)
	return server.ServeStdio(s)
}
