package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/agentos/internal/docs"
	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
	dir string
}

// NewHandlers creates a new Handlers instance. dir is the default working directory.
func NewHandlers(env *ops.Env, dir string) *Handlers {
	return &Handlers{env: env, dir: dir}
}

func (h *Handlers) workDir(dir string) string {
	if dir != "" {
		return dir
	}
	return h.dir
}

// Request types for each tool

// WorkspaceStateRequest represents the arguments for workspace_state.
type WorkspaceStateRequest struct {
	Dir        string `json:"dir,omitempty"`
	TTLSeconds *int   `json:"ttl_seconds,omitempty"`
	Refresh    bool   `json:"refresh,omitempty"`
}

// IntentClassifyRequest represents the arguments for intent_classify.
type IntentClassifyRequest struct {
	Text string `json:"text"`
}

// GateDecideRequest represents the arguments for gate_decide.
type GateDecideRequest struct {
	Text   string `json:"text"`
	Action string `json:"action,omitempty"`
	Dir    string `json:"dir,omitempty"`
}

// BoundaryDetectRequest represents the arguments for boundary_detect.
type BoundaryDetectRequest struct {
	Label string `json:"label"`
}

// BoundaryCommitRequest represents the arguments for boundary_commit.
type BoundaryCommitRequest struct {
	Label   string `json:"label"`
	Message string `json:"message,omitempty"`
	Dir     string `json:"dir,omitempty"`
}

// DocsScanRequest represents the arguments for docs_scan.
type DocsScanRequest struct {
	Mode          string `json:"mode,omitempty"`
	CreateMissing bool   `json:"create_missing,omitempty"`
	Dir           string `json:"dir,omitempty"`
}

// StopCheckRequest represents the arguments for stop_check.
type StopCheckRequest struct {
	StopHookActive bool   `json:"stop_hook_active,omitempty"`
	Dir            string `json:"dir,omitempty"`
}

// ConfigResolveRequest represents the arguments for config_resolve.
type ConfigResolveRequest struct {
	Refresh bool   `json:"refresh,omitempty"`
	Dir     string `json:"dir,omitempty"`
}

// DocsScanResult wraps a scan report with the outcome a CLI caller would
// see as an exit code.
type DocsScanResult struct {
	Report  *docs.Report `json:"report"`
	Outcome string       `json:"outcome"` // OK, FINDINGS, or MISSING_DOC
	Message string       `json:"message,omitempty"`
}

// Handler implementations

// HandleWorkspaceState handles the workspace_state tool call.
func (h *Handlers) HandleWorkspaceState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceStateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.State(ctx, h.env, ops.StateInput{
		Dir:        h.workDir(input.Dir),
		TTLSeconds: input.TTLSeconds,
		Refresh:    input.Refresh,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleIntentClassify handles the intent_classify tool call.
func (h *Handlers) HandleIntentClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IntentClassifyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	return successResult(ops.Classify(h.env, ops.ClassifyInput{Text: input.Text}))
}

// HandleGateDecide handles the gate_decide tool call.
func (h *Handlers) HandleGateDecide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GateDecideRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Gate(ctx, h.env, ops.GateInput{
		Dir:    h.workDir(input.Dir),
		Text:   input.Text,
		Action: input.Action,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBoundaryDetect handles the boundary_detect tool call.
func (h *Handlers) HandleBoundaryDetect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BoundaryDetectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DetectBoundary(input.Label)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBoundaryCommit handles the boundary_commit tool call.
func (h *Handlers) HandleBoundaryCommit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BoundaryCommitRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CommitBoundary(ctx, h.env, ops.BoundaryCommitInput{
		Dir:     h.workDir(input.Dir),
		Label:   input.Label,
		Message: input.Message,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDocsScan handles the docs_scan tool call.
func (h *Handlers) HandleDocsScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DocsScanRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	report, err := ops.ScanDocs(ctx, h.env, ops.DocsInput{
		Dir:           h.workDir(input.Dir),
		Mode:          input.Mode,
		CreateMissing: input.CreateMissing,
	})
	if err != nil {
		return errorResult(err), nil
	}

	result := DocsScanResult{Report: report, Outcome: "OK"}
	if report.NoChanges {
		result.Message = docs.NoChangesMessage
	}
	var aErr *errors.AgentError
	if stderrors.As(report.Err(), &aErr) {
		result.Outcome = string(aErr.Code)
		result.Message = aErr.Message
	}
	return successResult(result)
}

// HandleStopCheck handles the stop_check tool call.
func (h *Handlers) HandleStopCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StopCheckRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.StopCheck(ctx, h.env, ops.StopInput{
		Dir:        h.workDir(input.Dir),
		HookActive: input.StopHookActive,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleConfigResolve handles the config_resolve tool call.
func (h *Handlers) HandleConfigResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConfigResolveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ResolveConfig(ctx, h.env, ops.ConfigInput{
		Dir:     h.workDir(input.Dir),
		Refresh: input.Refresh,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var aErr *errors.AgentError
	if stderrors.As(err, &aErr) {
		msg := aErr.Message
		if err != error(aErr) {
			// Keep the wrapper's context.
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":      aErr.Code,
			"message":   msg,
			"exit_code": aErr.ExitCode,
		}
		if aErr.Code != errors.ErrInternal && aErr.Details != nil {
			errorObj["details"] = aErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":      errors.ErrInternal,
				"message":   "an internal error occurred",
				"exit_code": errors.ExitFailure,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
