package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/agentos/internal/cache"
	"github.com/hpungsan/agentos/internal/config"
	"github.com/hpungsan/agentos/internal/db"
	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/exec"
	"github.com/hpungsan/agentos/internal/logging"
	"github.com/hpungsan/agentos/internal/ops"
	"github.com/hpungsan/agentos/internal/testutil"
)

const (
	rootCmd   = "git rev-parse --show-toplevel"
	statusCmd = "git status --porcelain"
	prCmd     = "gh pr list --state open --limit 1000 --json number"
)

// testSetup creates an Env backed by a temporary database and a fake runner.
func testSetup(t *testing.T, r exec.CommandRunner) (*ops.Env, *config.Config) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.CacheDir = filepath.Join(tmpDir, "cache")
	cfg.LogDir = filepath.Join(tmpDir, "logs")

	c := cache.NewMemoCache(cache.NewFileCache(cfg.CacheDir), 16, time.Minute)
	env, err := ops.NewEnv(cfg, r, c, database, logging.Discard())
	if err != nil {
		t.Fatalf("failed to build env: %v", err)
	}
	return env, cfg
}

func newHandlers(t *testing.T, f *exec.FakeRunner) *Handlers {
	t.Helper()
	env, _ := testSetup(t, f)
	env.Source = "mcp"
	return NewHandlers(env, "/repo")
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleWorkspaceState(t *testing.T) {
	f := exec.NewFakeRunner().
		On(rootCmd, "/repo\n", 0).
		On(statusCmd, "", 0).
		On(prCmd, `[{"number":7}]`, 0)
	h := newHandlers(t, f)

	result, err := h.HandleWorkspaceState(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("HandleWorkspaceState failed: %v", err)
	}
	output := parseOutput(t, result)

	if output["dirty"] != false {
		t.Errorf("dirty = %v, want false", output["dirty"])
	}
	if output["open_prs"] != float64(1) {
		t.Errorf("open_prs = %v, want 1", output["open_prs"])
	}
	if output["clean"] != false {
		t.Errorf("clean = %v, want false (open PR)", output["clean"])
	}

	// Second call is served from the memo cache.
	result, _ = h.HandleWorkspaceState(context.Background(), makeRequest(map[string]any{}))
	if parseOutput(t, result)["cached"] != true {
		t.Error("expected cached=true on second call")
	}
	if n := f.CallCount(statusCmd); n != 1 {
		t.Errorf("git status ran %d times, want 1", n)
	}
}

func TestHandleWorkspaceState_NotARepo(t *testing.T) {
	f := exec.NewFakeRunner().On(rootCmd, "", 128)
	h := newHandlers(t, f)

	result, _ := h.HandleWorkspaceState(context.Background(), makeRequest(map[string]any{"dir": "/tmp/elsewhere"}))
	if !result.IsError {
		t.Fatal("expected error result outside a repository")
	}
	assertErrorCode(t, result, "NOT_A_REPO")
}

func TestHandleWorkspaceState_BadArguments(t *testing.T) {
	h := newHandlers(t, exec.NewFakeRunner())

	result, _ := h.HandleWorkspaceState(context.Background(), makeRequest(map[string]any{"ttl_seconds": "soon"}))
	if !result.IsError {
		t.Fatal("expected error result for non-numeric ttl")
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleIntentClassify(t *testing.T) {
	h := newHandlers(t, exec.NewFakeRunner())

	tests := []struct {
		text string
		want string
	}{
		{"fix the flaky login test", "MAINTENANCE"},
		{"implement a search page", "NEW"},
		{"look around", "AMBIGUOUS"},
		{"", "AMBIGUOUS"},
	}
	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.text, func(t *testing.T) {
			result, err := h.HandleIntentClassify(context.Background(), makeRequest(map[string]any{"text": tt.text}))
			if err != nil {
				t.Fatalf("HandleIntentClassify failed: %v", err)
			}
			output := parseOutput(t, result)
			if output["intent"] != tt.want {
				t.Errorf("intent = %v, want %s", output["intent"], tt.want)
			}
		})
	}
}

func TestHandleGateDecide_BlockIsNotAToolError(t *testing.T) {
	f := exec.NewFakeRunner().
		On(rootCmd, "/repo\n", 0).
		On(statusCmd, " M app.go\n", 0).
		On(prCmd, "[]", 0)
	h := newHandlers(t, f)

	result, err := h.HandleGateDecide(context.Background(), makeRequest(map[string]any{
		"text":   "build a new billing service",
		"action": "write",
	}))
	if err != nil {
		t.Fatalf("HandleGateDecide failed: %v", err)
	}
	output := parseOutput(t, result)
	if output["verdict"] != "BLOCK" {
		t.Errorf("verdict = %v, want BLOCK", output["verdict"])
	}
	if !strings.Contains(output["reason"].(string), "clean workspace") {
		t.Errorf("reason = %v, want clean workspace guidance", output["reason"])
	}

	list, err := ops.ListDecisions(h.env, ops.DecisionsListInput{})
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Source != "mcp" {
		t.Errorf("audit log = %+v, want one mcp entry", list.Items)
	}
}

func TestHandleGateDecide_InvalidAction(t *testing.T) {
	h := newHandlers(t, exec.NewFakeRunner())

	result, _ := h.HandleGateDecide(context.Background(), makeRequest(map[string]any{
		"text":   "fix it",
		"action": "execute",
	}))
	if !result.IsError {
		t.Fatal("expected error result for invalid action")
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleBoundaryDetect(t *testing.T) {
	h := newHandlers(t, exec.NewFakeRunner())

	result, _ := h.HandleBoundaryDetect(context.Background(), makeRequest(map[string]any{"label": "pr_created"}))
	output := parseOutput(t, result)
	if output["boundary"] != "phase_4" {
		t.Errorf("boundary = %v, want phase_4", output["boundary"])
	}

	result, _ = h.HandleBoundaryDetect(context.Background(), makeRequest(map[string]any{"label": "coffee_break"}))
	if !result.IsError {
		t.Fatal("expected error result for unknown label")
	}
	assertErrorCode(t, result, "NO_BOUNDARY")
}

func TestHandleBoundaryCommit_NoSession(t *testing.T) {
	f := exec.NewFakeRunner()
	h := newHandlers(t, f)

	result, _ := h.HandleBoundaryCommit(context.Background(), makeRequest(map[string]any{"label": "task_complete"}))
	output := parseOutput(t, result)
	if output["committed"] != false {
		t.Errorf("committed = %v, want false", output["committed"])
	}
	if output["skipped"] == nil {
		t.Error("expected a skip reason")
	}
	if len(f.Calls()) != 0 {
		t.Errorf("expected no git calls, got %v", f.Calls())
	}
}

func TestHandleBoundaryCommit_RealRepo(t *testing.T) {
	dir := testutil.SetupTestRepo(t)
	env, cfg := testSetup(t, exec.NewRealRunner(5*time.Second))
	cfg.WorkSession = true
	h := NewHandlers(env, dir)

	testutil.WriteFile(t, dir, "notes.md", "# notes\n")
	result, _ := h.HandleBoundaryCommit(context.Background(), makeRequest(map[string]any{
		"label":   "subtask_complete",
		"message": "add notes",
	}))
	output := parseOutput(t, result)
	if output["committed"] != true {
		t.Fatalf("committed = %v, want true", output["committed"])
	}
	if output["message"] != "wip: add notes" {
		t.Errorf("message = %v, want %q", output["message"], "wip: add notes")
	}
	if n := testutil.CommitCount(t, dir); n != 2 {
		t.Errorf("commit count = %d, want 2", n)
	}
}

func TestHandleDocsScan(t *testing.T) {
	f := exec.NewFakeRunner().
		On(rootCmd, "/repo\n", 0).
		On("git status --porcelain --untracked-files=all", "?? tools/lint.sh\n", 0)
	h := newHandlers(t, f)

	result, err := h.HandleDocsScan(context.Background(), makeRequest(map[string]any{"mode": "dry-run"}))
	if err != nil {
		t.Fatalf("HandleDocsScan failed: %v", err)
	}
	output := parseOutput(t, result)
	if output["outcome"] != "FINDINGS" {
		t.Errorf("outcome = %v, want FINDINGS", output["outcome"])
	}
	report := output["report"].(map[string]any)
	proposals := report["proposals"].([]any)
	// tools/ triggers CHANGELOG.md, README.md and CLAUDE.md.
	if len(proposals) != 3 {
		t.Errorf("proposals = %v, want 3", proposals)
	}
}

func TestHandleDocsScan_CleanTree(t *testing.T) {
	f := exec.NewFakeRunner().
		On(rootCmd, "/repo\n", 0).
		On("git status --porcelain --untracked-files=all", "", 0)
	h := newHandlers(t, f)

	result, _ := h.HandleDocsScan(context.Background(), makeRequest(map[string]any{}))
	if parseOutput(t, result)["outcome"] != "OK" {
		t.Error("expected outcome OK for a clean tree")
	}
}

func TestHandleDocsScan_InvalidMode(t *testing.T) {
	h := newHandlers(t, exec.NewFakeRunner())

	result, _ := h.HandleDocsScan(context.Background(), makeRequest(map[string]any{"mode": "thorough"}))
	if !result.IsError {
		t.Fatal("expected error result for invalid mode")
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleStopCheck_NotAProject(t *testing.T) {
	dir := t.TempDir()
	f := exec.NewFakeRunner().On(rootCmd, dir+"\n", 0)
	h := newHandlers(t, f)

	result, _ := h.HandleStopCheck(context.Background(), makeRequest(map[string]any{"dir": dir}))
	output := parseOutput(t, result)
	if output["block"] != false {
		t.Errorf("block = %v, want false", output["block"])
	}
}

func TestHandleStopCheck_BlocksDirtyProject(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, ".agent-os/specs/2026-05-01-export/spec.md", "# Export\n")
	f := exec.NewFakeRunner().
		On(rootCmd, dir+"\n", 0).
		On("git status --porcelain --untracked-files=all", " M export.go\n", 0)
	h := newHandlers(t, f)

	result, _ := h.HandleStopCheck(context.Background(), makeRequest(map[string]any{"dir": dir}))
	output := parseOutput(t, result)
	if output["block"] != true {
		t.Fatalf("block = %v, want true", output["block"])
	}
	if !strings.Contains(output["message"].(string), "git status") {
		t.Errorf("message should list remediation commands, got %v", output["message"])
	}

	result, _ = h.HandleStopCheck(context.Background(), makeRequest(map[string]any{"dir": dir, "stop_hook_active": true}))
	if parseOutput(t, result)["block"] != false {
		t.Error("stop_hook_active must never block")
	}
}

func TestHandleConfigResolve(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "start.sh", "#!/bin/sh\npnpm dev\n")
	testutil.WriteFile(t, dir, ".env", "API_PORT=8080\n")
	f := exec.NewFakeRunner().On(rootCmd, dir+"\n", 0)
	h := newHandlers(t, f)

	result, _ := h.HandleConfigResolve(context.Background(), makeRequest(map[string]any{"dir": dir}))
	output := parseOutput(t, result)
	if output["javascript_package_manager"] != "pnpm" {
		t.Errorf("javascript_package_manager = %v, want pnpm", output["javascript_package_manager"])
	}
	if output["backend_port"] != float64(8080) {
		t.Errorf("backend_port = %v, want 8080", output["backend_port"])
	}
}

func TestServerRegistration(t *testing.T) {
	env, _ := testSetup(t, exec.NewFakeRunner())

	s := NewServer(env, "/repo", "test")
	tools := s.ListTools()

	expectedTools := []string{
		"workspace_state",
		"intent_classify",
		"gate_decide",
		"boundary_detect",
		"boundary_commit",
		"docs_scan",
		"stop_check",
		"config_resolve",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
	if env.Source != "mcp" {
		t.Errorf("Source = %q, want mcp", env.Source)
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	env, cfg := testSetup(t, exec.NewFakeRunner())
	cfg.DisabledTools = []string{"boundary_commit", "docs_scan", "boundary_commit", "no_such_tool"}

	tools := NewServer(env, "/repo", "test").ListTools()

	if len(tools) != 6 {
		t.Errorf("registered tool count = %d, want 6", len(tools))
	}
	for _, name := range []string{"boundary_commit", "docs_scan"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	env, cfg := testSetup(t, exec.NewFakeRunner())
	cfg.DisabledTools = AllToolNames()

	if tools := NewServer(env, "/repo", "test").ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"gate_decide", "stop_check"}, 0},
		{"one unknown", []string{"gate_decide", "capsule_store"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unknown := ValidateDisabledTools(tt.input); len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 8 {
		t.Errorf("AllToolNames() returned %d names, want 8", len(names))
	}
	if names[0] != "boundary_commit" {
		t.Errorf("AllToolNames()[0] = %q, want sorted order", names[0])
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	err := errors.NewInternal(fmt.Errorf("open /home/me/.agent-os/agentos.db: permission denied"))
	err.Details = map[string]any{"path": "/home/me/.agent-os/agentos.db"}
	r := errorResult(err)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("boundary: %w", errors.NewCommitFailed("nothing added to commit"))

	errObj := errorObject(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrCommitFailed) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrCommitFailed)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "boundary:") {
		t.Errorf("message should contain wrapper context, got: %s", msg)
	}
	if _, ok := errObj["details"]; !ok {
		t.Error("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_ForeignError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("disk on fire")))
	if errObj["code"] != string(errors.ErrInternal) {
		t.Errorf("code=%v, want INTERNAL", errObj["code"])
	}
	if errObj["message"] != "an internal error occurred" {
		t.Errorf("message=%v, want generic message", errObj["message"])
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in payload: %v", payload)
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}
	if code, _ := errorObject(t, result)["code"].(string); code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
