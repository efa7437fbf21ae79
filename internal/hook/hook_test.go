package hook

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/agentos/internal/cache"
	"github.com/hpungsan/agentos/internal/config"
	"github.com/hpungsan/agentos/internal/docs"
	agenterrors "github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/exec"
	"github.com/hpungsan/agentos/internal/gate"
	"github.com/hpungsan/agentos/internal/git"
	"github.com/hpungsan/agentos/internal/intent"
	"github.com/hpungsan/agentos/internal/logging"
	"github.com/hpungsan/agentos/internal/stophook"
	"github.com/hpungsan/agentos/internal/workspace"
)

type stubState struct {
	state workspace.State
	calls int
}

func (s *stubState) Get(context.Context, workspace.Options) (workspace.State, error) {
	s.calls++
	return s.state, nil
}

type fixture struct {
	h     *Handler
	state *stubState
	fake  *exec.FakeRunner
	dir   string
}

func newFixture(t *testing.T, st workspace.State) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	state := &stubState{state: st}
	f := exec.NewFakeRunner()
	logger := logging.Discard()

	g := gate.New(cfg, intent.NewAnalyzer(intent.DefaultRules(), logger), state, nil, logger)
	stop := stophook.NewChecker(git.New(f, dir), nil, cfg, logger)
	c := cache.NewFileCache(filepath.Join(t.TempDir(), "cache"))

	return &fixture{h: NewHandler(cfg, dir, g, state, stop, c, logger), state: state, fake: f, dir: dir}
}

func (fx *fixture) handle(t *testing.T, event string, in Input) Outcome {
	t.Helper()
	out, err := fx.h.Handle(context.Background(), event, in)
	require.NoError(t, err)
	return out
}

func TestParseInput(t *testing.T) {
	in, err := ParseInput(strings.NewReader(`{"hook_event_name":"PreToolUse","tool_name":"Write","tool_input":{"file_path":"a.go","content":"x"},"cwd":"/repo","extra":1}`))
	require.NoError(t, err)
	require.Equal(t, "Write", in.ToolName)
	require.Equal(t, "a.go", in.ToolInput.FilePath)
	require.Equal(t, "/repo", in.CWD)

	in, err = ParseInput(strings.NewReader("  \n"))
	require.NoError(t, err)
	require.Equal(t, Input{}, in)

	_, err = ParseInput(strings.NewReader("{not json"))
	require.Error(t, err)
}

func TestPreTool_ReadToolsPass(t *testing.T) {
	fx := newFixture(t, workspace.State{Dirty: true})

	for _, tool := range []string{"Read", "Grep", "Glob", "WebFetch"} {
		out := fx.handle(t, EventPreTool, Input{ToolName: tool, UserMessage: "implement new feature"})
		require.Equal(t, 0, out.ExitCode, tool)
	}
	require.Zero(t, fx.state.calls)
}

func TestPreTool_BashCommands(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		command string
		want    int
	}{
		{"git status", "implement new feature", "git status", 0},
		{"git pipeline", "implement new feature", "git log --oneline | head -5", 0},
		{"gh pr list", "implement new feature", "gh pr list", 0},
		{"read only", "implement new feature", "ls -la && cat main.go", 0},
		{"build without writes", "implement new feature", "go test ./... 2>&1 | tail -20", 0},
		{"remove", "implement new feature", "rm -rf src", 2},
		{"redirect", "implement new feature", "echo 'package x' > main.go", 2},
		{"move", "implement new feature", "mv a.go b.go", 2},
		{"in-place edit", "implement new feature", "sed -i 's/a/b/' main.go", 2},
		{"write after read", "implement new feature", "cd src && touch new.go", 2},
		{"docs-only write", "implement new feature", "echo '- note' >> docs/notes.md", 0},
		{"maintenance write", "fix failing tests", "rm -rf build", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, workspace.State{Dirty: true, OpenPRs: 2})
			out := fx.handle(t, EventPreTool, Input{
				ToolName:    "Bash",
				UserMessage: tt.prompt,
				ToolInput:   ToolInput{Command: tt.command},
			})
			require.Equal(t, tt.want, out.ExitCode)
			if tt.want == 2 {
				require.Contains(t, out.Stderr, "clean workspace")
			}
		})
	}
}

func TestPreTool_DocsEditsPass(t *testing.T) {
	fx := newFixture(t, workspace.State{Dirty: true})
	fx.handle(t, EventUserPrompt, Input{Prompt: "implement new feature"})

	for _, fp := range []string{"README.md", "notes/plan.mdc", filepath.Join(fx.dir, "docs", "guide.txt"), "CLAUDE.md"} {
		out := fx.handle(t, EventPreTool, Input{ToolName: "Edit", ToolInput: ToolInput{FilePath: fp}})
		require.Equal(t, 0, out.ExitCode, fp)
	}

	out := fx.handle(t, EventPreTool, Input{ToolName: "Edit", ToolInput: ToolInput{FilePath: filepath.Join(fx.dir, "main.go")}})
	require.Equal(t, 2, out.ExitCode)
}

func TestPreTool_TaskUsesDescription(t *testing.T) {
	fx := newFixture(t, workspace.State{Dirty: true})

	out := fx.handle(t, EventPreTool, Input{ToolName: "Task", ToolInput: ToolInput{Description: "build the export pipeline"}})
	require.Equal(t, 2, out.ExitCode)

	out = fx.handle(t, EventPreTool, Input{ToolName: "Task", ToolInput: ToolInput{Description: "debug the flaky CI job"}})
	require.Equal(t, 0, out.ExitCode)
}

type stubDocs struct {
	report *docs.Report
	err    error
	calls  int
}

func (s *stubDocs) Scan(context.Context, string, docs.Options) (*docs.Report, error) {
	s.calls++
	return s.report, s.err
}

func TestPreTool_DocsCheckedBeforePullRequest(t *testing.T) {
	drift := &docs.Report{Mode: docs.ModeDeep, Proposals: []docs.Proposal{
		{Doc: "CHANGELOG.md", Exists: true, Triggers: []string{"scripts/a.sh"}},
	}}

	tests := []struct {
		name    string
		docs    *stubDocs
		command string
		want    int
		scans   int
	}{
		{"drift blocks create", &stubDocs{report: drift}, "gh pr create --fill", 2, 1},
		{"drift blocks merge", &stubDocs{report: drift}, "gh pr merge 12 --squash", 2, 1},
		{"up to date", &stubDocs{report: &docs.Report{Mode: docs.ModeDeep}}, "gh pr create", 0, 1},
		{"nothing uncommitted", &stubDocs{report: &docs.Report{Mode: docs.ModeDeep, NoChanges: true}}, "gh pr create", 0, 1},
		{"scan failure allows", &stubDocs{err: stderrors.New("not a git repository")}, "gh pr create", 0, 1},
		{"other gh commands skip the scan", &stubDocs{report: drift}, "gh pr view 12", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, workspace.State{})
			fx.h.Docs = tt.docs

			out := fx.handle(t, EventPreTool, Input{ToolName: "Bash", ToolInput: ToolInput{Command: tt.command}})
			require.Equal(t, tt.want, out.ExitCode)
			require.Equal(t, tt.scans, tt.docs.calls)
			if tt.want == 2 {
				require.Contains(t, out.Stderr, "CHANGELOG.md")
				require.Contains(t, out.Stderr, "agentos docs --deep")
			}
		})
	}
}

func TestPreTool_GatesWritesWithRecordedPrompt(t *testing.T) {
	fx := newFixture(t, workspace.State{Dirty: true})

	out := fx.handle(t, EventUserPrompt, Input{Prompt: "implement new feature"})
	require.Equal(t, 0, out.ExitCode)

	out = fx.handle(t, EventPreTool, Input{ToolName: "Write", ToolInput: ToolInput{FilePath: "x.go"}})
	require.Equal(t, 2, out.ExitCode)
	require.Contains(t, out.Stderr, "clean workspace")

	fx.handle(t, EventUserPrompt, Input{Prompt: "fix failing tests"})
	out = fx.handle(t, EventPreTool, Input{ToolName: "Edit"})
	require.Equal(t, 0, out.ExitCode)
}

func TestPreTool_UserMessageBeatsRecordedPrompt(t *testing.T) {
	fx := newFixture(t, workspace.State{Dirty: true})
	fx.handle(t, EventUserPrompt, Input{Prompt: "implement new feature"})

	out := fx.handle(t, EventPreTool, Input{ToolName: "Write", UserMessage: "fix the bug"})
	require.Equal(t, 0, out.ExitCode)
}

func TestPreTool_NoPromptFallsBackToCleanliness(t *testing.T) {
	dirty := newFixture(t, workspace.State{Dirty: true})
	out := dirty.handle(t, EventPreTool, Input{ToolName: "MultiEdit"})
	require.Equal(t, 2, out.ExitCode)
	require.Contains(t, out.Stderr, "git status")

	clean := newFixture(t, workspace.State{})
	out = clean.handle(t, EventPreTool, Input{ToolName: "MultiEdit"})
	require.Equal(t, 0, out.ExitCode)
}

func TestUserPrompt_ProceedOnDirtyWorkspaceAddsContext(t *testing.T) {
	fx := newFixture(t, workspace.State{Dirty: true, OpenPRs: 1})

	out := fx.handle(t, EventUserPrompt, Input{Prompt: "OK, proceed to the next task"})
	require.Equal(t, 0, out.ExitCode)

	var payload map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(out.Stdout), &payload))
	require.Equal(t, "UserPromptSubmit", payload["hookSpecificOutput"]["hookEventName"])
	require.Contains(t, payload["hookSpecificOutput"]["additionalContext"], "Uncommitted changes")
	require.Contains(t, payload["hookSpecificOutput"]["additionalContext"], "1 open pull request")
}

func TestUserPrompt_QuietWhenClean(t *testing.T) {
	fx := newFixture(t, workspace.State{})
	out := fx.handle(t, EventUserPrompt, Input{Prompt: "let's start task 3"})
	require.Empty(t, out.Stdout)

	fx = newFixture(t, workspace.State{Dirty: true})
	out = fx.handle(t, EventUserPrompt, Input{Prompt: "explain this function"})
	require.Empty(t, out.Stdout)
	require.Zero(t, fx.state.calls)
}

func TestIsProceed(t *testing.T) {
	for _, p := range []string{"continue", "What's next?", "task 4 please", "ready for the next task", "let's do it", "Move on"} {
		require.True(t, IsProceed(p), p)
	}
	for _, p := range []string{"explain the code", "restart the server", "nextjs config"} {
		require.False(t, IsProceed(p), p)
	}
}

func TestPostTool_AlwaysAllows(t *testing.T) {
	fx := newFixture(t, workspace.State{Dirty: true})
	out := fx.handle(t, EventPostTool, Input{ToolName: "Write", ToolInput: ToolInput{FilePath: "/repo/CLAUDE.md"}})
	require.Equal(t, 0, out.ExitCode)
}

func TestStop(t *testing.T) {
	fx := newFixture(t, workspace.State{})
	out := fx.handle(t, EventStop, Input{})
	require.Equal(t, 0, out.ExitCode, "not an Agent OS project")

	require.NoError(t, os.MkdirAll(filepath.Join(fx.dir, ".agent-os"), 0o755))
	fx.fake.On("git status --porcelain --untracked-files=all", " M main.go\n", 0)

	out = fx.handle(t, EventStop, Input{})
	require.Equal(t, 2, out.ExitCode)
	require.Contains(t, out.Stderr, "gh pr create")

	out = fx.handle(t, EventStop, Input{StopHookActive: true})
	require.Equal(t, 0, out.ExitCode)
}

func TestStop_GitFailureAllows(t *testing.T) {
	fx := newFixture(t, workspace.State{})
	require.NoError(t, os.MkdirAll(filepath.Join(fx.dir, ".agent-os"), 0o755))
	fx.fake.On("git status --porcelain --untracked-files=all", "", 128)

	out := fx.handle(t, EventStop, Input{})
	require.Equal(t, 0, out.ExitCode)
}

func TestHandle_UnknownEvent(t *testing.T) {
	fx := newFixture(t, workspace.State{})
	_, err := fx.h.Handle(context.Background(), "sessionstart", Input{})
	require.True(t, agenterrors.Is(err, agenterrors.ErrInvalidRequest))
}
