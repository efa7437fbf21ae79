package stophook

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/agentos/internal/config"
	"github.com/hpungsan/agentos/internal/exec"
	"github.com/hpungsan/agentos/internal/git"
	"github.com/hpungsan/agentos/internal/logging"
	"github.com/hpungsan/agentos/internal/testutil"
)

const statusCmd = "git status --porcelain --untracked-files=all"

func projectDir(t *testing.T, specs ...string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".agent-os"), 0o755))
	for _, s := range specs {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, ".agent-os", "specs", s), 0o755))
	}
	return dir
}

func newChecker(f *exec.FakeRunner, dir string, cfg *config.Config) *Checker {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return NewChecker(git.New(f, dir), git.NewGitHub(f, dir), cfg, logging.Discard())
}

func TestCheck_NotAnAgentOSProject(t *testing.T) {
	f := exec.NewFakeRunner()
	res, err := newChecker(f, t.TempDir(), nil).Check(context.Background(), t.TempDir(), false)
	require.NoError(t, err)
	require.False(t, res.Block)
	require.Empty(t, f.Calls())
}

func TestCheck_HookActiveNeverBlocks(t *testing.T) {
	dir := projectDir(t)
	f := exec.NewFakeRunner()

	res, err := newChecker(f, dir, nil).Check(context.Background(), dir, true)
	require.NoError(t, err)
	require.False(t, res.Block)
	require.Empty(t, f.Calls())
}

func TestCheck_BlocksDirtyWithActiveSpec(t *testing.T) {
	dir := projectDir(t, "2026-04-01-search-#31")
	f := exec.NewFakeRunner().
		On(statusCmd, " M src/search.go\n?? debug.log\n", 0).
		On("gh issue view 31 --json number,title,state", `{"number":31,"title":"search","state":"OPEN"}`, 0)

	res, err := newChecker(f, dir, nil).Check(context.Background(), dir, false)
	require.NoError(t, err)
	require.True(t, res.Block)
	require.Equal(t, []string{"src/search.go"}, res.Dirty)
	require.Equal(t, 31, res.Issue)
	require.Contains(t, res.Reason, "2026-04-01-search-#31")
	for _, want := range []string{"git status", "git add . && git commit", "git push", "gh pr create"} {
		require.Contains(t, res.Message, want)
	}
}

func TestCheck_BlocksDirtyWithoutSpec(t *testing.T) {
	dir := projectDir(t)
	f := exec.NewFakeRunner().On(statusCmd, "?? notes.md\n", 0)

	res, err := newChecker(f, dir, nil).Check(context.Background(), dir, false)
	require.NoError(t, err)
	require.True(t, res.Block)
	require.Nil(t, res.Spec)
	require.Contains(t, res.Reason, "no active spec")
	require.Zero(t, f.CountPrefix("gh "))
}

func TestCheck_ClosedIssueAllows(t *testing.T) {
	dir := projectDir(t, "2026-04-01-search-#31")
	f := exec.NewFakeRunner().
		On(statusCmd, " M src/search.go\n", 0).
		On("gh issue view 31 --json number,title,state", `{"number":31,"title":"search","state":"CLOSED"}`, 0)

	res, err := newChecker(f, dir, nil).Check(context.Background(), dir, false)
	require.NoError(t, err)
	require.False(t, res.Block)
	require.Contains(t, res.Reason, "#31 is closed")
}

func TestCheck_IssueFromConfig(t *testing.T) {
	dir := projectDir(t)
	cfg := config.DefaultConfig()
	cfg.GitHubIssue = 8
	f := exec.NewFakeRunner().
		On(statusCmd, " M a.go\n", 0).
		On("gh issue view 8 --json number,title,state", `{"number":8,"title":"x","state":"CLOSED"}`, 0)

	res, err := newChecker(f, dir, cfg).Check(context.Background(), dir, false)
	require.NoError(t, err)
	require.False(t, res.Block)
}

func TestCheck_GhFailureStillBlocks(t *testing.T) {
	dir := projectDir(t, "wip-#4")
	f := exec.NewFakeRunner().
		On(statusCmd, " M a.go\n", 0).
		OnResult("gh issue view 4 --json number,title,state", exec.CmdResult{Stderr: "auth required", ExitCode: 4})

	res, err := newChecker(f, dir, nil).Check(context.Background(), dir, false)
	require.NoError(t, err)
	require.True(t, res.Block)
}

func TestCheck_OnlyAllowlistedChanges(t *testing.T) {
	dir := projectDir(t, "spec-a")
	cfg := config.DefaultConfig()
	cfg.StopAllowlist = []string{"coverage/"}
	f := exec.NewFakeRunner().On(statusCmd,
		"?? .agent-os/cache/state.json\n?? tmp/out.txt\n?? web/.DS_Store\n?? .env.local\n?? coverage/index.html\n?? src/.main.go.swp\n", 0)

	res, err := newChecker(f, dir, cfg).Check(context.Background(), dir, false)
	require.NoError(t, err)
	require.False(t, res.Block)
	require.Empty(t, res.Dirty)
	require.NotNil(t, res.Spec)
}

func TestCheck_RealRepo(t *testing.T) {
	dir := testutil.SetupTestRepoWithContent(t, map[string]string{".agent-os/product/mission.md": "# Mission\n"})
	c := NewChecker(git.New(exec.NewRealRunner(0), dir), nil, config.DefaultConfig(), logging.Discard())

	res, err := c.Check(context.Background(), dir, false)
	require.NoError(t, err)
	require.False(t, res.Block)

	testutil.WriteFile(t, dir, "src/new.go", "package src\n")
	res, err = c.Check(context.Background(), dir, false)
	require.NoError(t, err)
	require.True(t, res.Block)
	require.Equal(t, []string{"src/new.go"}, res.Dirty)
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{".agent-os/cache/workspace.json", true},
		{"logs/app.log", true},
		{"a/b/.DS_Store", true},
		{"tmp/x", true},
		{"pkg/tmp/x", true},
		{".env.local", true},
		{".env", false},
		{"src/tmpfile.go", false},
		{"main.go", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Allowed(tt.path, DefaultAllowlist), tt.path)
	}
}
