// Package testutil provides temporary git repositories for agentos tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// RequireGit skips the test when git is not on PATH.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// SetupTestRepo creates a temporary git repository with one commit
// containing README.md. The repository is removed when the test completes.
func SetupTestRepo(t *testing.T) string {
	t.Helper()
	RequireGit(t)

	dir := t.TempDir()

	Git(t, dir, "init")
	Git(t, dir, "config", "user.email", "test@agentos.dev")
	Git(t, dir, "config", "user.name", "Agentos Test")
	Git(t, dir, "config", "commit.gpgsign", "false")

	WriteFile(t, dir, "README.md", "# Test Repository\n")
	Git(t, dir, "add", ".")
	Git(t, dir, "commit", "-m", "Initial commit")
	Git(t, dir, "branch", "-M", "main")

	return dir
}

// SetupTestRepoWithContent creates a test repository and commits the given files.
func SetupTestRepoWithContent(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := SetupTestRepo(t)
	for path, content := range files {
		WriteFile(t, dir, path, content)
	}
	Git(t, dir, "add", ".")
	Git(t, dir, "commit", "-m", "Add test files")

	return dir
}

// WriteFile writes content to dir/rel, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", rel, err)
	}
}

// Git runs git in dir and fails the test on error. Returns trimmed stdout.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// CommitCount returns the number of commits on HEAD.
func CommitCount(t *testing.T, dir string) int {
	t.Helper()
	n, err := strconv.Atoi(Git(t, dir, "rev-list", "--count", "HEAD"))
	if err != nil {
		t.Fatalf("parse commit count: %v", err)
	}
	return n
}
