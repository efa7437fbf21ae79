package hook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyCommand(t *testing.T) {
	tests := []struct {
		command string
		want    CommandKind
	}{
		{"git status", CommandGit},
		{"git add . && git commit -m 'wip'", CommandGit},
		{"gh pr list --state open", CommandGit},
		{"git log | head -3", CommandReadOnly},
		{"ls -la", CommandReadOnly},
		{"grep -rn TODO internal 2>/dev/null", CommandReadOnly},
		{"sed -n '1,20p' main.go", CommandReadOnly},
		{"go build ./...", CommandOther},
		{"make test 2>&1 | tail", CommandOther},
		{"", CommandOther},
		{"rm -rf src", CommandWrite},
		{"sudo rm -rf /tmp/x", CommandWrite},
		{"FOO=1 touch a.go", CommandWrite},
		{"/bin/cp a.go b.go", CommandWrite},
		{"echo hi > out.txt", CommandWrite},
		{"cat a >> b", CommandWrite},
		{"git diff > change.patch", CommandWrite},
		{"sed -i 's/a/b/' main.go", CommandWrite},
		{"perl -pi -e 's/a/b/' main.go", CommandWrite},
		{"find . -name '*.tmp' -delete", CommandWrite},
		{"ls && npm install", CommandWrite},
		{"go test ./... | tee test.log", CommandWrite},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			require.Equal(t, tt.want, ClassifyCommand(tt.command))
		})
	}
}

func TestIsDocsOnlyCommand(t *testing.T) {
	for _, c := range []string{
		"echo '- item' >> CHANGELOG.md",
		"touch docs/new-page.txt",
		"sed -i 's/old/new/' README.md",
		"cp docs/a.md docs/b.md",
		"mkdir -p docs/guides && touch docs/guides/setup.md",
	} {
		require.True(t, IsDocsOnlyCommand(c), c)
	}
	for _, c := range []string{
		"rm -rf src README.md",
		"cp main.go docs/main.go.md > out.go",
		"npm run docs",
		"echo hi",
		"sed -i 's/a/b/' main.go",
		"git status",
	} {
		require.False(t, IsDocsOnlyCommand(c), c)
	}
}

func TestIsDocsPath(t *testing.T) {
	for _, p := range []string{"README.md", "./notes/plan.mdc", "docs/api/v1.yaml", "sub/CLAUDE.md", `"CHANGELOG.md"`} {
		require.True(t, IsDocsPath(p), p)
	}
	for _, p := range []string{"", "main.go", "src/docs.go", "mydocs/x.go"} {
		require.False(t, IsDocsPath(p), p)
	}
}

func TestIsPRCommand(t *testing.T) {
	require.True(t, IsPRCommand("gh pr create --fill"))
	require.True(t, IsPRCommand("  gh pr merge 3"))
	require.False(t, IsPRCommand("gh pr list"))
	require.False(t, IsPRCommand("echo gh pr create"))
}
