// Package git provides typed git and gh operations via exec.CommandRunner.
//
// Nothing here interprets workflow policy; callers get parsed values
// (status entries, changed paths, PR counts) and decide what they mean.
package git

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/exec"
)

// StatusEntry is one line of `git status --porcelain`.
type StatusEntry struct {
	XY   string // two-letter status code, e.g. " M", "??", "A "
	Path string // repo-relative path; the destination for renames
}

// Untracked reports whether the entry is an untracked file.
func (e StatusEntry) Untracked() bool { return e.XY == "??" }

// Client runs git in a fixed working directory.
type Client struct {
	runner exec.CommandRunner
	dir    string
}

// New creates a Client rooted at dir.
func New(runner exec.CommandRunner, dir string) *Client {
	return &Client{runner: runner, dir: dir}
}

// Dir returns the working directory the client runs in.
func (c *Client) Dir() string { return c.dir }

func (c *Client) git(ctx context.Context, args ...string) (exec.CmdResult, error) {
	res, err := c.runner.Run(ctx, "git", args, exec.RunOpts{Dir: c.dir})
	if err != nil {
		return res, errors.NewToolUnavailable("git", err)
	}
	return res, nil
}

// RepoRoot returns the absolute repository root containing the working directory.
// Returns NOT_A_REPO when git reports we are outside a repository.
func (c *Client) RepoRoot(ctx context.Context) (string, error) {
	if c.dir == "" {
		return "", errors.NewInvalidRequest("working directory is empty")
	}
	res, err := c.git(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", errors.NewNotARepo(c.dir)
	}

	out := strings.TrimSpace(res.Stdout)
	if out == "" || strings.Contains(out, "\n") {
		return "", errors.NewNotARepo(c.dir)
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(c.dir, out)
	}
	return filepath.Clean(out), nil
}

// Status returns the parsed `git status --porcelain` output.
func (c *Client) Status(ctx context.Context) ([]StatusEntry, error) {
	res, err := c.git(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, errors.NewNotARepo(c.dir)
	}
	return ParsePorcelain(res.Stdout), nil
}

// ChangedPaths lists every staged, unstaged, and untracked path. Unlike
// Status, untracked directories are expanded to their files.
func (c *Client) ChangedPaths(ctx context.Context) ([]string, error) {
	res, err := c.git(ctx, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, errors.NewNotARepo(c.dir)
	}
	entries := ParsePorcelain(res.Stdout)
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths, nil
}

// IsDirty reports whether `git status --porcelain` is non-empty.
func (c *Client) IsDirty(ctx context.Context) (bool, error) {
	entries, err := c.Status(ctx)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// ParsePorcelain parses porcelain v1 status output.
func ParsePorcelain(out string) []StatusEntry {
	var entries []StatusEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}
		xy := line[:2]
		path := line[3:]
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+len(" -> "):]
		}
		entries = append(entries, StatusEntry{XY: xy, Path: unquotePath(path)})
	}
	return entries
}

// unquotePath undoes git's C-style quoting of unusual path names.
func unquotePath(p string) string {
	if len(p) >= 2 && strings.HasPrefix(p, `"`) && strings.HasSuffix(p, `"`) {
		if s, err := strconv.Unquote(p); err == nil {
			return s
		}
	}
	return p
}

// DiffNameOnly returns paths changed relative to ref (staged and unstaged).
// In a repository without commits it falls back to the staged set.
func (c *Client) DiffNameOnly(ctx context.Context, ref string) ([]string, error) {
	res, err := c.git(ctx, "diff", "--name-only", ref)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		res, err = c.git(ctx, "diff", "--name-only", "--cached")
		if err != nil {
			return nil, err
		}
		if res.ExitCode != 0 {
			return nil, errors.NewNotARepo(c.dir)
		}
	}
	return splitLines(res.Stdout), nil
}

// AddAll stages every change, including untracked files.
func (c *Client) AddAll(ctx context.Context) error {
	res, err := c.git(ctx, "add", "-A")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return errors.NewCommitFailed(strings.TrimSpace(res.Stderr))
	}
	return nil
}

// Commit records the staged changes with message. A non-zero exit becomes
// COMMIT_FAILED carrying git's output.
func (c *Client) Commit(ctx context.Context, message string) error {
	res, err := c.git(ctx, "commit", "-m", message)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		out := strings.TrimSpace(res.Stderr)
		if out == "" {
			out = strings.TrimSpace(res.Stdout)
		}
		return errors.NewCommitFailed(out)
	}
	return nil
}

// CommitCount returns the number of commits reachable from HEAD (0 without HEAD).
func (c *Client) CommitCount(ctx context.Context) (int, error) {
	res, err := c.git(ctx, "rev-list", "--count", "HEAD")
	if err != nil {
		return 0, err
	}
	if res.ExitCode != 0 {
		return 0, nil
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if convErr != nil {
		return 0, errors.NewInternal(convErr)
	}
	return n, nil
}

// CurrentBranch returns the checked-out branch name, or "" when detached.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	res, err := c.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", nil
	}
	branch := strings.TrimSpace(res.Stdout)
	if branch == "HEAD" {
		return "", nil
	}
	return branch, nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, unquotePath(line))
		}
	}
	return out
}
