package git

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/exec"
)

// Issue states as reported by `gh issue view --json state`.
const (
	IssueOpen   = "OPEN"
	IssueClosed = "CLOSED"
)

// Issue is the subset of a GitHub issue the workflow checks care about.
type Issue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	Found  bool   `json:"-"`
}

// Closed reports whether the issue exists and is closed.
func (i Issue) Closed() bool { return i.Found && strings.EqualFold(i.State, IssueClosed) }

// GitHub runs gh in a fixed working directory.
type GitHub struct {
	runner exec.CommandRunner
	dir    string
}

// NewGitHub creates a GitHub client rooted at dir.
func NewGitHub(runner exec.CommandRunner, dir string) *GitHub {
	return &GitHub{runner: runner, dir: dir}
}

// prListLimit raises gh's default page of 30 so the count is exact for any
// realistic repository.
const prListLimit = "1000"

// OpenPRCount returns the number of open pull requests for the repository,
// counting at most 1000. gh missing, unauthenticated, or printing non-JSON
// yields TOOL_UNAVAILABLE.
func (g *GitHub) OpenPRCount(ctx context.Context) (int, error) {
	res, err := g.runner.Run(ctx, "gh", []string{"pr", "list", "--state", "open", "--limit", prListLimit, "--json", "number"}, exec.RunOpts{Dir: g.dir})
	if err != nil {
		return 0, errors.NewToolUnavailable("gh", err)
	}
	if res.ExitCode != 0 {
		return 0, errors.NewToolUnavailable("gh", fmt.Errorf("pr list exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr)))
	}

	var prs []struct {
		Number int `json:"number"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &prs); err != nil {
		return 0, errors.NewToolUnavailable("gh", fmt.Errorf("decode pr list: %w", err))
	}
	return len(prs), nil
}

// Issue looks up issue n. An issue gh cannot resolve comes back with
// Found=false and a nil error; other gh failures are TOOL_UNAVAILABLE.
func (g *GitHub) Issue(ctx context.Context, n int) (Issue, error) {
	res, err := g.runner.Run(ctx, "gh", []string{"issue", "view", strconv.Itoa(n), "--json", "number,title,state"}, exec.RunOpts{Dir: g.dir})
	if err != nil {
		return Issue{}, errors.NewToolUnavailable("gh", err)
	}
	if res.ExitCode != 0 {
		msg := strings.ToLower(res.Stderr)
		if strings.Contains(msg, "could not resolve") || strings.Contains(msg, "not found") {
			return Issue{Number: n}, nil
		}
		return Issue{}, errors.NewToolUnavailable("gh", fmt.Errorf("issue view exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr)))
	}

	var issue Issue
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &issue); err != nil {
		return Issue{}, errors.NewToolUnavailable("gh", fmt.Errorf("decode issue: %w", err))
	}
	issue.Found = true
	return issue, nil
}
