// Package stophook decides whether an agent may end its turn, blocking when
// an Agent OS project is left with uncommitted work.
//
// The check is a heuristic over files and git state. False positives and
// negatives are expected; a closed linked issue always lets the agent stop.
package stophook

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/hpungsan/agentos/internal/config"
	"github.com/hpungsan/agentos/internal/git"
	"github.com/hpungsan/agentos/internal/layout"
)

// DefaultAllowlist holds path patterns that never count as abandoned work.
// A trailing slash matches a directory anywhere in the tree; patterns
// without a slash match the base name.
var DefaultAllowlist = []string{
	layout.CacheDir + "/",
	"*.log",
	".DS_Store",
	"tmp/",
	".env.local",
	"*.swp",
}

// ReasonNotProject is the Result.Reason for a directory without .agent-os.
const ReasonNotProject = "not an Agent OS project"

// Result is the stop decision.
type Result struct {
	Block   bool         `json:"block"`
	Reason  string       `json:"reason"`
	Spec    *layout.Spec `json:"spec,omitempty"`
	Issue   int          `json:"issue,omitempty"`
	Dirty   []string     `json:"dirty,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Checker evaluates one repository.
type Checker struct {
	git       *git.Client
	gh        *git.GitHub
	cfg       *config.Config
	allowlist []string
	logger    *slog.Logger
}

// NewChecker creates a Checker. gh may be nil, which disables the closed
// issue override.
func NewChecker(g *git.Client, gh *git.GitHub, cfg *config.Config, logger *slog.Logger) *Checker {
	allow := append(append([]string{}, DefaultAllowlist...), cfg.StopAllowlist...)
	return &Checker{git: g, gh: gh, cfg: cfg, allowlist: allow, logger: logger}
}

// Check decides for the repository at root. hookActive is the host's
// stop_hook_active flag: when set, a previous block is already being acted
// upon and blocking again would loop.
func (c *Checker) Check(ctx context.Context, root string, hookActive bool) (Result, error) {
	if !layout.IsProject(root) {
		return Result{Reason: ReasonNotProject}, nil
	}
	if hookActive {
		return Result{Reason: "stop hook already active"}, nil
	}

	changed, err := c.git.ChangedPaths(ctx)
	if err != nil {
		return Result{}, err
	}
	var dirty []string
	for _, p := range changed {
		if !Allowed(p, c.allowlist) {
			dirty = append(dirty, p)
		}
	}

	res := Result{Dirty: dirty}
	spec, ok, err := layout.ActiveSpec(root)
	if err != nil {
		c.logger.Debug("cannot read specs", "error", err)
	}
	if ok {
		res.Spec = &spec
	}

	if len(dirty) == 0 {
		res.Reason = "no uncommitted work"
		return res, nil
	}

	res.Issue = c.cfg.GitHubIssue
	if ok && spec.Issue > 0 {
		res.Issue = spec.Issue
	}
	if res.Issue > 0 && c.gh != nil {
		issue, err := c.gh.Issue(ctx, res.Issue)
		switch {
		case err != nil:
			c.logger.Debug("issue lookup failed", "issue", res.Issue, "error", err)
		case issue.Closed():
			res.Reason = fmt.Sprintf("linked issue #%d is closed", res.Issue)
			return res, nil
		}
	}

	res.Block = true
	if ok {
		res.Reason = fmt.Sprintf("uncommitted changes while spec %s is active", spec.Name)
	} else {
		res.Reason = "uncommitted changes with no active spec"
	}
	res.Message = remediation(res, c.cfg.DefaultBranch)
	c.logger.Info("stop blocked", "reason", res.Reason, "dirty", len(dirty))
	return res, nil
}

// Allowed reports whether p matches any allow-list pattern.
func Allowed(p string, patterns []string) bool {
	p = strings.TrimPrefix(p, "./")
	base := path.Base(p)
	for _, pat := range patterns {
		pat = strings.TrimSpace(pat)
		switch {
		case pat == "":
		case strings.HasSuffix(pat, "/"):
			if strings.HasPrefix(p, pat) || strings.Contains(p, "/"+pat) {
				return true
			}
		case strings.Contains(pat, "/"):
			if ok, _ := path.Match(pat, p); ok {
				return true
			}
		default:
			if ok, _ := path.Match(pat, base); ok {
				return true
			}
		}
	}
	return false
}

const maxListed = 10

func remediation(res Result, branch string) string {
	var b strings.Builder
	b.WriteString("Work is not finished: ")
	b.WriteString(res.Reason)
	b.WriteString(".\n\nUncommitted:\n")
	for i, p := range res.Dirty {
		if i == maxListed {
			fmt.Fprintf(&b, "  ... and %d more\n", len(res.Dirty)-maxListed)
			break
		}
		fmt.Fprintf(&b, "  %s\n", p)
	}

	ref := ""
	if res.Issue > 0 {
		ref = fmt.Sprintf(" #%d", res.Issue)
	}
	b.WriteString("\nBefore stopping:\n")
	b.WriteString("  git status\n")
	fmt.Fprintf(&b, "  git add . && git commit -m \"<type>: <summary>%s\"\n", ref)
	b.WriteString("  git push\n")
	fmt.Fprintf(&b, "  gh pr create --base %s\n", branch)
	b.WriteString("\nIf these files are scratch output, add them to stop_allowlist in .agent-os/config.json.")
	return b.String()
}
