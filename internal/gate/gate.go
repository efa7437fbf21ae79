// Package gate decides whether an instruction may proceed, composing the
// intent analyzer with the workspace state.
//
// Maintenance always proceeds. New work proceeds only from a clean workspace
// with no open pull requests. Ambiguous instructions may read but not write.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hpungsan/agentos/internal/config"
	"github.com/hpungsan/agentos/internal/db"
	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/intent"
	"github.com/hpungsan/agentos/internal/workspace"
)

// Action is the kind of operation the instruction is about to perform.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionRead:
		return ActionRead, nil
	case ActionWrite:
		return ActionWrite, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("action must be read or write, got %q", s))
}

// Verdict is the gate outcome.
type Verdict string

const (
	Allow Verdict = "ALLOW"
	Block Verdict = "BLOCK"
)

// Override names, as reported in Decision.Override.
const (
	OverrideNewWork  = "AGENT_OS_NEW_WORK"
	OverrideWorkType = "AGENT_OS_WORK_TYPE"
)

// Decision is the result of one gate evaluation.
type Decision struct {
	Verdict        Verdict          `json:"verdict"`
	Reason         string           `json:"reason"`
	Intent         intent.Intent    `json:"intent"`
	Action         Action           `json:"action"`
	Override       string           `json:"override,omitempty"`
	Classification intent.Result    `json:"classification"`
	State          *workspace.State `json:"workspace,omitempty"`
}

// Allowed reports whether the verdict is ALLOW.
func (d Decision) Allowed() bool { return d.Verdict == Allow }

// StateSource supplies the workspace state. *workspace.Service satisfies it.
type StateSource interface {
	Get(ctx context.Context, opts workspace.Options) (workspace.State, error)
}

// Recorder persists decisions for later audit.
type Recorder interface {
	Record(ctx context.Context, d *db.Decision) error
}

// Gate evaluates instructions.
type Gate struct {
	cfg      *config.Config
	analyzer *intent.Analyzer
	state    StateSource
	recorder Recorder
	logger   *slog.Logger

	// Source labels audit entries (cli, hook, mcp).
	Source string
}

// New creates a Gate. recorder may be nil.
func New(cfg *config.Config, analyzer *intent.Analyzer, state StateSource, recorder Recorder, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:      cfg,
		analyzer: analyzer,
		state:    state,
		recorder: recorder,
		logger:   logger,
		Source:   "cli",
	}
}

// Decide classifies text and returns the verdict for action.
// A BLOCK verdict is a Decision, not an error; errors mean the gate could not
// reach a verdict (invalid action, not a repository).
func (g *Gate) Decide(ctx context.Context, text string, action Action) (Decision, error) {
	if _, err := ParseAction(string(action)); err != nil {
		return Decision{}, err
	}

	res := g.analyzer.Classify(text)
	d := Decision{
		Intent:         res.Intent,
		Action:         action,
		Classification: res,
	}
	g.applyOverrides(&d)

	switch d.Intent {
	case intent.Maintenance:
		d.Verdict = Allow
		d.Reason = "maintenance work is always allowed"

	case intent.NewWork:
		st, err := g.state.Get(ctx, workspace.Options{TTL: g.cfg.StateTTL()})
		if err != nil {
			return Decision{}, err
		}
		d.State = &st
		if st.Clean() {
			d.Verdict = Allow
			d.Reason = "workspace is clean"
		} else {
			d.Verdict = Block
			d.Reason = newWorkBlockedMessage(st, g.cfg.DefaultBranch)
		}

	default:
		if action == ActionRead {
			d.Verdict = Allow
			d.Reason = "ambiguous intent; read-only actions are allowed"
		} else {
			d.Verdict = Block
			d.Reason = ambiguousBlockedMessage()
		}
	}

	g.logger.Info("gate decision",
		"verdict", d.Verdict,
		"intent", d.Intent,
		"action", d.Action,
		"override", d.Override,
	)
	g.record(ctx, text, d)
	return d, nil
}

func (g *Gate) applyOverrides(d *Decision) {
	if g.cfg.NewWork {
		d.Intent = intent.NewWork
		d.Override = OverrideNewWork
		return
	}
	if g.cfg.WorkType == "" {
		return
	}
	forced, ok := intent.ParseIntent(g.cfg.WorkType)
	if !ok || forced == intent.Ambiguous {
		g.logger.Warn("ignoring unknown work type override", "value", g.cfg.WorkType)
		return
	}
	d.Intent = forced
	d.Override = OverrideWorkType
}

func (g *Gate) record(ctx context.Context, text string, d Decision) {
	if g.recorder == nil || !g.cfg.ShouldRecordDecisions() {
		return
	}
	entry := &db.Decision{
		Source:   g.Source,
		Intent:   string(d.Intent),
		Action:   string(d.Action),
		Verdict:  string(d.Verdict),
		Reason:   d.Reason,
		Text:     text,
		Override: d.Override,
	}
	if err := g.recorder.Record(ctx, entry); err != nil {
		// The audit log never changes a verdict.
		g.logger.Warn("failed to record gate decision", "error", err)
	}
}

func newWorkBlockedMessage(st workspace.State, branch string) string {
	var b strings.Builder
	b.WriteString("New work requires a clean workspace.\n")
	if st.Dirty {
		b.WriteString("- Uncommitted changes are present.\n")
	}
	if st.OpenPRs > 0 {
		fmt.Fprintf(&b, "- %d open pull request(s) must be merged or closed.\n", st.OpenPRs)
	}
	b.WriteString("\nTo proceed:\n")
	b.WriteString("  git status\n")
	b.WriteString("  git add . && git commit -m \"<message>\"\n")
	b.WriteString("  git push\n")
	b.WriteString("  gh pr list            # merge or close open PRs\n")
	fmt.Fprintf(&b, "  git checkout %s && git pull\n", branch)
	b.WriteString("\nIf this is maintenance on the current work, say so (\"fix ...\"),\n")
	b.WriteString("or set AGENT_OS_WORK_TYPE=maintenance.")
	return b.String()
}

func ambiguousBlockedMessage() string {
	return "Cannot tell whether this is maintenance or new work, so writes are blocked.\n" +
		"Rephrase with a clear verb (\"fix ...\", \"implement ...\"), or set\n" +
		"AGENT_OS_WORK_TYPE=maintenance or AGENT_OS_NEW_WORK=1 to override."
}
