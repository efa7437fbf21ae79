// Package hook adapts the guardrails to the host runtime's hook protocol:
// JSON on stdin, exit 0 to allow, exit 2 to block with the reason on stderr.
//
// Hooks fail open. Malformed input, a missing repository, or an unavailable
// tool never blocks the agent.
package hook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hpungsan/agentos/internal/cache"
	"github.com/hpungsan/agentos/internal/config"
	"github.com/hpungsan/agentos/internal/docs"
	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/gate"
	"github.com/hpungsan/agentos/internal/logging"
	"github.com/hpungsan/agentos/internal/stophook"
	"github.com/hpungsan/agentos/internal/workspace"
)

// Event names accepted by Handle.
const (
	EventPreTool    = "pretool"
	EventUserPrompt = "userprompt"
	EventPostTool   = "posttool"
	EventStop       = "stop"
)

// Events lists the supported hook events.
var Events = []string{EventPreTool, EventUserPrompt, EventPostTool, EventStop}

// PromptTTL is how long a recorded prompt stands in for the current instruction.
const PromptTTL = 12 * time.Hour

var writeTools = map[string]bool{
	"Write":        true,
	"Edit":         true,
	"MultiEdit":    true,
	"NotebookEdit": true,
}

// gatedTools start work the gate must approve. Bash is gated per command.
var gatedTools = map[string]bool{
	"Write":        true,
	"Edit":         true,
	"MultiEdit":    true,
	"NotebookEdit": true,
	"Task":         true,
}

// DocsScanner reports documentation drift. *docs.Scanner satisfies it.
type DocsScanner interface {
	Scan(ctx context.Context, root string, opts docs.Options) (*docs.Report, error)
}

// Outcome is what the host should see.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func allow() Outcome { return Outcome{ExitCode: errors.ExitOK} }

func block(msg string) Outcome { return Outcome{ExitCode: errors.ExitAttention, Stderr: msg} }

// Handler dispatches hook events for one repository.
type Handler struct {
	cfg    *config.Config
	dir    string
	gate   *gate.Gate
	state  gate.StateSource
	stop   *stophook.Checker
	cache  cache.Cache
	logger *slog.Logger

	// Docs, when set, must report no drift before a pull request is
	// opened or merged.
	Docs DocsScanner
}

// NewHandler creates a Handler for the repository at dir. Gate decisions
// made through it are audited with source "hook".
func NewHandler(cfg *config.Config, dir string, g *gate.Gate, state gate.StateSource, stop *stophook.Checker, c cache.Cache, logger *slog.Logger) *Handler {
	if g != nil {
		g.Source = "hook"
	}
	return &Handler{cfg: cfg, dir: dir, gate: g, state: state, stop: stop, cache: c, logger: logger}
}

// Handle runs event against in.
func (h *Handler) Handle(ctx context.Context, event string, in Input) (Outcome, error) {
	switch event {
	case EventPreTool:
		return h.preTool(ctx, in), nil
	case EventUserPrompt:
		return h.userPrompt(ctx, in), nil
	case EventPostTool:
		return h.postTool(in), nil
	case EventStop:
		return h.stopCheck(ctx, in), nil
	}
	return Outcome{}, errors.NewInvalidRequest(fmt.Sprintf("unknown hook event %q (want one of %s)", event, strings.Join(Events, ", ")))
}

func (h *Handler) preTool(ctx context.Context, in Input) Outcome {
	if in.ToolName == "Bash" {
		return h.preBash(ctx, in)
	}
	if !gatedTools[in.ToolName] {
		h.logger.Debug("pretool: tool not gated", "tool", in.ToolName)
		return allow()
	}
	if fp := in.ToolInput.FilePath; fp != "" && IsDocsPath(h.relPath(fp)) {
		h.logger.Debug("pretool: docs edit allowed", "path", fp)
		return allow()
	}
	return h.gateWrite(ctx, in)
}

func (h *Handler) preBash(ctx context.Context, in Input) Outcome {
	cmd := strings.TrimSpace(in.ToolInput.Command)
	if IsPRCommand(cmd) {
		if out, blocked := h.docsBeforePR(ctx); blocked {
			return out
		}
	}

	kind := ClassifyCommand(cmd)
	if kind != CommandWrite {
		h.logger.Debug("pretool: command allowed", "kind", kind, "command", logging.Truncate(cmd, 100))
		return allow()
	}
	if IsDocsOnlyCommand(cmd) {
		h.logger.Debug("pretool: docs-only command allowed", "command", logging.Truncate(cmd, 100))
		return allow()
	}
	return h.gateWrite(ctx, in)
}

// docsBeforePR blocks a pull request while a deep docs scan reports drift.
// A scan that cannot run allows.
func (h *Handler) docsBeforePR(ctx context.Context) (Outcome, bool) {
	if h.Docs == nil {
		return Outcome{}, false
	}
	rep, err := h.Docs.Scan(ctx, h.dir, docs.Options{Mode: docs.ModeDeep})
	if err != nil {
		h.logger.Warn("pretool: docs check failed, allowing", "error", err)
		return Outcome{}, false
	}
	if err := rep.Err(); err != nil {
		var b strings.Builder
		b.WriteString("Documentation updates required before a pull request.\n")
		for _, p := range rep.Proposals {
			fmt.Fprintf(&b, "- update %s (changed: %s)\n", p.Doc, strings.Join(p.Triggers, ", "))
		}
		for _, f := range rep.Findings {
			fmt.Fprintf(&b, "- %s: %s\n", f.Path, f.Detail)
		}
		b.WriteString("Run `agentos docs --deep` and include the updates in the pull request.")
		return block(b.String()), true
	}
	return Outcome{}, false
}

// gateWrite asks the gate about a write. The instruction is the user
// message, else the last recorded prompt, else the tool's description.
func (h *Handler) gateWrite(ctx context.Context, in Input) Outcome {
	prompt := strings.TrimSpace(in.UserMessage)
	if prompt == "" {
		prompt = h.lastPrompt()
	}
	if prompt == "" {
		prompt = strings.TrimSpace(in.ToolInput.Description)
	}

	if prompt == "" {
		st, err := h.state.Get(ctx, workspace.Options{TTL: h.cfg.StateTTL()})
		if err != nil {
			h.logger.Warn("pretool: workspace state unavailable, allowing", "error", err)
			return allow()
		}
		if st.Clean() {
			return allow()
		}
		return block(guidance(st, h.cfg.DefaultBranch))
	}

	d, err := h.gate.Decide(ctx, prompt, gate.ActionWrite)
	if err != nil {
		h.logger.Warn("pretool: gate failed, allowing", "error", err)
		return allow()
	}
	if d.Allowed() {
		return allow()
	}
	return block(d.Reason)
}

var proceedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(proceed|continue|next|what'?s next|task \d+|move on|start|begin)\b`),
	regexp.MustCompile(`ready for .*task`),
	regexp.MustCompile(`let'?s (do|start|work on)`),
}

// IsProceed reports whether prompt asks to move on to the next piece of work.
func IsProceed(prompt string) bool {
	p := strings.ToLower(prompt)
	for _, re := range proceedPatterns {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

type promptOutput struct {
	HookSpecificOutput struct {
		HookEventName     string `json:"hookEventName"`
		AdditionalContext string `json:"additionalContext"`
	} `json:"hookSpecificOutput"`
}

func (h *Handler) userPrompt(ctx context.Context, in Input) Outcome {
	h.rememberPrompt(in.Prompt)

	if !IsProceed(in.Prompt) {
		return allow()
	}
	st, err := h.state.Get(ctx, workspace.Options{TTL: h.cfg.StateTTL()})
	if err != nil || st.Clean() {
		return allow()
	}

	var b strings.Builder
	b.WriteString("Agent OS workflow check before moving on:\n")
	if st.Dirty {
		b.WriteString("- Uncommitted changes are present.\n")
	}
	if st.OpenPRs > 0 {
		fmt.Fprintf(&b, "- %d open pull request(s) need review or merge.\n", st.OpenPRs)
	}
	b.WriteString("Commit with an issue reference, open or update the pull request, and finish the merge before starting new tasks.")

	var out promptOutput
	out.HookSpecificOutput.HookEventName = "UserPromptSubmit"
	out.HookSpecificOutput.AdditionalContext = b.String()
	data, err := json.Marshal(out)
	if err != nil {
		return allow()
	}
	return Outcome{ExitCode: errors.ExitOK, Stdout: string(data)}
}

func (h *Handler) postTool(in Input) Outcome {
	if writeTools[in.ToolName] {
		fp := in.ToolInput.FilePath
		if strings.Contains(fp, ".agent-os/") || strings.HasSuffix(fp, "CLAUDE.md") {
			h.logger.Info("agent os file modified", "tool", in.ToolName, "path", fp)
		}
	}
	return allow()
}

func (h *Handler) stopCheck(ctx context.Context, in Input) Outcome {
	res, err := h.stop.Check(ctx, h.dir, in.StopHookActive)
	if err != nil {
		h.logger.Warn("stop: check failed, allowing", "error", err)
		return allow()
	}
	if res.Block {
		return block(res.Message)
	}
	return allow()
}

type promptRecord struct {
	Prompt string    `json:"prompt"`
	At     time.Time `json:"at"`
}

func (h *Handler) promptKey() string { return cache.DirKey("last-prompt", h.dir) }

func (h *Handler) rememberPrompt(prompt string) {
	prompt = strings.TrimSpace(prompt)
	if h.cache == nil || prompt == "" {
		return
	}
	data, err := json.Marshal(promptRecord{Prompt: prompt, At: time.Now().UTC()})
	if err == nil {
		err = h.cache.Set(h.promptKey(), data)
	}
	if err != nil {
		h.logger.Warn("failed to record prompt", "error", err)
		return
	}
	h.logger.Debug("prompt recorded", "prompt", logging.Truncate(prompt, 100))
}

func (h *Handler) lastPrompt() string {
	if h.cache == nil {
		return ""
	}
	entry, ok := h.cache.Get(h.promptKey(), PromptTTL)
	if !ok {
		return ""
	}
	var rec promptRecord
	if err := json.Unmarshal(entry.Value, &rec); err != nil {
		return ""
	}
	return rec.Prompt
}

// relPath makes an absolute path relative to the repository root.
func (h *Handler) relPath(p string) string {
	if !filepath.IsAbs(p) {
		return p
	}
	rel, err := filepath.Rel(h.dir, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}

func guidance(st workspace.State, branch string) string {
	var b strings.Builder
	b.WriteString("Agent OS workflow: the workspace must be clean before writing without a stated task.\n")
	if st.Dirty {
		b.WriteString("- Uncommitted changes are present.\n")
	}
	if st.OpenPRs > 0 {
		fmt.Fprintf(&b, "- %d open pull request(s) need review or merge.\n", st.OpenPRs)
	}
	b.WriteString("\n  git status\n")
	b.WriteString("  git add . && git commit -m \"<type>: <summary> #<issue>\"\n")
	b.WriteString("  gh pr create\n")
	fmt.Fprintf(&b, "  git checkout %s && git pull\n", branch)
	return b.String()
}
