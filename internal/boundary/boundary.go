// Package boundary commits the working tree at workflow milestones
// (phase completion, subtask completion) while a work session is active.
package boundary

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/git"
	"github.com/hpungsan/agentos/internal/session"
)

// Type is a boundary category.
type Type string

const (
	Phase0  Type = "phase_0"
	Phase1  Type = "phase_1"
	Phase2  Type = "phase_2"
	Phase3  Type = "phase_3"
	Phase4  Type = "phase_4"
	Subtask Type = "subtask"
)

var labels = map[string]Type{
	"phase_0_complete":        Phase0,
	"spec_created":            Phase0,
	"phase_1_complete":        Phase1,
	"spec_approved":           Phase1,
	"phase_2_complete":        Phase2,
	"tasks_created":           Phase2,
	"phase_3_complete":        Phase3,
	"implementation_complete": Phase3,
	"phase_4_complete":        Phase4,
	"pr_created":              Phase4,
	"subtask_complete":        Subtask,
	"task_complete":           Subtask,
}

type template struct {
	prefix  string
	summary string
}

var templates = map[Type]template{
	Phase0:  {"spec", "specification drafted"},
	Phase1:  {"spec", "specification approved"},
	Phase2:  {"plan", "task breakdown created"},
	Phase3:  {"feat", "implementation complete"},
	Phase4:  {"chore", "ready for pull request"},
	Subtask: {"wip", "subtask complete"},
}

// Detect maps a context label to its boundary type.
func Detect(label string) (Type, bool) {
	t, ok := labels[strings.ToLower(strings.TrimSpace(label))]
	return t, ok
}

// Labels returns every recognized context label, sorted.
func Labels() []string {
	out := make([]string, 0, len(labels))
	for l := range labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Message renders the commit message for a boundary. An empty msg falls back
// to the boundary's summary; a non-empty session description adds a trailer.
func Message(t Type, msg, sessionDescription string) string {
	tpl := templates[t]
	subject := strings.TrimSpace(msg)
	if subject == "" {
		subject = tpl.summary
	}

	var b strings.Builder
	b.WriteString(tpl.prefix)
	b.WriteString(": ")
	b.WriteString(subject)
	if d := strings.TrimSpace(sessionDescription); d != "" {
		b.WriteString("\n\nSession: ")
		b.WriteString(d)
	}
	return b.String()
}

// Skip reasons reported in Result.Skipped.
const (
	SkipNoSession = "no active work session"
	SkipClean     = "nothing to commit"
)

// Result describes a Commit call.
type Result struct {
	Label     string `json:"label"`
	Boundary  Type   `json:"boundary"`
	Committed bool   `json:"committed"`
	Message   string `json:"message,omitempty"`
	Skipped   string `json:"skipped,omitempty"`
}

// SessionSource reports the work session. *session.Manager satisfies it.
type SessionSource interface {
	Status() (session.Info, error)
}

// Manager performs boundary commits.
type Manager struct {
	git      *git.Client
	sessions SessionSource
	logger   *slog.Logger
}

// NewManager creates a Manager.
func NewManager(g *git.Client, sessions SessionSource, logger *slog.Logger) *Manager {
	return &Manager{git: g, sessions: sessions, logger: logger}
}

// Commit stages and commits everything when label names a boundary, a work
// session is active, and the tree is dirty. Otherwise it is a no-op.
// An unknown label is NO_BOUNDARY; a failed commit is COMMIT_FAILED and is
// not retried.
func (m *Manager) Commit(ctx context.Context, label, message string) (Result, error) {
	t, ok := Detect(label)
	if !ok {
		return Result{}, errors.NewNoBoundary(label)
	}
	res := Result{Label: label, Boundary: t}

	info, err := m.sessions.Status()
	if err != nil {
		return Result{}, errors.NewInternal(err)
	}
	if !info.Active {
		res.Skipped = SkipNoSession
		m.logger.Debug("boundary commit skipped", "label", label, "reason", res.Skipped)
		return res, nil
	}

	dirty, err := m.git.IsDirty(ctx)
	if err != nil {
		return Result{}, err
	}
	if !dirty {
		res.Skipped = SkipClean
		m.logger.Debug("boundary commit skipped", "label", label, "reason", res.Skipped)
		return res, nil
	}

	res.Message = Message(t, message, info.Description)
	if err := m.git.AddAll(ctx); err != nil {
		return Result{}, err
	}
	if err := m.git.Commit(ctx, res.Message); err != nil {
		m.logger.Warn("boundary commit failed", "label", label, "error", err)
		return Result{}, err
	}

	res.Committed = true
	m.logger.Info("boundary commit", "label", label, "boundary", t)
	return res, nil
}
