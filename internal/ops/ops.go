// Package ops holds the operations shared by the CLI and the MCP server.
// Each operation takes an Env plus a typed input and returns a JSON-ready
// output or an *errors.AgentError.
package ops

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hpungsan/agentos/internal/cache"
	"github.com/hpungsan/agentos/internal/config"
	"github.com/hpungsan/agentos/internal/db"
	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/exec"
	"github.com/hpungsan/agentos/internal/gate"
	"github.com/hpungsan/agentos/internal/git"
	"github.com/hpungsan/agentos/internal/intent"
	"github.com/hpungsan/agentos/internal/projectcfg"
	"github.com/hpungsan/agentos/internal/session"
	"github.com/hpungsan/agentos/internal/workspace"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// SessionConfigTTL is how long a resolved session config is reused across processes.
const SessionConfigTTL = time.Hour

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Env carries the collaborators every operation needs.
type Env struct {
	Config   *config.Config
	Runner   exec.CommandRunner
	Cache    cache.Cache
	Logger   *slog.Logger
	Analyzer *intent.Analyzer
	Resolver *projectcfg.Resolver
	Sessions *session.Manager

	// Source labels audited gate decisions ("cli", "mcp").
	Source string

	store *db.Store
}

// NewEnv builds an Env. database may be nil, which disables the audit log.
// Intent rules come from cfg.IntentRulesPath when set; unusable entries
// are logged and skipped.
func NewEnv(cfg *config.Config, runner exec.CommandRunner, c cache.Cache, database *sql.DB, logger *slog.Logger) (*Env, error) {
	rules, warnings, err := intent.LoadRules(cfg.IntentRulesPath)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("intent rules: %v", err))
	}
	for _, w := range warnings {
		logger.Warn("skipping intent rule", "error", w)
	}

	env := &Env{
		Config:   cfg,
		Runner:   runner,
		Cache:    c,
		Logger:   logger,
		Analyzer: intent.NewAnalyzer(rules, logger),
		Resolver: projectcfg.NewResolver(c, SessionConfigTTL, logger),
		Sessions: session.NewManager(cfg),
		Source:   "cli",
	}
	if database != nil {
		env.store = db.NewStore(database)
	}
	return env, nil
}

// Store returns the decision audit store, or nil when none is open.
func (e *Env) Store() *db.Store { return e.store }

func (e *Env) recorder() gate.Recorder {
	if e.store == nil {
		return nil
	}
	return e.store
}

// repo is a repository opened at its root.
type repo struct {
	root string
	git  *git.Client
	gh   *git.GitHub
}

func (e *Env) openRepo(ctx context.Context, dir string) (*repo, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.NewInvalidRequest("dir is required")
	}
	root, err := git.New(e.Runner, dir).RepoRoot(ctx)
	if err != nil {
		return nil, err
	}
	return &repo{root: root, git: git.New(e.Runner, root), gh: git.NewGitHub(e.Runner, root)}, nil
}

// openProject is openRepo for commands that also make sense outside git:
// a directory that is not a repository is used as its own root.
func (e *Env) openProject(ctx context.Context, dir string) (*repo, error) {
	r, err := e.openRepo(ctx, dir)
	if errors.Is(err, errors.ErrNotARepo) {
		e.Logger.Debug("not a git repository, using directory as root", "dir", dir)
		return &repo{root: dir, git: git.New(e.Runner, dir), gh: git.NewGitHub(e.Runner, dir)}, nil
	}
	return r, err
}

func (e *Env) workspace(r *repo) *workspace.Service {
	return workspace.NewService(r.git, r.gh, e.Cache, e.Logger)
}

// lazyState opens the repository only when a decision needs workspace
// state, so maintenance work never touches git.
type lazyState struct {
	env *Env
	dir string
}

func (l *lazyState) Get(ctx context.Context, opts workspace.Options) (workspace.State, error) {
	r, err := l.env.openRepo(ctx, l.dir)
	if err != nil {
		return workspace.State{}, err
	}
	return l.env.workspace(r).Get(ctx, opts)
}
