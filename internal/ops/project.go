package ops

import (
	"context"

	"github.com/hpungsan/agentos/internal/docs"
	"github.com/hpungsan/agentos/internal/hook"
	"github.com/hpungsan/agentos/internal/projectcfg"
	"github.com/hpungsan/agentos/internal/stophook"
)

// DocsInput contains parameters for ScanDocs.
type DocsInput struct {
	Dir           string
	Mode          string // dry-run | diff-only | deep; empty is dry-run
	CreateMissing bool
}

// ScanDocs runs the documentation drift detector. The returned error covers
// scan failures only; Report.Err maps the findings to an outcome.
func ScanDocs(ctx context.Context, env *Env, in DocsInput) (*docs.Report, error) {
	mode, err := docs.ParseMode(in.Mode)
	if err != nil {
		return nil, err
	}
	r, err := env.openRepo(ctx, in.Dir)
	if err != nil {
		return nil, err
	}
	s := docs.NewScanner(r.git, r.gh, env.Config, env.Logger)
	return s.Scan(ctx, r.root, docs.Options{Mode: mode, CreateMissing: in.CreateMissing})
}

// StopInput contains parameters for StopCheck.
type StopInput struct {
	Dir        string
	HookActive bool
}

// StopCheck reports whether a session may end in in.Dir.
func StopCheck(ctx context.Context, env *Env, in StopInput) (*stophook.Result, error) {
	r, err := env.openProject(ctx, in.Dir)
	if err != nil {
		return nil, err
	}
	res, err := stophook.NewChecker(r.git, r.gh, env.Config, env.Logger).Check(ctx, r.root, in.HookActive)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ConfigInput contains parameters for ResolveConfig.
type ConfigInput struct {
	Dir     string
	Refresh bool
}

// ResolveConfig returns the session config of the project containing in.Dir.
func ResolveConfig(ctx context.Context, env *Env, in ConfigInput) (*projectcfg.SessionConfig, error) {
	r, err := env.openProject(ctx, in.Dir)
	if err != nil {
		return nil, err
	}
	cfg, err := env.Resolver.Get(r.root, in.Refresh)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Hook dispatches a host hook event for the project containing dir.
// in.CWD, when set, takes precedence over dir.
func Hook(ctx context.Context, env *Env, event string, in hook.Input, dir string) (hook.Outcome, error) {
	if in.CWD != "" {
		dir = in.CWD
	}
	r, err := env.openProject(ctx, dir)
	if err != nil {
		return hook.Outcome{}, err
	}

	state := env.workspace(r)
	g := newGate(env, state)
	stop := stophook.NewChecker(r.git, r.gh, env.Config, env.Logger)
	h := hook.NewHandler(env.Config, r.root, g, state, stop, env.Cache, env.Logger)
	h.Docs = docs.NewScanner(r.git, r.gh, env.Config, env.Logger)
	return h.Handle(ctx, event, in)
}
