package ops

import (
	"context"
	"time"

	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/workspace"
)

// StateInput contains parameters for the State operation.
type StateInput struct {
	Dir        string
	TTLSeconds *int // overrides state_ttl_seconds; 0 forces a refresh
	Refresh    bool
}

// StateOutput contains the result of the State operation.
type StateOutput struct {
	Root string `json:"root"`
	workspace.State
	Clean  bool `json:"clean"`
	Cached bool `json:"cached"`
}

// State returns the workspace state of the repository containing in.Dir.
func State(ctx context.Context, env *Env, in StateInput) (*StateOutput, error) {
	ttl := env.Config.StateTTL()
	if in.TTLSeconds != nil {
		if *in.TTLSeconds < 0 {
			return nil, errors.NewInvalidRequest("ttl must be non-negative")
		}
		ttl = time.Duration(*in.TTLSeconds) * time.Second
	}

	r, err := env.openRepo(ctx, in.Dir)
	if err != nil {
		return nil, err
	}
	st, err := env.workspace(r).Get(ctx, workspace.Options{TTL: ttl, Force: in.Refresh})
	if err != nil {
		return nil, err
	}
	return &StateOutput{Root: r.root, State: st, Clean: st.Clean(), Cached: st.Cached}, nil
}
