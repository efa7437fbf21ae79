package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/gate"
	"github.com/hpungsan/agentos/internal/intent"
)

// ClassifyInput contains parameters for the Classify operation.
type ClassifyInput struct {
	Text string
}

// Classify runs the intent analyzer. It never fails on content; empty text
// is AMBIGUOUS.
func Classify(env *Env, in ClassifyInput) intent.Result {
	return env.Analyzer.Classify(in.Text)
}

// GateInput contains parameters for the Gate operation.
type GateInput struct {
	Dir    string
	Text   string
	Action string // read | write; defaults to write
}

// Gate decides whether work described by in.Text may proceed. A BLOCK
// verdict is returned as a Decision, not as an error; callers map it to
// their own exit code.
func Gate(ctx context.Context, env *Env, in GateInput) (*gate.Decision, error) {
	actionName := strings.TrimSpace(in.Action)
	if actionName == "" {
		actionName = string(gate.ActionWrite)
	}
	action, err := gate.ParseAction(actionName)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Dir) == "" {
		return nil, errors.NewInvalidRequest("dir is required")
	}

	d, err := newGate(env, &lazyState{env: env, dir: in.Dir}).Decide(ctx, in.Text, action)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func newGate(env *Env, state gate.StateSource) *gate.Gate {
	g := gate.New(env.Config, env.Analyzer, state, env.recorder(), env.Logger)
	if env.Source != "" {
		g.Source = env.Source
	}
	return g
}
