package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/agentos/internal/boundary"
	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/git"
)

// BoundaryDetectOutput contains the result of DetectBoundary.
type BoundaryDetectOutput struct {
	Label    string        `json:"label"`
	Boundary boundary.Type `json:"boundary"`
}

// DetectBoundary maps a context label to its boundary type.
// Unknown labels are NO_BOUNDARY.
func DetectBoundary(label string) (*BoundaryDetectOutput, error) {
	t, ok := boundary.Detect(label)
	if !ok {
		return nil, errors.NewNoBoundary(label)
	}
	return &BoundaryDetectOutput{Label: label, Boundary: t}, nil
}

// BoundaryCommitInput contains parameters for CommitBoundary.
type BoundaryCommitInput struct {
	Dir     string
	Label   string
	Message string
}

// CommitBoundary commits the working tree at a boundary. Git runs in
// in.Dir directly; any directory inside the repository will do.
func CommitBoundary(ctx context.Context, env *Env, in BoundaryCommitInput) (*boundary.Result, error) {
	if _, ok := boundary.Detect(in.Label); !ok {
		return nil, errors.NewNoBoundary(in.Label)
	}
	if strings.TrimSpace(in.Dir) == "" {
		return nil, errors.NewInvalidRequest("dir is required")
	}
	m := boundary.NewManager(git.New(env.Runner, in.Dir), env.Sessions, env.Logger)
	res, err := m.Commit(ctx, in.Label, in.Message)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
