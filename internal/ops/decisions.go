package ops

import (
	"fmt"
	"strings"

	"github.com/hpungsan/agentos/internal/db"
	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/gate"
	"github.com/hpungsan/agentos/internal/session"
)

// DecisionsListInput contains parameters for ListDecisions.
type DecisionsListInput struct {
	Verdict string // optional: allow | block
	Limit   int    // default: 20, max: 100
	Offset  int    // default: 0
}

// DecisionsListOutput contains the result of ListDecisions.
type DecisionsListOutput struct {
	Items      []db.Decision `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// ListDecisions retrieves audited gate decisions, newest first.
func ListDecisions(env *Env, input DecisionsListInput) (*DecisionsListOutput, error) {
	if env.store == nil {
		return nil, errors.NewInternal(fmt.Errorf("decision log is not open"))
	}

	verdict := strings.ToUpper(strings.TrimSpace(input.Verdict))
	switch gate.Verdict(verdict) {
	case "", gate.Allow, gate.Block:
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("verdict must be allow or block, got %q", input.Verdict))
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	items, total, err := env.store.List(db.ListFilter{Verdict: verdict, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	if items == nil {
		items = []db.Decision{}
	}

	return &DecisionsListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}

// PurgeInput contains parameters for PurgeDecisions.
type PurgeInput struct {
	OlderThanDays int
}

// PurgeOutput contains the result of PurgeDecisions.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// PurgeDecisions permanently deletes decisions older than the cutoff.
func PurgeDecisions(env *Env, input PurgeInput) (*PurgeOutput, error) {
	if env.store == nil {
		return nil, errors.NewInternal(fmt.Errorf("decision log is not open"))
	}
	count, err := env.store.Purge(input.OlderThanDays)
	if err != nil {
		return nil, err
	}
	return &PurgeOutput{Purged: count, Message: formatPurgeMessage(count, input.OlderThanDays)}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count, olderThanDays int) string {
	if count == 0 {
		return "No decisions to purge"
	}
	word := "decision"
	if count > 1 {
		word = "decisions"
	}
	return fmt.Sprintf("Permanently deleted %d %s (older than %d days)", count, word, olderThanDays)
}

// SessionStart opens a work session with an optional description.
func SessionStart(env *Env, description string) (session.Info, error) {
	info, err := env.Sessions.Start(description)
	if err != nil {
		return session.Info{}, errors.NewInternal(err)
	}
	env.Logger.Info("work session started", "description", description)
	return info, nil
}

// SessionStop closes the work session. Stopping twice is fine.
func SessionStop(env *Env) error {
	if err := env.Sessions.Stop(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// SessionStatus reports the work session.
func SessionStatus(env *Env) (session.Info, error) {
	info, err := env.Sessions.Status()
	if err != nil {
		return session.Info{}, errors.NewInternal(err)
	}
	return info, nil
}
