package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/agentos/internal/errors"
)

// Decision is one audited gate verdict.
type Decision struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
	Source    string `json:"source"`
	Intent    string `json:"intent"`
	Action    string `json:"action"`
	Verdict   string `json:"verdict"`
	Reason    string `json:"reason"`
	Text      string `json:"text"`
	Override  string `json:"override,omitempty"`
}

// Insert stores a decision. ID and CreatedAt must already be set.
func Insert(db *sql.DB, d *Decision) error {
	query := `
		INSERT INTO decisions (
			id, created_at, source, intent, action, verdict, reason, text, override
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query,
		d.ID, d.CreatedAt, d.Source, d.Intent, d.Action,
		d.Verdict, d.Reason, d.Text, toNullString(d.Override),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Verdict string // optional, exact match (ALLOW or BLOCK)
	Limit   int    // defaults to 20
	Offset  int
}

// List returns decisions newest first, plus the total matching count.
func List(db *sql.DB, f ListFilter) ([]Decision, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		return nil, 0, errors.NewInvalidRequest("offset must be non-negative")
	}

	where := ""
	var args []any
	if v := strings.ToUpper(strings.TrimSpace(f.Verdict)); v != "" {
		where = " WHERE verdict = ?"
		args = append(args, v)
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM decisions"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, created_at, source, intent, action, verdict, reason, text, override
		FROM decisions` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := db.Query(query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var (
			d        Decision
			override sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.CreatedAt, &d.Source, &d.Intent, &d.Action,
			&d.Verdict, &d.Reason, &d.Text, &override); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		d.Override = override.String
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// PurgeBefore deletes decisions created before cutoff (unix seconds) and
// returns how many were removed.
func PurgeBefore(db *sql.DB, cutoff int64) (int, error) {
	res, err := db.Exec("DELETE FROM decisions WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// Store is the audit recorder used by the gate.
type Store struct {
	db  *sql.DB
	now func() time.Time

	// IDs from one Store sort in insertion order, even within a millisecond.
	mu      sync.Mutex
	entropy io.Reader
}

// NewStore wraps an initialized database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Record assigns an ID and timestamp to d and inserts it.
func (s *Store) Record(ctx context.Context, d *Decision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := s.now()
	s.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), s.entropy)
	s.mu.Unlock()
	if err != nil {
		return errors.NewInternal(err)
	}
	d.ID = id.String()
	d.CreatedAt = now.Unix()
	return Insert(s.db, d)
}

// List returns recorded decisions; see List.
func (s *Store) List(f ListFilter) ([]Decision, int, error) {
	return List(s.db, f)
}

// Purge deletes decisions older than the given number of days.
func (s *Store) Purge(olderThanDays int) (int, error) {
	if olderThanDays < 0 {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("older_than_days must be non-negative, got %d", olderThanDays))
	}
	cutoff := s.now().Add(-time.Duration(olderThanDays) * 24 * time.Hour).Unix()
	return PurgeBefore(s.db, cutoff)
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
