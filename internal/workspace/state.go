// Package workspace captures whether the current repository is "clean":
// no uncommitted changes and no open pull requests. Results are memoized
// through a cache.Cache with a caller-chosen TTL.
package workspace

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hpungsan/agentos/internal/cache"
	"github.com/hpungsan/agentos/internal/git"
)

// State is a snapshot of the workspace.
type State struct {
	Dirty      bool      `json:"dirty"`
	OpenPRs    int       `json:"open_prs"`
	PRsKnown   bool      `json:"prs_known"`
	CapturedAt time.Time `json:"captured_at"`

	// Cached is true when the snapshot came from the cache. Never persisted.
	Cached bool `json:"-"`
}

// Clean reports whether the workspace has no uncommitted changes and no open PRs.
func (s State) Clean() bool {
	return !s.Dirty && s.OpenPRs == 0
}

// Options controls a single Get.
type Options struct {
	TTL   time.Duration // cache freshness window; 0 forces a refresh
	Force bool          // bypass the cache regardless of TTL
}

// Service derives State from git and gh.
type Service struct {
	git    *git.Client
	gh     *git.GitHub
	cache  cache.Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service. cache may be nil to disable caching.
func NewService(g *git.Client, gh *git.GitHub, c cache.Cache, logger *slog.Logger) *Service {
	return &Service{git: g, gh: gh, cache: c, logger: logger, now: time.Now}
}

// CacheKey returns the cache key for the repository at dir.
func CacheKey(dir string) string {
	return cache.DirKey("workspace-state", dir)
}

// Get returns the workspace state, from cache when fresh.
func (s *Service) Get(ctx context.Context, opts Options) (State, error) {
	key := CacheKey(s.git.Dir())

	if s.cache != nil && !opts.Force {
		if entry, ok := s.cache.Get(key, opts.TTL); ok {
			var st State
			if err := json.Unmarshal(entry.Value, &st); err == nil {
				st.Cached = true
				s.logger.Debug("workspace state cache hit", "key", key, "dirty", st.Dirty, "open_prs", st.OpenPRs)
				return st, nil
			}
			// Unreadable entry: re-derive below and overwrite.
			s.logger.Debug("workspace state cache entry unreadable", "key", key)
		}
	}

	st, err := s.derive(ctx)
	if err != nil {
		return State{}, err
	}

	if s.cache != nil {
		data, err := json.Marshal(st)
		if err == nil {
			err = s.cache.Set(key, data)
		}
		if err != nil {
			// Caching is an optimization; the fresh state is still valid.
			s.logger.Warn("failed to write workspace state cache", "error", err)
		}
	}
	return st, nil
}

func (s *Service) derive(ctx context.Context) (State, error) {
	dirty, err := s.git.IsDirty(ctx)
	if err != nil {
		return State{}, err
	}

	st := State{Dirty: dirty, CapturedAt: s.now().UTC()}

	if s.gh != nil {
		n, err := s.gh.OpenPRCount(ctx)
		if err != nil {
			s.logger.Debug("open PR count unavailable, assuming none", "error", err)
		} else {
			st.OpenPRs = n
			st.PRsKnown = true
		}
	}

	s.logger.Debug("workspace state derived", "dirty", st.Dirty, "open_prs", st.OpenPRs, "prs_known", st.PRsKnown)
	return st, nil
}
