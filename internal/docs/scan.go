// Package docs detects documentation drift: changed files whose documents
// were not touched, and (in deep mode) broken or stale documentation.
package docs

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hpungsan/agentos/internal/config"
	"github.com/hpungsan/agentos/internal/errors"
	"github.com/hpungsan/agentos/internal/git"
	"github.com/hpungsan/agentos/internal/layout"
)

// Mode selects how much work a scan does.
type Mode string

const (
	// ModeDryRun proposes documents for all working-tree changes and writes nothing.
	ModeDryRun Mode = "dry-run"
	// ModeDiffOnly proposes documents for tracked changes against HEAD.
	ModeDiffOnly Mode = "diff-only"
	// ModeDeep adds repository-wide findings to the proposals.
	ModeDeep Mode = "deep"
)

// ParseMode validates a mode name. Empty means dry-run.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.TrimSpace(s)) {
	case "", ModeDryRun:
		return ModeDryRun, nil
	case ModeDiffOnly:
		return ModeDiffOnly, nil
	case ModeDeep:
		return ModeDeep, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown docs mode %q", s))
}

// Options controls a scan.
type Options struct {
	Mode          Mode
	CreateMissing bool
}

// Proposal is a document that should be updated for the current changes.
type Proposal struct {
	Doc      string   `json:"doc"`
	Exists   bool     `json:"exists"`
	Triggers []string `json:"triggers"`
}

// Finding kinds.
const (
	FindingMissingCoreDoc = "missing_core_doc"
	FindingBrokenLink     = "broken_link"
	FindingBrokenAtRef    = "broken_reference"
	FindingSpecIssue      = "spec_issue_missing"
	FindingSpecClosed     = "spec_issue_closed"
)

// Finding is a deep-scan observation.
type Finding struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	Detail string `json:"detail"`
}

// Report is the outcome of a scan.
type Report struct {
	Mode      Mode       `json:"mode"`
	Changed   []string   `json:"changed"`
	Proposals []Proposal `json:"proposals"`
	Findings  []Finding  `json:"findings,omitempty"`
	Roadmap   *Progress  `json:"roadmap,omitempty"`
	Created   []string   `json:"created,omitempty"`

	// NoChanges is set when there was nothing to scan; the report is
	// otherwise empty and Err is nil.
	NoChanges bool `json:"no_changes,omitempty"`

	createMissing bool
}

// NoChangesMessage is what a scan with an empty change set reports.
const NoChangesMessage = "no changes"

// Err maps the report to the command outcome: nil when there is nothing
// to do, MISSING_DOC when a deep scan proposes a required document that does
// not exist, FINDINGS otherwise.
func (r *Report) Err() error {
	if r.Mode == ModeDeep && !r.createMissing {
		for _, p := range r.Proposals {
			if p.Doc == Required && !p.Exists {
				return errors.NewMissingDoc(p.Doc)
			}
		}
	}
	if n := len(r.Proposals) + len(r.Findings); n > 0 {
		return errors.NewFindings(n)
	}
	return nil
}

// Scanner runs scans against one repository.
type Scanner struct {
	git    *git.Client
	gh     *git.GitHub
	cfg    *config.Config
	rules  []Rule
	logger *slog.Logger
}

// NewScanner creates a Scanner using the default rules plus cfg.DocRules.
// gh may be nil, which skips the spec issue checks.
func NewScanner(g *git.Client, gh *git.GitHub, cfg *config.Config, logger *slog.Logger) *Scanner {
	rules, errs := CompileRules(cfg.DocRules)
	for _, err := range errs {
		logger.Warn("ignoring doc rule", "error", err)
	}
	return &Scanner{git: g, gh: gh, cfg: cfg, rules: rules, logger: logger}
}

// Scan evaluates the repository rooted at root.
func (s *Scanner) Scan(ctx context.Context, root string, opts Options) (*Report, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	rep := &Report{Mode: mode, createMissing: opts.CreateMissing}

	rep.Changed, err = s.changed(ctx, mode)
	if err != nil {
		return nil, err
	}
	if len(rep.Changed) == 0 {
		rep.Changed = []string{}
		rep.Proposals = []Proposal{}
		rep.NoChanges = true
		s.logger.Debug("docs scan: no changes", "mode", mode)
		return rep, nil
	}
	rep.Proposals = Propose(s.rules, rep.Changed, func(doc string) bool {
		return fileExists(filepath.Join(root, filepath.FromSlash(doc)))
	})

	if mode == ModeDeep {
		rep.Findings = s.deepFindings(ctx, root)
		if src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(layout.RoadmapFile))); err == nil {
			p := Checkboxes(src)
			rep.Roadmap = &p
		}
	}

	if opts.CreateMissing {
		if mode == ModeDryRun {
			s.logger.Info("dry run: not creating missing documents")
		} else if err := s.createMissing(root, rep); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("docs scan", "mode", mode, "changed", len(rep.Changed),
		"proposals", len(rep.Proposals), "findings", len(rep.Findings))
	return rep, nil
}

// changed is the change set a mode scans: tracked changes against HEAD for
// diff-only, and those plus untracked files otherwise.
func (s *Scanner) changed(ctx context.Context, mode Mode) ([]string, error) {
	if mode == ModeDiffOnly {
		return s.git.DiffNameOnly(ctx, "HEAD")
	}
	return s.git.ChangedPaths(ctx)
}

// Propose applies rules to the changed paths. A document that is itself
// among the changes is not proposed. The result is sorted by document and
// each trigger list is sorted and deduplicated, so equal inputs give equal
// output.
func Propose(rules []Rule, changed []string, exists func(doc string) bool) []Proposal {
	changedSet := make(map[string]bool, len(changed))
	for _, c := range changed {
		changedSet[normalize(c)] = true
	}

	triggers := map[string]map[string]bool{}
	for c := range changedSet {
		for _, r := range rules {
			if !r.Pattern.MatchString(c) {
				continue
			}
			for _, doc := range r.Docs {
				if changedSet[doc] {
					continue
				}
				if triggers[doc] == nil {
					triggers[doc] = map[string]bool{}
				}
				triggers[doc][c] = true
			}
		}
	}

	proposals := make([]Proposal, 0, len(triggers))
	for doc, set := range triggers {
		p := Proposal{Doc: doc, Exists: exists(doc)}
		for c := range set {
			p.Triggers = append(p.Triggers, c)
		}
		sort.Strings(p.Triggers)
		proposals = append(proposals, p)
	}
	sort.Slice(proposals, func(i, j int) bool { return proposals[i].Doc < proposals[j].Doc })
	return proposals
}

// normalize cleans a repo-relative path, keeping a trailing slash so that
// directory entries still match prefix rules.
func normalize(p string) string {
	p = filepath.ToSlash(p)
	dir := strings.HasSuffix(p, "/")
	p = path.Clean(p)
	if dir && p != "/" {
		p += "/"
	}
	return p
}

func (s *Scanner) deepFindings(ctx context.Context, root string) []Finding {
	var findings []Finding

	for _, doc := range s.cfg.CoreDocs {
		if !fileExists(filepath.Join(root, filepath.FromSlash(doc))) {
			findings = append(findings, Finding{Kind: FindingMissingCoreDoc, Path: doc, Detail: "core document does not exist"})
		}
	}

	findings = append(findings, brokenReferences(root, s.logger)...)
	findings = append(findings, s.specIssues(ctx, root)...)

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Path != findings[j].Path {
			return findings[i].Path < findings[j].Path
		}
		return findings[i].Detail < findings[j].Detail
	})
	return findings
}

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"dist":         true,
	"build":        true,
}

func brokenReferences(root string, logger *slog.Logger) []Finding {
	var findings []Finding
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != root && (skipDirs[d.Name()] || filepath.Join(root, layout.CacheDir) == p) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), ".md") {
			return nil
		}

		src, err := os.ReadFile(p)
		if err != nil {
			logger.Debug("skipping unreadable markdown", "path", p, "error", err)
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		rel = filepath.ToSlash(rel)

		for _, ref := range References(src) {
			if resolves(root, filepath.Dir(p), ref) {
				continue
			}
			f := Finding{Kind: FindingBrokenLink, Path: rel, Detail: "link target not found: " + ref.Target}
			if ref.At {
				f = Finding{Kind: FindingBrokenAtRef, Path: rel, Detail: "@" + ref.Target + " not found"}
			}
			findings = append(findings, f)
		}
		return nil
	})
	return findings
}

// resolves reports whether ref names an existing path. Links resolve against
// the document's directory; @mentions also resolve against the repo root.
func resolves(root, docDir string, ref Reference) bool {
	target := filepath.FromSlash(ref.Target)
	if ref.At && strings.HasPrefix(ref.Target, "~/") {
		return true
	}
	if pathExists(filepath.Join(docDir, target)) {
		return true
	}
	return ref.At && pathExists(filepath.Join(root, target))
}

func (s *Scanner) specIssues(ctx context.Context, root string) []Finding {
	if s.gh == nil {
		return nil
	}
	specs, err := layout.Specs(root)
	if err != nil {
		s.logger.Debug("cannot list specs", "error", err)
		return nil
	}

	var findings []Finding
	for _, spec := range specs {
		if spec.Issue == 0 {
			continue
		}
		issue, err := s.gh.Issue(ctx, spec.Issue)
		if err != nil {
			s.logger.Debug("issue lookup failed, skipping spec", "spec", spec.Name, "error", err)
			continue
		}
		switch {
		case !issue.Found:
			findings = append(findings, Finding{Kind: FindingSpecIssue, Path: spec.Path,
				Detail: fmt.Sprintf("issue #%d does not exist", spec.Issue)})
		case issue.Closed():
			findings = append(findings, Finding{Kind: FindingSpecClosed, Path: spec.Path,
				Detail: fmt.Sprintf("issue #%d is closed; archive the spec", spec.Issue)})
		}
	}
	return findings
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
