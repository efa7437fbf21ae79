// Package layout knows where an Agent OS project keeps its files.
package layout

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Well-known paths, relative to the repository root.
const (
	Dir         = ".agent-os"
	SpecsDir    = ".agent-os/specs"
	ProductDir  = ".agent-os/product"
	RoadmapFile = ".agent-os/product/roadmap.md"
	CacheDir    = ".agent-os/cache"
)

// IsProject reports whether root contains an .agent-os directory.
func IsProject(root string) bool {
	info, err := os.Stat(filepath.Join(root, Dir))
	return err == nil && info.IsDir()
}

// Spec is a directory under .agent-os/specs.
type Spec struct {
	Name    string `json:"name"`
	Path    string `json:"path"` // repo-relative, slash-separated
	Issue   int    `json:"issue,omitempty"`
	ModTime int64  `json:"-"`
}

var (
	issueRef    = regexp.MustCompile(`#(\d+)`)
	issuePrefix = regexp.MustCompile(`^(\d+)-`)
	datePrefix  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// IssueNumber extracts the issue a spec folder belongs to: the first "#<n>"
// in its name, else a leading "<n>-". Dated names never yield their year.
func IssueNumber(name string) (int, bool) {
	m := issueRef.FindStringSubmatch(name)
	if m == nil && !datePrefix.MatchString(name) {
		m = issuePrefix.FindStringSubmatch(name)
	}
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Specs lists spec directories, most recently modified first. Ties go to the
// lexically greater name, so dated folders sort newest first. A missing specs
// directory yields none.
func Specs(root string) ([]Spec, error) {
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(SpecsDir)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var specs []Spec
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		s := Spec{Name: e.Name(), Path: SpecsDir + "/" + e.Name(), ModTime: info.ModTime().UnixNano()}
		if n, ok := IssueNumber(e.Name()); ok {
			s.Issue = n
		}
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].ModTime != specs[j].ModTime {
			return specs[i].ModTime > specs[j].ModTime
		}
		return specs[i].Name > specs[j].Name
	})
	return specs, nil
}

// ActiveSpec returns the most recently modified spec directory.
func ActiveSpec(root string) (Spec, bool, error) {
	specs, err := Specs(root)
	if err != nil || len(specs) == 0 {
		return Spec{}, false, err
	}
	return specs[0], true, nil
}
