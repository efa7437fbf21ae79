package docs

import (
	"fmt"
	"regexp"

	"github.com/hpungsan/agentos/internal/config"
)

// Rule proposes Docs whenever a changed path matches Pattern.
type Rule struct {
	Pattern *regexp.Regexp
	Docs    []string
}

// Required is the document whose absence fails a deep scan.
const Required = "CHANGELOG.md"

// DefaultRules returns the built-in rule table.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: regexp.MustCompile(`^(scripts|tools|hooks|instructions)/`), Docs: []string{"CHANGELOG.md"}},
		{Pattern: regexp.MustCompile(`^(tools/|setup\.sh$|commands/)`), Docs: []string{"README.md", "CLAUDE.md"}},
	}
}

// CompileRules appends configured rules to the defaults. Rules whose pattern
// does not compile are dropped and reported.
func CompileRules(extra []config.DocRule) ([]Rule, []error) {
	rules := DefaultRules()
	var errs []error
	for _, r := range extra {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			errs = append(errs, fmt.Errorf("doc rule %q: %w", r.Pattern, err))
			continue
		}
		rules = append(rules, Rule{Pattern: re, Docs: []string{r.Doc}})
	}
	return rules, errs
}
