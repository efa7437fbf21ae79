package intent

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type ruleSpec struct {
	name    string
	pattern string
	exclude string
}

var defaultMaintenance = []ruleSpec{
	{"fix", `\bfix(es|ed|ing)?\b`, ""},
	{"bug", `\bbugs?\b`, ""},
	{"patch", `\bpatch(es|ed|ing)?\b`, ""},
	{"hotfix", `\bhot-?fix`, ""},
	{"debug", `\bdebug`, ""},
	{"resolve", `\bresolv(e|es|ed|ing)\b`, ""},
	{"repair", `\brepair`, ""},
	{"update docs", `\bupdate\b.*\b(docs?|documentation|readme|changelog)\b`, ""},
	{"update dependencies", `\bupdate\b.*\bdependen`, ""},
	{"address ci", `\baddress\b.*\b(ci|pipeline|review|feedback)\b`, ""},
	{"refactor", `\brefactor`, `\bnew\b`},
	{"correct", `\bcorrect\b`, ""},
	{"mend", `\bmend\b`, ""},
}

var defaultNewWork = []ruleSpec{
	{"implement", `\bimplement`, ""},
	{"add feature", `\badd\b.*\b(features?|functionality|system|search|notifications?|integration|support|endpoint)\b`, ""},
	{"create", `\bcreat(e|es|ed|ing)\b`, ""},
	{"build", `\bbuild(s|ing)?\b`, ""},
	{"new", `\bnew\b`, ""},
	{"develop", `\bdevelop\b.*\b(feature|system|interface|component)\b`, ""},
	{"design", `\bdesign\b.*\b(feature|system|interface|component)\b`, ""},
}

// DefaultRules returns the built-in rule table.
func DefaultRules() []Rule {
	rules, _ := compileSpecs(defaultMaintenance, Maintenance, PriorityMaintenance)
	newRules, _ := compileSpecs(defaultNewWork, NewWork, PriorityNewWork)
	return append(rules, newRules...)
}

func compileSpecs(specs []ruleSpec, outcome Intent, priority int) ([]Rule, []error) {
	var (
		rules []Rule
		errs  []error
	)
	for _, s := range specs {
		r, err := compileRule(s.name, s.pattern, s.exclude, outcome, priority)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, r)
	}
	return rules, errs
}

func compileRule(name, pattern, exclude string, outcome Intent, priority int) (Rule, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: invalid pattern: %w", name, err)
	}
	r := Rule{Name: name, Pattern: re, Outcome: outcome, Priority: priority}
	if exclude != "" {
		ex, err := regexp.Compile("(?i)" + exclude)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %q: invalid exclude: %w", name, err)
		}
		r.Exclude = ex
	}
	return r, nil
}

// RuleFile is the YAML layout of an intent rules file.
//
//	maintenance_patterns: ['\bfix\b.*\btests?\b', '\bdebug\b']
//	new_work_patterns: ['\bimplement\b.*\bfeature\b']
//	rules:
//	  - name: docs chore
//	    pattern: '\bchore\b'
//	    outcome: maintenance
//	    priority: 120
//
// maintenance_patterns and new_work_patterns, when present, replace the
// corresponding built-in sets. rules are appended.
type RuleFile struct {
	MaintenancePatterns []string       `yaml:"maintenance_patterns"`
	NewWorkPatterns     []string       `yaml:"new_work_patterns"`
	Rules               []RuleFileRule `yaml:"rules"`
}

// RuleFileRule is an explicit rule entry in a RuleFile.
type RuleFileRule struct {
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
	Exclude  string `yaml:"exclude"`
	Outcome  string `yaml:"outcome"`
	Priority int    `yaml:"priority"`
}

// LoadRules builds a rule table from the YAML file at path. A missing file
// (or empty path) yields the defaults. Invalid individual patterns are
// skipped and returned as warnings; only an unreadable or malformed file is
// an error.
func LoadRules(path string) ([]Rule, []error, error) {
	if path == "" {
		return DefaultRules(), nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultRules(), nil, nil
		}
		return nil, nil, err
	}

	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rf.compile()
}

func (rf RuleFile) compile() ([]Rule, []error, error) {
	var (
		rules    []Rule
		warnings []error
	)

	maint := defaultMaintenance
	if len(rf.MaintenancePatterns) > 0 {
		maint = patternSpecs(rf.MaintenancePatterns)
	}
	r, errs := compileSpecs(maint, Maintenance, PriorityMaintenance)
	rules = append(rules, r...)
	warnings = append(warnings, errs...)

	newWork := defaultNewWork
	if len(rf.NewWorkPatterns) > 0 {
		newWork = patternSpecs(rf.NewWorkPatterns)
	}
	r, errs = compileSpecs(newWork, NewWork, PriorityNewWork)
	rules = append(rules, r...)
	warnings = append(warnings, errs...)

	for i, fr := range rf.Rules {
		outcome, ok := ParseIntent(fr.Outcome)
		if !ok {
			warnings = append(warnings, fmt.Errorf("rule %d: unknown outcome %q", i, fr.Outcome))
			continue
		}
		name := fr.Name
		if name == "" {
			name = fr.Pattern
		}
		rule, err := compileRule(name, fr.Pattern, fr.Exclude, outcome, fr.Priority)
		if err != nil {
			warnings = append(warnings, err)
			continue
		}
		rules = append(rules, rule)
	}

	return rules, warnings, nil
}

func patternSpecs(patterns []string) []ruleSpec {
	specs := make([]ruleSpec, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		specs = append(specs, ruleSpec{name: p, pattern: p})
	}
	return specs
}
