// Package intent classifies a free-text instruction as maintenance work,
// new work, or ambiguous.
//
// Classification is a data-driven rule table. Every rule that matches is
// reported, and the outcome of the highest-priority match wins. The default
// table gives maintenance rules a higher priority than new-work rules, so a
// bug fix is never classified as new work because it also says "add".
package intent

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// Intent is the classification of a user's stated goal.
type Intent string

const (
	Maintenance Intent = "MAINTENANCE"
	NewWork     Intent = "NEW"
	Ambiguous   Intent = "AMBIGUOUS"
)

// Default rule priorities.
const (
	PriorityMaintenance = 100
	PriorityNewWork     = 50
)

// Rule is one row of the classification table.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Exclude  *regexp.Regexp // optional; a match here cancels Pattern
	Outcome  Intent
	Priority int
}

// Matches reports whether the rule fires for text.
func (r Rule) Matches(text string) bool {
	if !r.Pattern.MatchString(text) {
		return false
	}
	return r.Exclude == nil || !r.Exclude.MatchString(text)
}

// Result is the outcome of classifying one instruction.
type Result struct {
	Intent    Intent   `json:"intent"`
	Matched   []string `json:"matched_rules"`
	Reasoning string   `json:"reasoning"`
}

// Analyzer applies a rule table.
type Analyzer struct {
	rules  []Rule
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer over rules. Rules are evaluated in
// descending priority; ties keep their given order.
func NewAnalyzer(rules []Rule, logger *slog.Logger) *Analyzer {
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return &Analyzer{rules: sorted, logger: logger}
}

// Rules returns the analyzer's rule table in evaluation order.
func (a *Analyzer) Rules() []Rule {
	return append([]Rule(nil), a.rules...)
}

// Classify returns the intent of text.
func (a *Analyzer) Classify(text string) Result {
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return Result{Intent: Ambiguous, Reasoning: "empty or whitespace-only message"}
	}

	var (
		matched []string
		winner  *Rule
	)
	for i := range a.rules {
		r := &a.rules[i]
		if !r.Matches(msg) {
			continue
		}
		matched = append(matched, r.Name)
		if winner == nil {
			winner = r
		}
	}

	var res Result
	if winner == nil {
		res = Result{Intent: Ambiguous, Reasoning: "no maintenance or new-work keywords matched"}
	} else {
		res = Result{
			Intent:    winner.Outcome,
			Matched:   matched,
			Reasoning: fmt.Sprintf("matched %q (priority %d)", winner.Name, winner.Priority),
		}
		if len(matched) > 1 {
			res.Reasoning += fmt.Sprintf(" over %d other rule(s)", len(matched)-1)
		}
	}

	a.logger.Debug("intent classified", "intent", res.Intent, "matched", matched)
	return res
}

// ParseIntent parses a user-supplied intent name. Accepts the enum values and
// the spellings used by the AGENT_OS_WORK_TYPE override.
func ParseIntent(s string) (Intent, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "maintenance":
		return Maintenance, true
	case "new", "new_work", "new-work":
		return NewWork, true
	case "ambiguous":
		return Ambiguous, true
	}
	return "", false
}
