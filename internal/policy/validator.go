// Package policy enforces per-lens vocabulary rules on model output. It is
// the last gate before a response reaches the user: any violation replaces
// the whole response with the lens's fixed fallback payload.
package policy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethiscan/orchestrator/internal/types"
)

// Violation records one rule breach in one field of the response.
type Violation struct {
	Rule  string
	Field string // "suggestion[2]" or "general_note"
	Match string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s in %s (%q)", v.Rule, v.Field, v.Match)
}

// Outcome is the result of validating one response against one lens.
type Outcome struct {
	Violations []Violation
	// Warnings are forbidden matches neutralized by an allow-pattern
	// override. Logged, never enforced.
	Warnings []Violation
}

func (o Outcome) OK() bool { return len(o.Violations) == 0 }

// Validator scans responses against a rule table. Reload swaps the table
// atomically for config hot reload.
type Validator struct {
	mu    sync.RWMutex
	table *Table
}

func NewValidator(table *Table) *Validator {
	if table == nil {
		table = DefaultTable()
	}
	return &Validator{table: table}
}

func (v *Validator) Reload(table *Table) {
	v.mu.Lock()
	v.table = table
	v.mu.Unlock()
}

// TableVersion reports the active rule table version for logging.
func (v *Validator) TableVersion() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.table.Version
}

// Validate scans every suggestion's text fields and the general note. For
// each forbidden match the surrounding field text is checked against the
// lens's allow patterns; an override downgrades the match to a warning.
// Required cues must match somewhere across the whole response.
func (v *Validator) Validate(lens types.Lens, result *types.AnalysisResult) Outcome {
	v.mu.RLock()
	rules := v.table.Rules(lens)
	v.mu.RUnlock()

	var out Outcome

	fields := make([]struct{ name, text string }, 0, len(result.Suggestions)+1)
	for i, s := range result.Suggestions {
		fields = append(fields, struct{ name, text string }{
			name: fmt.Sprintf("suggestion[%d]", i),
			text: strings.Join([]string{s.Name, s.Description, s.Reasoning}, " "),
		})
	}
	fields = append(fields, struct{ name, text string }{name: "general_note", text: result.GeneralNote})

	for _, f := range fields {
		for _, rule := range rules.Forbidden {
			match := rule.Regex.FindString(f.text)
			if match == "" {
				continue
			}
			viol := Violation{Rule: rule.Name, Field: f.name, Match: match}
			if anyMatch(rules.Allowed, f.text) {
				out.Warnings = append(out.Warnings, viol)
				continue
			}
			out.Violations = append(out.Violations, viol)
		}
	}

	if len(rules.RequiredCues) > 0 {
		var all strings.Builder
		for _, f := range fields {
			all.WriteString(f.text)
			all.WriteByte(' ')
		}
		full := all.String()
		for _, cue := range rules.RequiredCues {
			if !cue.Regex.MatchString(full) {
				out.Violations = append(out.Violations, Violation{
					Rule:  "missing_" + cue.Name,
					Field: "response",
				})
			}
		}
	}

	return out
}

func anyMatch(rules []Rule, text string) bool {
	for _, r := range rules {
		if r.Regex.MatchString(text) {
			return true
		}
	}
	return false
}
