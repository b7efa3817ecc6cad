package policy

import (
	"fmt"
	"regexp"

	"github.com/ethiscan/orchestrator/internal/types"
)

// Rule is a named, pre-compiled vocabulary pattern.
type Rule struct {
	Name  string
	Regex *regexp.Regexp
}

// LensRules is the rule set for one lens: forbidden vocabulary, allow-pattern
// overrides, and cues that must appear somewhere in the response.
type LensRules struct {
	Forbidden    []Rule
	Allowed      []Rule
	RequiredCues []Rule
}

// Table maps every lens to its rule set. Tables are immutable once built;
// hot reload swaps the whole table.
type Table struct {
	Version string
	rules   map[types.Lens]LensRules
}

// Rules returns the rule set for a lens. Lenses without an entry get an
// empty set (everything passes).
func (t *Table) Rules(lens types.Lens) LensRules {
	return t.rules[lens]
}

// NewTable builds a table from explicit per-lens rules.
func NewTable(version string, rules map[types.Lens]LensRules) *Table {
	return &Table{Version: version, rules: rules}
}

var (
	meatTerms = `(beef|pork|chicken|turkey|lamb|bacon|ham|sausage|fish|tuna|salmon|anchovy|gelatine?|lard)`
	dairyEgg  = `(milk|cheese|butter|cream|yogurt|eggs?|honey|whey|casein)`
)

// DefaultTable returns the built-in lens vocabulary. Operators override it
// with a versioned table from configs/lenses.yaml; the matching engine is
// identical either way.
func DefaultTable() *Table {
	return NewTable("builtin-v1", map[types.Lens]LensRules{
		// Welfare-first users want higher-welfare animal products, not
		// elimination. Plant-substitute vocabulary is off limits unless it
		// appears as a comparative mention.
		types.LensWelfare: {
			Forbidden: []Rule{
				{Name: "plant_substitute", Regex: regexp.MustCompile(`(?i)\b(tofu|tempeh|seitan|plant-based|vegan)\b`)},
			},
			Allowed: []Rule{
				{Name: "comparative_mention", Regex: regexp.MustCompile(`(?i)\b(instead of|rather than|unlike|not)\s+(a\s+|the\s+)?(tofu|tempeh|seitan|plant-based|vegan)\b`)},
			},
		},
		// The reduce lens mandates an explicit consumption-reduction cue
		// somewhere in the response.
		types.LensReduce: {
			RequiredCues: []Rule{
				{Name: "reduction_phrase", Regex: regexp.MustCompile(`(?i)\b(reduc\w*|less|fewer|cut (?:back|down)|smaller portion|once or twice a week|occasionally|meat-free day)\b`)},
			},
		},
		types.LensVegetarian: {
			Forbidden: []Rule{
				{Name: "meat_term", Regex: regexp.MustCompile(`(?i)\b` + meatTerms + `\b`)},
			},
			Allowed: []Rule{
				{Name: "free_from", Regex: regexp.MustCompile(`(?i)\b(without|free (?:of|from)|no|avoid\w*|replaces?|instead of)\b[^.!?]{0,40}\b` + meatTerms + `\b`)},
				{Name: "style_descriptor", Regex: regexp.MustCompile(`(?i)\b(chicken|bacon|fish)[- ]style\b`)},
			},
		},
		types.LensVegan: {
			Forbidden: []Rule{
				{Name: "meat_term", Regex: regexp.MustCompile(`(?i)\b` + meatTerms + `\b`)},
				{Name: "animal_product", Regex: regexp.MustCompile(`(?i)\b` + dairyEgg + `\b`)},
			},
			Allowed: []Rule{
				{Name: "free_from", Regex: regexp.MustCompile(`(?i)\b(without|free (?:of|from)|no|avoid\w*|replaces?|instead of)\b[^.!?]{0,40}\b(` + meatTerms + `|` + dairyEgg + `)\b`)},
				{Name: "negated_label", Regex: regexp.MustCompile(`(?i)\b(dairy|egg|milk)[- ]free\b`)},
				{Name: "plant_analogue", Regex: regexp.MustCompile(`(?i)\b(oat|soy|almond|cashew|coconut|plant)[- ](milk|cream|butter|yogurt|cheese)\b`)},
			},
		},
	})
}

// CompileRules compiles raw pattern strings into a LensRules set. Rule names
// default to the pattern's position within its list.
func CompileRules(forbidden, allowed, requiredCues []string) (LensRules, error) {
	compile := func(kind string, patterns []string) ([]Rule, error) {
		rules := make([]Rule, 0, len(patterns))
		for i, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %d (%q): %w", kind, i, p, err)
			}
			rules = append(rules, Rule{Name: fmt.Sprintf("%s_%d", kind, i), Regex: re})
		}
		return rules, nil
	}

	f, err := compile("forbidden", forbidden)
	if err != nil {
		return LensRules{}, err
	}
	a, err := compile("allowed", allowed)
	if err != nil {
		return LensRules{}, err
	}
	c, err := compile("required_cue", requiredCues)
	if err != nil {
		return LensRules{}, err
	}
	return LensRules{Forbidden: f, Allowed: a, RequiredCues: c}, nil
}
