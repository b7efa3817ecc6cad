package policy

import (
	"fmt"

	"github.com/ethiscan/orchestrator/internal/config"
	"github.com/ethiscan/orchestrator/internal/types"
)

// FromConfig builds a rule table from the operator lens config. Lenses the
// config doesn't mention keep their built-in rules, so a partial override
// never silently disables enforcement. A nil config yields the defaults.
func FromConfig(cfg *config.LensesConfig) (*Table, error) {
	base := DefaultTable()
	if cfg == nil {
		return base, nil
	}

	rules := make(map[types.Lens]LensRules, len(types.Lenses()))
	for _, lens := range types.Lenses() {
		rules[lens] = base.Rules(lens)
	}

	for id, entry := range cfg.Lenses {
		lens := types.Lens(id)
		if !lens.Valid() {
			return nil, fmt.Errorf("lenses config: unknown lens id %d", id)
		}
		compiled, err := CompileRules(entry.Forbidden, entry.Allowed, entry.RequiredCues)
		if err != nil {
			return nil, fmt.Errorf("lenses config: lens %d: %w", id, err)
		}
		rules[lens] = compiled
	}

	version := cfg.Version
	if version == "" {
		version = "unversioned"
	}
	return NewTable(version, rules), nil
}
