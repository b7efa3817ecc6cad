package config

// LensesConfig is the declarative, versioned policy vocabulary. Lens rules
// are data so operators can tune them without new code paths; the matching
// engine stays generic.
type LensesConfig struct {
	Version string                `yaml:"version"`
	Lenses  map[int]LensRuleEntry `yaml:"lenses"`
}

type LensRuleEntry struct {
	Forbidden    []string `yaml:"forbidden"`
	Allowed      []string `yaml:"allowed"`
	RequiredCues []string `yaml:"required_cues"`
}
