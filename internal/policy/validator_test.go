package policy

import (
	"reflect"
	"testing"

	"github.com/ethiscan/orchestrator/internal/types"
)

func result(note string, suggestions ...types.Suggestion) *types.AnalysisResult {
	return &types.AnalysisResult{Suggestions: suggestions, GeneralNote: note}
}

func TestValidate_WelfareLensForbidsPlantSubstitutes(t *testing.T) {
	v := NewValidator(nil)

	out := v.Validate(types.LensWelfare, result("",
		types.Suggestion{Name: "Tofu scramble", Description: "A tofu-based swap", Reasoning: "No animals involved"},
	))
	if out.OK() {
		t.Fatal("expected a violation for tofu under the welfare lens")
	}
	if out.Violations[0].Rule != "plant_substitute" {
		t.Errorf("unexpected rule: %s", out.Violations[0].Rule)
	}
	if out.Violations[0].Field != "suggestion[0]" {
		t.Errorf("unexpected field: %s", out.Violations[0].Field)
	}
}

func TestValidate_AllowOverrideDowngradesToWarning(t *testing.T) {
	v := NewValidator(nil)

	out := v.Validate(types.LensWelfare, result("",
		types.Suggestion{
			Name:        "Pasture-raised option",
			Description: "A certified line, rather than tofu, keeping the product you know.",
			Reasoning:   "Audited welfare standards",
		},
	))
	if !out.OK() {
		t.Fatalf("allow-pattern override should neutralize the match, got %v", out.Violations)
	}
	if len(out.Warnings) != 1 {
		t.Fatalf("expected the overridden match to surface as a warning, got %d", len(out.Warnings))
	}
}

func TestValidate_GeneralNoteScanned(t *testing.T) {
	v := NewValidator(nil)

	out := v.Validate(types.LensVegan, result("Pairs well with cheese.",
		types.Suggestion{Name: "Lentil stew", Description: "Hearty and cheap", Reasoning: "Staple protein"},
	))
	if out.OK() {
		t.Fatal("expected a violation from the general note")
	}
	if out.Violations[0].Field != "general_note" {
		t.Errorf("expected general_note field, got %s", out.Violations[0].Field)
	}
}

func TestValidate_ReduceLensRequiresCue(t *testing.T) {
	v := NewValidator(nil)

	missing := v.Validate(types.LensReduce, result("A fine product.",
		types.Suggestion{Name: "Same product", Description: "Keep enjoying it", Reasoning: "No concerns"},
	))
	if missing.OK() {
		t.Fatal("expected a violation when no reduction cue is present")
	}

	present := v.Validate(types.LensReduce, result("Try eating this less often.",
		types.Suggestion{Name: "Same product", Description: "Keep enjoying it", Reasoning: "No concerns"},
	))
	if !present.OK() {
		t.Fatalf("reduction cue present, expected pass, got %v", present.Violations)
	}
}

func TestValidate_VegetarianFreeFromOverride(t *testing.T) {
	v := NewValidator(nil)

	out := v.Validate(types.LensVegetarian, result("",
		types.Suggestion{Name: "Veggie patty", Description: "Completely free from beef and soy-based.", Reasoning: "Legume protein"},
	))
	if !out.OK() {
		t.Fatalf("free-from phrasing should be allowed, got %v", out.Violations)
	}
}

func TestValidate_Deterministic(t *testing.T) {
	v := NewValidator(nil)
	r := result("Contains chicken broth.",
		types.Suggestion{Name: "Bacon bits", Description: "Crunchy topping", Reasoning: "Flavor"},
	)
	first := v.Validate(types.LensVegan, r)
	for i := 0; i < 5; i++ {
		if got := v.Validate(types.LensVegan, r); !reflect.DeepEqual(got, first) {
			t.Fatal("validation must be deterministic for identical input")
		}
	}
}

func TestFallbacksAreSelfCompliant(t *testing.T) {
	v := NewValidator(nil)
	for _, lens := range types.Lenses() {
		fb := Fallback(lens)
		if out := v.Validate(lens, fb); !out.OK() {
			t.Errorf("lens %s fallback violates its own rules: %v", lens, out.Violations)
		}
		if fb.EthicalLensPosition != LensTitle(lens) {
			t.Errorf("lens %s fallback position = %q, want %q", lens, fb.EthicalLensPosition, LensTitle(lens))
		}
		if len(fb.Suggestions) == 0 {
			t.Errorf("lens %s fallback has no suggestions", lens)
		}
	}
}

func TestFallback_Deterministic(t *testing.T) {
	a := Fallback(types.LensWelfare)
	b := Fallback(types.LensWelfare)
	if !reflect.DeepEqual(a, b) {
		t.Error("fallback payload must be identical across calls")
	}
	// and isolated: mutating one copy must not leak into the next
	a.Suggestions[0].Name = "mutated"
	if c := Fallback(types.LensWelfare); c.Suggestions[0].Name == "mutated" {
		t.Error("fallback copies must not share backing storage")
	}
}

func TestCompileRules(t *testing.T) {
	rules, err := CompileRules([]string{`(?i)\bfoo\b`}, nil, []string{`bar`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules.Forbidden) != 1 || len(rules.RequiredCues) != 1 {
		t.Fatal("wrong rule counts")
	}

	if _, err := CompileRules([]string{`(`}, nil, nil); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
