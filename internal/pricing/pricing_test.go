package pricing

import (
	"math"
	"testing"
)

func TestEstimate_ExactMatch(t *testing.T) {
	tbl := NewTable(nil)
	got := tbl.Estimate("openai", "gpt-4o-mini", 1000, 1000)
	want := 0.00015 + 0.0006
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestEstimate_WildcardPrefersLongestPrefix(t *testing.T) {
	tbl := NewTable([]ModelPrice{
		{Provider: "gemini", Model: "gemini*", InputCostPer1K: 1, OutputCostPer1K: 1},
		{Provider: "gemini", Model: "gemini-1.5-flash*", InputCostPer1K: 0.000075, OutputCostPer1K: 0.0003},
	})
	got := tbl.Estimate("gemini", "gemini-1.5-flash-002", 1000, 0)
	if math.Abs(got-0.000075) > 1e-9 {
		t.Errorf("expected the longer prefix to win, got %f", got)
	}
}

func TestEstimate_UnknownModelIsFree(t *testing.T) {
	tbl := NewTable(nil)
	if got := tbl.Estimate("openai", "some-future-model", 5000, 5000); got != 0 {
		t.Errorf("unknown model should estimate 0, got %f", got)
	}
}

func TestEstimate_ProviderScoped(t *testing.T) {
	tbl := NewTable(nil)
	// gpt-4o-mini priced under openai, not gemini
	if got := tbl.Estimate("gemini", "gpt-4o-mini", 1000, 1000); got != 0 {
		t.Errorf("pricing must be provider-scoped, got %f", got)
	}
}
