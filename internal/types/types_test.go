package types

import (
	"encoding/json"
	"testing"
)

func TestLens_Valid(t *testing.T) {
	for _, l := range Lenses() {
		if !l.Valid() {
			t.Errorf("lens %d should be valid", l)
		}
	}
	for _, l := range []Lens{0, 5, -1} {
		if l.Valid() {
			t.Errorf("lens %d should be invalid", l)
		}
	}
}

func TestMode_Valid(t *testing.T) {
	if !ModeAnalyze.Valid() || !ModeAlternatives.Valid() {
		t.Error("known modes should be valid")
	}
	if Mode("chat").Valid() {
		t.Error("unknown mode should be invalid")
	}
}

func TestEnvelope_ErrorExcludesData(t *testing.T) {
	env := ErrorEnvelope(ErrTimeout, "provider deadline exceeded", Metadata{Provider: "gemini"})
	if env.Success {
		t.Error("error envelope must have Success=false")
	}
	if env.Data != nil {
		t.Error("error envelope must not carry data")
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["data"]; ok {
		t.Error("data field should be omitted on error envelopes")
	}
	// cache_hit is always serialized, even when false
	meta := decoded["metadata"].(map[string]any)
	if _, ok := meta["cache_hit"]; !ok {
		t.Error("metadata.cache_hit must always be present")
	}
}

func TestRequest_TimeoutDefault(t *testing.T) {
	r := &AnalysisRequest{}
	if got := r.Timeout(30e9); got != 30e9 {
		t.Errorf("expected default timeout, got %v", got)
	}
	r.TimeoutMs = 1500
	if got := r.Timeout(30e9); got != 1500e6 {
		t.Errorf("expected 1.5s, got %v", got)
	}
}
