package cachestore

import (
	"encoding/base64"
	"testing"

	"github.com/ethiscan/orchestrator/internal/types"
)

func baseRequest() *types.AnalysisRequest {
	return &types.AnalysisRequest{
		PromptTemplateID: "analyze_product",
		PromptVersion:    "v2.0",
		Mode:             types.ModeAnalyze,
		Language:         "en",
		Lens:             types.LensVegan,
		FocusItem:        "Crème Fraîche",
		Image: &types.ImagePayload{
			Base64:   base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes")),
			MimeType: "image/jpeg",
		},
	}
}

func TestComputeKey_Deterministic(t *testing.T) {
	a := ComputeKey(baseRequest())
	b := ComputeKey(baseRequest())
	if a != b {
		t.Errorf("identical identity fields must produce the same key: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected a 64-char hex digest, got %d chars", len(a))
	}
}

func TestComputeKey_VersionChangeInvalidates(t *testing.T) {
	a := ComputeKey(baseRequest())

	req := baseRequest()
	req.PromptVersion = "v2.1"
	if ComputeKey(req) == a {
		t.Error("changing the prompt version alone must change the key")
	}
}

func TestComputeKey_ExcludesUserCorrections(t *testing.T) {
	a := ComputeKey(baseRequest())

	req := baseRequest()
	req.AdditionalInfo = "actually this is the organic variant"
	if ComputeKey(req) != a {
		t.Error("free-text corrections must not affect the cache key")
	}

	// Provider tuning knobs are not identity either.
	temp := 0.9
	req2 := baseRequest()
	req2.Temperature = &temp
	if ComputeKey(req2) != a {
		t.Error("temperature must not affect the cache key")
	}
}

func TestComputeKey_LanguageFamilySharing(t *testing.T) {
	pt := baseRequest()
	pt.Language = "pt"
	es := baseRequest()
	es.Language = "es"
	zh := baseRequest()
	zh.Language = "zh"

	if ComputeKey(pt) != ComputeKey(es) {
		t.Error("dialects of the same family must share a cache entry")
	}
	if ComputeKey(pt) == ComputeKey(zh) {
		t.Error("different language families must not share a cache entry")
	}
}

func TestComputeKey_FocusItemNormalized(t *testing.T) {
	a := baseRequest()
	a.FocusItem = "  Crème  Fraîche "
	b := baseRequest()
	b.FocusItem = "creme fraiche"
	if ComputeKey(a) != ComputeKey(b) {
		t.Error("focus item must be normalized before keying")
	}
}

func TestComputeKey_ImageChangesKey(t *testing.T) {
	a := ComputeKey(baseRequest())

	req := baseRequest()
	req.Image.Base64 = base64.StdEncoding.EncodeToString([]byte("other-jpeg-bytes"))
	if ComputeKey(req) == a {
		t.Error("different image bytes must produce a different key")
	}

	req.Image = nil
	if ComputeKey(req) == a {
		t.Error("image-less request must not collide with an image-bearing one")
	}
}

func TestComputeKey_ModeChangesKey(t *testing.T) {
	a := ComputeKey(baseRequest())
	req := baseRequest()
	req.Mode = types.ModeAlternatives
	if ComputeKey(req) == a {
		t.Error("mode is part of the cache identity")
	}
}
