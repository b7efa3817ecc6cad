package cachestore

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/ethiscan/orchestrator/internal/fingerprint"
	"github.com/ethiscan/orchestrator/internal/types"
)

// Identity is the documented subset of request fields that defines cache
// equality. Free-text user corrections (AdditionalInfo) are deliberately
// absent so personalized responses are never served across users.
type Identity struct {
	TemplateID       string
	TemplateVersion  string
	Mode             types.Mode
	LanguageFamily   string
	ImageFingerprint string
	FocusItem        string // normalized
}

// IdentityFor derives the cache identity from a request.
func IdentityFor(req *types.AnalysisRequest) Identity {
	id := Identity{
		TemplateID:      req.PromptTemplateID,
		TemplateVersion: req.PromptVersion,
		Mode:            req.Mode,
		LanguageFamily:  fingerprint.LanguageFamily(req.Language),
		FocusItem:       fingerprint.NormalizeText(req.FocusItem),
	}
	if req.Image != nil {
		id.ImageFingerprint = imageFingerprint(req.Image.Base64)
	}
	return id
}

func imageFingerprint(b64 string) string {
	if data, err := base64.StdEncoding.DecodeString(b64); err == nil {
		return fingerprint.ImageDigest(data)
	}
	// Undecodable payloads are still keyed stably by their transport form.
	return fingerprint.ImageDigest([]byte(b64))
}

// Key hashes the ordered concatenation of the identity fields. Any change
// to the prompt version changes the key, invalidating cached responses for
// edited prompts automatically.
func (id Identity) Key() string {
	var sb strings.Builder
	sb.WriteString("template:")
	sb.WriteString(id.TemplateID)
	sb.WriteString("|version:")
	sb.WriteString(id.TemplateVersion)
	sb.WriteString("|mode:")
	sb.WriteString(string(id.Mode))
	sb.WriteString("|lang:")
	sb.WriteString(id.LanguageFamily)
	sb.WriteString("|image:")
	sb.WriteString(id.ImageFingerprint)
	sb.WriteString("|focus:")
	sb.WriteString(id.FocusItem)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// ComputeKey is the one-call form used by the orchestrator.
func ComputeKey(req *types.AnalysisRequest) string {
	return IdentityFor(req).Key()
}
