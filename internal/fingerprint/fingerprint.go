package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// digestLen is the number of SHA-256 bytes kept in an image digest. 16 bytes
// (128 bits) is comfortably collision-resistant for a response cache.
const digestLen = 16

// ImageDigest returns a stable, one-way identifier for image bytes. It is an
// exact-content hash, not a perceptual hash: byte-identical images collide,
// recompressed or cropped near-duplicates do not. The original pixels cannot
// be re-derived from the digest.
func ImageDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:digestLen])
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText canonicalizes a free-text key component: lowercase, trimmed,
// inner whitespace collapsed, diacritics removed. "  Crème  Fraîche " and
// "creme fraiche" normalize to the same string.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	if out, _, err := transform.String(stripMarks, s); err == nil {
		return out
	}
	return s
}
