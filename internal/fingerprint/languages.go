package fingerprint

import "strings"

// Language families bucket fine-grained locale codes so cache entries are
// shared across dialects that don't change the model's output structure.
const (
	FamilyLatin    = "latin"
	FamilyCJK      = "cjk"
	FamilyArabic   = "arabic"
	FamilyCyrillic = "cyrillic"
	FamilyIndic    = "indic"
)

var languageFamilies = map[string]string{
	// latin-script European languages share prompts and output conventions
	"en": FamilyLatin, "es": FamilyLatin, "pt": FamilyLatin, "fr": FamilyLatin,
	"de": FamilyLatin, "it": FamilyLatin, "nl": FamilyLatin, "pl": FamilyLatin,
	"sv": FamilyLatin, "da": FamilyLatin, "no": FamilyLatin, "fi": FamilyLatin,
	"tr": FamilyLatin, "id": FamilyLatin, "vi": FamilyLatin,

	"zh": FamilyCJK, "ja": FamilyCJK, "ko": FamilyCJK,

	"ar": FamilyArabic, "fa": FamilyArabic, "ur": FamilyArabic,

	"ru": FamilyCyrillic, "uk": FamilyCyrillic, "bg": FamilyCyrillic,
	"sr": FamilyCyrillic, "kk": FamilyCyrillic,

	"hi": FamilyIndic, "bn": FamilyIndic, "ta": FamilyIndic,
	"te": FamilyIndic, "mr": FamilyIndic, "gu": FamilyIndic,
}

// LanguageFamily maps a BCP-47 code ("pt-BR", "zh_Hant") to its coarse
// family via the primary subtag. Unknown codes default to latin, the most
// populous family.
func LanguageFamily(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if fam, ok := languageFamilies[code]; ok {
		return fam
	}
	return FamilyLatin
}
