package types

import "time"

// Mode selects which analysis flavor the client asked for.
type Mode string

const (
	ModeAnalyze      Mode = "analyze"
	ModeAlternatives Mode = "alternatives"
)

func (m Mode) Valid() bool {
	return m == ModeAnalyze || m == ModeAlternatives
}

// Lens is the user-selected ethical preference level. The set is closed:
// policy rules and fallback payloads are keyed by it, so adding a lens means
// adding a rule table and a fallback payload, not a new code path.
type Lens int

const (
	LensWelfare    Lens = 1 // higher-welfare animal products, no elimination
	LensReduce     Lens = 2 // reduce consumption, explicit frequency cues
	LensVegetarian Lens = 3
	LensVegan      Lens = 4
)

func (l Lens) Valid() bool {
	return l >= LensWelfare && l <= LensVegan
}

func (l Lens) String() string {
	switch l {
	case LensWelfare:
		return "welfare"
	case LensReduce:
		return "reduce"
	case LensVegetarian:
		return "vegetarian"
	case LensVegan:
		return "vegan"
	default:
		return "unknown"
	}
}

// Lenses returns all valid lenses in order.
func Lenses() []Lens {
	return []Lens{LensWelfare, LensReduce, LensVegetarian, LensVegan}
}

// ImagePayload carries the scanned product photo. Both fields are required
// when an image is present.
type ImagePayload struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mime_type"`
}

// AnalysisRequest is the canonical internal representation of an incoming
// analysis request. The orchestrator treats Prompt as an opaque string; the
// template id and version identify it for cache-key purposes.
type AnalysisRequest struct {
	PromptTemplateID string        `json:"prompt_template_id"`
	PromptVersion    string        `json:"prompt_version"`
	Prompt           string        `json:"prompt"`
	Mode             Mode          `json:"mode"`
	Language         string        `json:"language"`
	Lens             Lens          `json:"lens"`
	FocusItem        string        `json:"focus_item,omitempty"`
	// AdditionalInfo carries free-text user corrections. It is sent to the
	// provider but intentionally excluded from the cache key so personalized
	// corrections are never served to other users.
	AdditionalInfo string        `json:"additional_info,omitempty"`
	Image          *ImagePayload `json:"image,omitempty"`
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      *int          `json:"max_tokens,omitempty"`
	TimeoutMs      int           `json:"timeout_ms,omitempty"`

	// Identity (set by the gateway, not the client)
	UserID   string `json:"-"`
	ClientIP string `json:"-"`

	ReceivedAt time.Time `json:"-"`
}

// Timeout returns the provider deadline for this request.
func (r *AnalysisRequest) Timeout(def time.Duration) time.Duration {
	if r.TimeoutMs > 0 {
		return time.Duration(r.TimeoutMs) * time.Millisecond
	}
	return def
}
