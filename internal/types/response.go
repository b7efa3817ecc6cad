package types

// ErrorCode classifies every failure the orchestrator can surface.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrProvider       ErrorCode = "PROVIDER_ERROR"
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrRateLimit      ErrorCode = "RATE_LIMIT"
	ErrAuthentication ErrorCode = "AUTHENTICATION"
	ErrNetwork        ErrorCode = "NETWORK"
	ErrUnknown        ErrorCode = "UNKNOWN"
)

// Suggestion is a single ethical-swap suggestion produced by the model (or
// by a lens fallback payload).
type Suggestion struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
	Availability string  `json:"availability"`
}

// AnalysisResult is the parsed, policy-checked payload returned to the user.
type AnalysisResult struct {
	ProductName         string       `json:"product_name,omitempty"`
	Suggestions         []Suggestion `json:"suggestions"`
	GeneralNote         string       `json:"general_note"`
	EthicalLensPosition string       `json:"ethical_lens_position"`
}

// ErrorDetail is the error half of the envelope.
type ErrorDetail struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Metadata is always present on the envelope, success or not.
type Metadata struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	TokensUsed *int   `json:"tokens_used,omitempty"`
	LatencyMs  int64  `json:"latency_ms"`
	CacheHit   bool   `json:"cache_hit"`
}

// Envelope is the uniform response shape. Success and Data travel together:
// Success=false implies Data==nil and Error!=nil.
type Envelope struct {
	Success  bool            `json:"success"`
	Data     *AnalysisResult `json:"data,omitempty"`
	Error    *ErrorDetail    `json:"error,omitempty"`
	Metadata Metadata        `json:"metadata"`
}

// ErrorEnvelope builds a failure envelope with the given code.
func ErrorEnvelope(code ErrorCode, message string, meta Metadata) *Envelope {
	return &Envelope{
		Success:  false,
		Error:    &ErrorDetail{Code: code, Message: message},
		Metadata: meta,
	}
}
