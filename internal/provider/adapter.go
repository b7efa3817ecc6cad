// Package provider wraps concrete model providers behind one call contract.
// Adapters own their wire format, translate failures into the fixed error
// code taxonomy, and measure latency from call start to parse completion.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ethiscan/orchestrator/internal/types"
)

// Result is a normalized provider success.
type Result struct {
	Text             string // raw model output, pre JSON extraction
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencyMs        int64
}

// Adapter is the uniform provider contract.
type Adapter interface {
	Name() string
	// SupportsVision reports whether the adapter accepts image payloads;
	// the orchestrator consults it before routing image-bearing requests.
	SupportsVision() bool
	Call(ctx context.Context, req *types.AnalysisRequest) (*Result, error)
}

// Error is a classified provider failure. No raw provider error ever
// escapes past this type.
type Error struct {
	Code    types.ErrorCode
	Message string
	Status  int // provider HTTP status, 0 for transport-level failures
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a classified *Error, wrapping unclassified errors as
// UNKNOWN so callers always see the taxonomy.
func AsError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Code: types.ErrUnknown, Message: "unclassified provider failure", Err: err}
}

// classifyTransport maps client-side failures (no HTTP status available).
func classifyTransport(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: types.ErrTimeout, Message: "provider call exceeded deadline", Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Code: types.ErrTimeout, Message: "provider call canceled", Err: err}
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			return &Error{Code: types.ErrNetwork, Message: "provider unreachable", Err: err}
		}
		return &Error{Code: types.ErrNetwork, Message: "provider transport failure", Err: err}
	}
}

// classifyStatus maps a non-2xx provider status into the taxonomy.
func classifyStatus(status int, body string) *Error {
	var code types.ErrorCode
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = types.ErrAuthentication
	case status == http.StatusTooManyRequests:
		code = types.ErrRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		code = types.ErrTimeout
	case status >= 400 && status < 500:
		code = types.ErrInvalidRequest
	case status >= 500:
		code = types.ErrProvider
	default:
		code = types.ErrUnknown
	}
	msg := fmt.Sprintf("provider returned status %d", status)
	if len(body) > 256 {
		body = body[:256]
	}
	return &Error{Code: code, Message: msg, Status: status, Err: errors.New(body)}
}
