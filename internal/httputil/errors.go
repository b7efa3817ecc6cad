// Package httputil maps the envelope error taxonomy onto HTTP.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/ethiscan/orchestrator/internal/types"
)

// StatusFor maps an error code to its HTTP status. Upstream trouble is a
// gateway problem from the client's perspective, never a client error.
func StatusFor(code types.ErrorCode) int {
	switch code {
	case types.ErrInvalidRequest:
		return http.StatusBadRequest
	case types.ErrRateLimit:
		return http.StatusTooManyRequests
	case types.ErrTimeout:
		return http.StatusGatewayTimeout
	case types.ErrProvider, types.ErrNetwork, types.ErrAuthentication:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteEnvelope serializes the envelope with the status its content implies.
func WriteEnvelope(w http.ResponseWriter, requestID string, env *types.Envelope) {
	status := http.StatusOK
	if !env.Success && env.Error != nil {
		status = StatusFor(env.Error.Code)
	}
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// WriteBadRequest is for failures before a request ever reaches the
// pipeline (unreadable body, malformed JSON).
func WriteBadRequest(w http.ResponseWriter, requestID, message string) {
	WriteEnvelope(w, requestID, types.ErrorEnvelope(types.ErrInvalidRequest, message, types.Metadata{}))
}
