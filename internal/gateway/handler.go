// Package gateway is the HTTP edge: it decodes requests, attaches caller
// identity, runs the orchestrator, and writes envelopes.
package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ethiscan/orchestrator/internal/httputil"
	"github.com/ethiscan/orchestrator/internal/orchestrator"
	"github.com/ethiscan/orchestrator/internal/policy"
	"github.com/ethiscan/orchestrator/internal/types"
)

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

func NewHandler(orch *orchestrator.Orchestrator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{orch: orch, logger: logger}
}

// Analyze handles POST /v1/analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, reqID, "failed to read request body")
		return
	}
	defer r.Body.Close()

	var req types.AnalysisRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequest(w, reqID, "invalid JSON: "+err.Error())
		return
	}

	// Identity comes from transport, never from the body.
	req.ClientIP = clientIP(r)
	req.UserID = r.Header.Get("X-User-ID")
	req.ReceivedAt = receivedAt

	out := h.orch.Analyze(r.Context(), &req)

	if out.RateLimit != nil {
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(out.RateLimit.Remaining, 10))
		if !out.RateLimit.Allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(int64(out.RateLimit.RetryAfter/time.Second), 10))
		}
	}

	env := out.Envelope
	h.logger.Info("analyze completed",
		"request_id", reqID,
		"mode", req.Mode,
		"lens", req.Lens.String(),
		"success", env.Success,
		"cache_hit", env.Metadata.CacheHit,
		"provider", env.Metadata.Provider,
		"duration_ms", time.Since(receivedAt).Milliseconds(),
	)

	httputil.WriteEnvelope(w, reqID, env)
}

// Lenses handles GET /v1/lenses, listing the supported ethical lenses.
func (h *Handler) Lenses(w http.ResponseWriter, r *http.Request) {
	lenses := make([]lensObject, 0, len(types.Lenses()))
	for _, l := range types.Lenses() {
		lenses = append(lenses, lensObject{
			ID:    int(l),
			Name:  l.String(),
			Title: policy.LensTitle(l),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(lensListResponse{Lenses: lenses})
}

type lensObject struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

type lensListResponse struct {
	Lenses []lensObject `json:"lenses"`
}

// clientIP prefers the RealIP middleware's rewrite, falling back to the
// socket peer when RemoteAddr still carries a port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Health handles GET /v1/health.
func Health(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"healthy","version":%q}`, version)
	}
}
