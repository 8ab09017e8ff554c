package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/manawise/deckgate"
	"github.com/manawise/deckgate/internal/respcache"
	gateerrors "github.com/manawise/deckgate/pkg/errors"
)

// handler serves the admission API. The shared chat backend calls
// /v1/admission before inference and /v1/cache after it.
type handler struct {
	gate    *deckgate.Gate
	be      *backends
	proxies *proxyResolver
	logger  *slog.Logger
}

func newHandler(gate *deckgate.Gate, be *backends, trustedCIDRs []string, logger *slog.Logger) *handler {
	return &handler{
		gate:    gate,
		be:      be,
		proxies: newProxyResolver(trustedCIDRs, logger),
		logger:  logger,
	}
}

// admissionRequest is the wire form of a gate request. Client IP and user
// agent come from the connection, never from the body.
type admissionRequest struct {
	UserID     string `json:"user_id,omitempty"`
	GuestToken string `json:"guest_token,omitempty"`
	RouteKey   string `json:"route_key,omitempty"`

	Model               string  `json:"model"`
	SystemPromptHash    string  `json:"system_prompt_hash"`
	Intent              string  `json:"intent"`
	UserText            string  `json:"user_text"`
	DeckContextIncluded bool    `json:"deck_context_included"`
	DeckHash            *string `json:"deck_hash"`
	Locale              string  `json:"locale"`
	Private             bool    `json:"private"`
}

type cacheWriteRequest struct {
	admissionRequest
	Response respcache.Entry `json:"response"`
}

func (h *handler) toGateRequest(r *http.Request, req admissionRequest) deckgate.Request {
	return deckgate.Request{
		UserID:              req.UserID,
		GuestToken:          req.GuestToken,
		ClientIP:            h.clientIP(r),
		UserAgent:           r.UserAgent(),
		RouteKey:            req.RouteKey,
		Model:               req.Model,
		SystemPromptHash:    req.SystemPromptHash,
		Intent:              req.Intent,
		UserText:            req.UserText,
		DeckContextIncluded: req.DeckContextIncluded,
		DeckHash:            req.DeckHash,
		Locale:              req.Locale,
		Private:             req.Private,
	}
}

func (h *handler) clientIP(r *http.Request) string {
	return h.proxies.ClientIP(r)
}

// Admission runs one request through the gate and renders the decision.
func (h *handler) Admission(w http.ResponseWriter, r *http.Request) {
	var req admissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	dec := h.gate.Check(r.Context(), h.toGateRequest(r, req))

	status := http.StatusOK
	if !dec.Allowed {
		status = gateerrors.StatusForCode(dec.Code)
	}
	writeJSON(w, status, dec)
}

// CacheWrite records a freshly computed response. Always 204: the cache
// fails open and the response already reached the user.
func (h *handler) CacheWrite(w http.ResponseWriter, r *http.Request) {
	var req cacheWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.Response.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "empty response text")
		return
	}

	entry := req.Response
	h.gate.Remember(r.Context(), h.toGateRequest(r, req.admissionRequest), &entry)
	w.WriteHeader(http.StatusNoContent)
}

// CacheStats reports cache hit counters.
func (h *handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gate.CacheStats())
}

// Health pings every backing store.
func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.be.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
