package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manawise/deckgate"
	"github.com/manawise/deckgate/internal/config"
)

func newTestHandler(t *testing.T) *handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.DefaultConfig()
	cfg.Guest.MessageLimit = 2

	be, err := buildBackends(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(be.Close)

	return newHandler(buildGate(cfg, be, logger), be, nil, logger)
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, r)
	return w
}

func TestHandler_Admission(t *testing.T) {
	h := newTestHandler(t)

	req := admissionRequest{
		GuestToken:       "guest_tok_handler_test_01",
		Model:            "gpt-5",
		SystemPromptHash: "sys-v3",
		Intent:           "rules_question",
		UserText:         "what is the stack",
		Locale:           "en",
	}

	t.Run("guest allowed", func(t *testing.T) {
		w := postJSON(t, h.Admission, "/v1/admission", req)
		require.Equal(t, http.StatusOK, w.Code)

		var dec deckgate.Decision
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dec))
		assert.True(t, dec.Allowed)
		assert.Equal(t, deckgate.TierGuest, dec.Tier)
		assert.False(t, dec.CacheHit)
	})

	t.Run("guest denied with 429 after the cap", func(t *testing.T) {
		// One message remains on the two-message test cap.
		w := postJSON(t, h.Admission, "/v1/admission", req)
		require.Equal(t, http.StatusOK, w.Code)

		w = postJSON(t, h.Admission, "/v1/admission", req)
		require.Equal(t, http.StatusTooManyRequests, w.Code)

		var dec deckgate.Decision
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dec))
		assert.False(t, dec.Allowed)
		assert.Equal(t, "guest_limit_exceeded", dec.Code)
		assert.True(t, dec.Upsell)
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/v1/admission", bytes.NewReader([]byte("{broken")))
		w := httptest.NewRecorder()
		h.Admission(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_CacheWriteThenHit(t *testing.T) {
	h := newTestHandler(t)

	base := admissionRequest{
		UserID:           "user-42",
		Model:            "gpt-5",
		SystemPromptHash: "sys-v3",
		Intent:           "rules_question",
		UserText:         "what is priority",
		Locale:           "en",
	}

	write := cacheWriteRequest{admissionRequest: base}
	write.Response.Text = "Priority is the right to act before the game moves on."

	w := postJSON(t, h.CacheWrite, "/v1/cache", write)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = postJSON(t, h.Admission, "/v1/admission", base)
	require.Equal(t, http.StatusOK, w.Code)

	var dec deckgate.Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dec))
	assert.True(t, dec.Allowed)
	assert.True(t, dec.CacheHit)
	require.NotNil(t, dec.Cached)
	assert.Contains(t, dec.Cached.Text, "Priority")
}

func TestHandler_CacheWriteValidation(t *testing.T) {
	h := newTestHandler(t)

	write := cacheWriteRequest{}
	write.UserID = "user-42"

	w := postJSON(t, h.CacheWrite, "/v1/cache", write)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Health(t *testing.T) {
	h := newTestHandler(t)

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Health(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}
