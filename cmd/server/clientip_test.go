package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testResolver(cidrs ...string) *proxyResolver {
	return newProxyResolver(cidrs, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newRequest(remoteAddr string, headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/v1/admission", nil)
	r.RemoteAddr = remoteAddr
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestProxyResolver_ClientIP(t *testing.T) {
	t.Run("direct connection uses peer address", func(t *testing.T) {
		p := testResolver()
		r := newRequest("203.0.113.9:54321", nil)
		assert.Equal(t, "203.0.113.9", p.ClientIP(r))
	})

	t.Run("forwarded header ignored from untrusted peer", func(t *testing.T) {
		p := testResolver("10.0.0.0/8")
		r := newRequest("203.0.113.9:54321", map[string]string{
			"X-Forwarded-For": "198.51.100.1",
		})
		assert.Equal(t, "203.0.113.9", p.ClientIP(r))
	})

	t.Run("trusted proxy honors forwarded chain", func(t *testing.T) {
		p := testResolver("10.0.0.0/8")
		r := newRequest("10.1.2.3:443", map[string]string{
			"X-Forwarded-For": "198.51.100.1, 10.0.0.5",
		})
		assert.Equal(t, "198.51.100.1", p.ClientIP(r))
	})

	t.Run("x-real-ip fallback behind trusted proxy", func(t *testing.T) {
		p := testResolver("10.0.0.0/8")
		r := newRequest("10.1.2.3:443", map[string]string{
			"X-Real-IP": "198.51.100.2",
		})
		assert.Equal(t, "198.51.100.2", p.ClientIP(r))
	})

	t.Run("invalid CIDR config ignored", func(t *testing.T) {
		p := testResolver("not-a-cidr", "10.0.0.0/8")
		r := newRequest("10.1.2.3:443", map[string]string{
			"X-Forwarded-For": "198.51.100.3",
		})
		assert.Equal(t, "198.51.100.3", p.ClientIP(r))
	})
}
