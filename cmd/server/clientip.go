package main

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// proxyResolver derives the real client IP. Forwarded headers are honored
// only when the direct peer is inside a trusted proxy CIDR; otherwise a
// client could spoof its way past per-IP quotas.
type proxyResolver struct {
	trusted []*net.IPNet
}

func newProxyResolver(cidrs []string, logger *slog.Logger) *proxyResolver {
	r := &proxyResolver{}
	for _, cidr := range cidrs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warn("ignoring invalid trusted proxy CIDR", "cidr", cidr, "error", err)
			continue
		}
		r.trusted = append(r.trusted, ipnet)
	}
	return r
}

func (p *proxyResolver) isTrusted(ip net.IP) bool {
	for _, ipnet := range p.trusted {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the client address for quota and smoothing purposes.
func (p *proxyResolver) ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peer := net.ParseIP(host)
	if peer == nil || !p.isTrusted(peer) {
		return host
	}

	// Walk X-Forwarded-For right to left and take the first hop that is
	// not one of our own proxies.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			ip := net.ParseIP(hop)
			if ip == nil {
				break
			}
			if !p.isTrusted(ip) {
				return ip.String()
			}
		}
	}

	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
			return ip.String()
		}
	}

	return host
}
