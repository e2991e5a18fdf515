package pkg

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// TrustedProxies holds the reverse proxies (nginx) whose X-Real-Ip and X-Forwarded-For headers are believed.
// A nil *TrustedProxies trusts nobody.
type TrustedProxies struct {
	nets []*net.IPNet
}

// ParseTrustedProxies accepts plain IPs and CIDRs.
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	p := &TrustedProxies{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy [%s]", entry)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			entry = fmt.Sprintf("%s/%d", ip.String(), bits)
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy [%s]: %w", entry, err)
		}
		p.nets = append(p.nets, ipNet)
	}
	return p, nil
}

func (p *TrustedProxies) Contains(addr string) bool {
	if p == nil {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range p.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolve returns the caller address. Proxy headers are only read when the connection comes from a trusted
// proxy; X-Forwarded-For is walked right to left, skipping trusted hops.
func (p *TrustedProxies) Resolve(r *http.Request) string {
	remote := RemoteHost(r)
	if !p.Contains(remote) {
		return remote
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			if !p.Contains(hop) || i == 0 {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); net.ParseIP(ip) != nil {
		return ip
	}

	return remote
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the address resolved by the RealIP middleware, or the connection's remote host.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return RemoteHost(r)
}

func RemoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
