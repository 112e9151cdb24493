// Package clientinfo carries the caller's network identity from the transport
// layer to the audit log.
package clientinfo

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// Info identifies the client of a request.
type Info struct {
	IP        string
	UserAgent string
}

// ipHeaders are consulted in order: edge proxy, forwarded-for chain, real-ip.
var ipHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// FromRequest extracts the client IP from the prioritized proxy headers,
// falling back to the direct connection address.
func FromRequest(r *http.Request) Info {
	return Info{
		IP:        ClientIP(r.Header, r.RemoteAddr),
		UserAgent: r.UserAgent(),
	}
}

// ClientIP resolves the client address from headers and remoteAddr.
func ClientIP(h http.Header, remoteAddr string) string {
	for _, name := range ipHeaders {
		v := h.Get(name)
		if v == "" {
			continue
		}
		if name == "X-Forwarded-For" {
			v, _, _ = strings.Cut(v, ",")
		}
		v = strings.TrimSpace(v)
		if net.ParseIP(v) != nil {
			return v
		}
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if net.ParseIP(host) != nil {
		return host
	}
	return ""
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying info.
func NewContext(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// FromContext returns the Info stored in ctx, or the zero Info.
func FromContext(ctx context.Context) Info {
	info, _ := ctx.Value(ctxKey{}).(Info)
	return info
}
