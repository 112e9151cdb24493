package clientinfo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"docsign/internal/clientinfo"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "198.51.100.7:51234", "198.51.100.7"},
		{"remote addr without port", nil, "198.51.100.7", "198.51.100.7"},
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "203.0.113.1", "X-Forwarded-For": "203.0.113.2"}, "10.0.0.1:1", "203.0.113.1"},
		{"first forwarded hop", map[string]string{"X-Forwarded-For": "203.0.113.2, 10.0.0.2"}, "10.0.0.1:1", "203.0.113.2"},
		{"real ip", map[string]string{"X-Real-IP": "2001:db8::1"}, "10.0.0.1:1", "2001:db8::1"},
		{"garbage header skipped", map[string]string{"CF-Connecting-IP": "unknown", "X-Real-IP": "203.0.113.3"}, "10.0.0.1:1", "203.0.113.3"},
		{"nothing usable", map[string]string{"X-Forwarded-For": "nope"}, "pipe", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, clientinfo.ClientIP(h, tt.remote))
		})
	}
}

func TestFromRequestAndContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	req.Header.Set("User-Agent", "curl/8.0")

	info := clientinfo.FromRequest(req)
	assert.Equal(t, clientinfo.Info{IP: "192.0.2.10", UserAgent: "curl/8.0"}, info)

	ctx := clientinfo.NewContext(context.Background(), info)
	assert.Equal(t, info, clientinfo.FromContext(ctx))
	assert.Equal(t, clientinfo.Info{}, clientinfo.FromContext(context.Background()))
}
