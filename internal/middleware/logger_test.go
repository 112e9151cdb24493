package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"docsign/internal/clientinfo"
	"docsign/internal/middleware"
)

func TestRequestChain(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.RequestID(), middleware.ClientInfo(), middleware.Logger(log))
	r.GET("/ok", func(c *gin.Context) {
		info := clientinfo.FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"ip": info.IP, "ua": info.UserAgent})
	})
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ok", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "200.160.2.3, 10.0.0.1")
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"ip":"200.160.2.3","ua":"curl/8.0"}`, w.Body.String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/panic", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	requests := logs.FilterMessage("http request").All()
	assert.Len(t, requests, 1)
}
