package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"docsign/internal/domain"
	"docsign/internal/handler"
	"docsign/internal/port"
	"docsign/internal/service"
	"docsign/mocks"
)

const protocolCode = "APR-DOC-2026-7K3QZ"

func TestVerificationHandler_VerifyCode(t *testing.T) {
	registry := new(mocks.MockProtocolRegistry)
	h := handler.NewVerificationHandler(registry, new(mocks.MockVerificationService), 0)

	matches := true
	registry.On("VerifyByCode", mock.Anything, protocolCode, "abc123").Return(&domain.VerificationReport{
		Valid:       true,
		Method:      service.MethodProtocol,
		Protocol:    &domain.Protocol{Code: protocolCode},
		HashMatches: &matches,
	}, nil)

	c, w := newContext(http.MethodGet, "/verify/"+protocolCode+"?hash=abc123", nil, "code", protocolCode)
	h.VerifyCode(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, true, data["hash_matches"])
	registry.AssertExpectations(t)
}

func TestVerificationHandler_VerifyCode_Errors(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{domain.ErrProtocolNotFound, http.StatusNotFound, "PROTOCOL_NOT_FOUND"},
		{domain.ErrProtocolRevoked, http.StatusGone, "PROTOCOL_REVOKED"},
		{domain.ErrProtocolExpired, http.StatusGone, "PROTOCOL_EXPIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.wantErr, func(t *testing.T) {
			registry := new(mocks.MockProtocolRegistry)
			h := handler.NewVerificationHandler(registry, new(mocks.MockVerificationService), 0)
			registry.On("VerifyByCode", mock.Anything, protocolCode, "").Return(nil, tt.err)

			c, w := newContext(http.MethodGet, "/verify/"+protocolCode, nil, "code", protocolCode)
			h.VerifyCode(c)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, errorCode(t, w))
		})
	}
}

func TestVerificationHandler_VerifyHash(t *testing.T) {
	registry := new(mocks.MockProtocolRegistry)
	h := handler.NewVerificationHandler(registry, new(mocks.MockVerificationService), 0)
	registry.On("VerifyByHash", mock.Anything, "deadbeef").Return(nil, domain.ErrInvalidInput)

	c, w := newContext(http.MethodGet, "/verify/hash/deadbeef", nil, "hash", "deadbeef")
	h.VerifyHash(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestVerificationHandler_VerifyArtifact(t *testing.T) {
	verification := new(mocks.MockVerificationService)
	h := handler.NewVerificationHandler(new(mocks.MockProtocolRegistry), verification, 64)

	verification.On("VerifyArtifact", mock.Anything, []byte("%PDF-signed")).
		Return(&service.ArtifactReport{Valid: false, Message: "artifact failed verification"}, nil)

	body, contentType := multipartBody(t, "file", "contrato.pdf", []byte("%PDF-signed"), nil)
	c, w := newContext(http.MethodPost, "/verify/artifact", body)
	c.Request.Header.Set("Content-Type", contentType)
	h.VerifyArtifact(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, false, data["valid"])
	verification.AssertExpectations(t)
}

func TestVerificationHandler_VerifyArtifact_Rejects(t *testing.T) {
	h := handler.NewVerificationHandler(new(mocks.MockProtocolRegistry), new(mocks.MockVerificationService), 8)

	body, contentType := multipartBody(t, "file", "big.pdf", []byte("%PDF-1.4 too large"), nil)
	c, w := newContext(http.MethodPost, "/verify/artifact", body)
	c.Request.Header.Set("Content-Type", contentType)
	h.VerifyArtifact(c)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	body, contentType = multipartBody(t, "", "", nil, map[string]string{"other": "x"})
	c, w = newContext(http.MethodPost, "/verify/artifact", body)
	c.Request.Header.Set("Content-Type", contentType)
	h.VerifyArtifact(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FILE", errorCode(t, w))
}

func TestVerificationHandler_Certificate(t *testing.T) {
	verification := new(mocks.MockVerificationService)
	h := handler.NewVerificationHandler(new(mocks.MockProtocolRegistry), verification, 0)
	verification.On("RenderCertificate", mock.Anything, protocolCode).Return(&port.RenderedDocument{
		ContentType: "text/html; charset=utf-8",
		Body:        []byte("<html>VALID</html>"),
	}, nil)

	c, w := newContext(http.MethodGet, "/verify/"+protocolCode+"/certificate", nil, "code", protocolCode)
	h.Certificate(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "<html>VALID</html>", w.Body.String())
}
