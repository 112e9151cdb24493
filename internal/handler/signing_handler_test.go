package handler_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"docsign/internal/domain"
	"docsign/internal/handler"
	"docsign/internal/service"
	"docsign/mocks"
)

func signResult() *service.SignResult {
	return &service.SignResult{
		Protocol:     &domain.Protocol{Code: "APR-DOC-2026-7K3QZ"},
		ArtifactHash: strings.Repeat("a", 64),
		Scheme:       domain.SchemeElectronic,
	}
}

func TestSigningHandler_SignCanvas_Success(t *testing.T) {
	mockSigning := new(mocks.MockSigningService)
	h := handler.NewSigningHandler(mockSigning)
	docID := uuid.New()

	mockSigning.On("SignWithCanvas", mock.Anything, mock.MatchedBy(func(in *service.SignCanvasInput) bool {
		return in.DocumentID == docID &&
			in.ImageBase64 == "iVBORw0KGgo=" &&
			in.Signer.CPF == "529.982.247-25" &&
			in.Signer.Party == "contratante" &&
			in.SignatureID == nil &&
			in.ActorID == testActor.ID
	})).Return(signResult(), nil)

	c, w := newContext(http.MethodPost, "/api/v1/documents/"+docID.String()+"/sign/canvas", jsonBody(t, map[string]string{
		"image": "iVBORw0KGgo=",
		"name":  "Maria Silva",
		"cpf":   "529.982.247-25",
		"party": "contratante",
	}), "id", docID.String())
	h.SignCanvas(withActor(withJSON(c)))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode(t, w).Success)
	mockSigning.AssertExpectations(t)
}

func TestSigningHandler_SignCanvas_Errors(t *testing.T) {
	docID := uuid.New()
	tests := []struct {
		name     string
		params   []string
		body     map[string]string
		actor    bool
		svcErr   error
		wantCode int
		wantErr  string
	}{
		{"no actor", []string{"id", docID.String()}, map[string]string{"image": "x"}, false, nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad document id", []string{"id", "nope"}, map[string]string{"image": "x"}, true, nil, http.StatusBadRequest, "INVALID_ID"},
		{"missing image", []string{"id", docID.String()}, map[string]string{"name": "Maria Silva"}, true, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad signature id", []string{"id", docID.String()}, map[string]string{"image": "x", "signature_id": "nope"}, true, nil, http.StatusBadRequest, "INVALID_ID"},
		{"invalid cpf", []string{"id", docID.String()}, map[string]string{"image": "x"}, true, domain.ErrInvalidCPF, http.StatusBadRequest, "INVALID_CPF"},
		{"finalized", []string{"id", docID.String()}, map[string]string{"image": "x"}, true, domain.ErrDocumentFinal, http.StatusConflict, "DOCUMENT_FINALIZED"},
		{"busy", []string{"id", docID.String()}, map[string]string{"image": "x"}, true, domain.ErrSigningQueueFull, http.StatusServiceUnavailable, "SIGNING_BUSY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSigning := new(mocks.MockSigningService)
			h := handler.NewSigningHandler(mockSigning)
			if tt.svcErr != nil {
				mockSigning.On("SignWithCanvas", mock.Anything, mock.Anything).Return(nil, tt.svcErr)
			}

			c, w := newContext(http.MethodPost, "/", jsonBody(t, tt.body), tt.params...)
			withJSON(c)
			if tt.actor {
				withActor(c)
			}
			h.SignCanvas(c)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, errorCode(t, w))
			mockSigning.AssertExpectations(t)
		})
	}
}

func TestSigningHandler_SignCertificate(t *testing.T) {
	mockSigning := new(mocks.MockSigningService)
	h := handler.NewSigningHandler(mockSigning)
	docID := uuid.New()
	sigID := uuid.New()

	mockSigning.On("SignWithCertificate", mock.Anything, mock.MatchedBy(func(in *service.SignCertificateInput) bool {
		return in.DocumentID == docID &&
			string(in.Bundle) == "p12-bytes" &&
			string(in.Password) == "s3cret" &&
			in.SignatureID != nil && *in.SignatureID == sigID &&
			in.Signer.CPF == "52998224725"
	})).Return(signResult(), nil)

	body, contentType := multipartBody(t, "bundle", "maria.p12", []byte("p12-bytes"), map[string]string{
		"password":     "s3cret",
		"cpf":          "52998224725",
		"signature_id": sigID.String(),
	})
	c, w := newContext(http.MethodPost, "/", body, "id", docID.String())
	c.Request.Header.Set("Content-Type", contentType)
	h.SignCertificate(withActor(c))

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSigning.AssertExpectations(t)
}

func TestSigningHandler_SignCertificate_Errors(t *testing.T) {
	docID := uuid.New()

	t.Run("missing bundle", func(t *testing.T) {
		h := handler.NewSigningHandler(new(mocks.MockSigningService))
		body, contentType := multipartBody(t, "", "", nil, map[string]string{"password": "x"})
		c, w := newContext(http.MethodPost, "/", body, "id", docID.String())
		c.Request.Header.Set("Content-Type", contentType)
		h.SignCertificate(withActor(c))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "MISSING_FILE", errorCode(t, w))
	})

	t.Run("wrong password", func(t *testing.T) {
		mockSigning := new(mocks.MockSigningService)
		h := handler.NewSigningHandler(mockSigning)
		mockSigning.On("SignWithCertificate", mock.Anything, mock.Anything).
			Return(nil, &domain.SigningError{Stage: domain.StageExtract, Err: domain.ErrWrongPassword})

		body, contentType := multipartBody(t, "bundle", "maria.p12", []byte("p12-bytes"), map[string]string{"password": "bad"})
		c, w := newContext(http.MethodPost, "/", body, "id", docID.String())
		c.Request.Header.Set("Content-Type", contentType)
		h.SignCertificate(withActor(c))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "WRONG_PASSWORD", errorCode(t, w))
	})
}

func TestSigningHandler_RequestSignature(t *testing.T) {
	mockSigning := new(mocks.MockSigningService)
	h := handler.NewSigningHandler(mockSigning)
	docID := uuid.New()

	rec := &domain.SignatureRecord{
		ID:            uuid.New(),
		DocumentID:    docID,
		SignerName:    "João Pereira",
		SignerCPF:     "11144477735",
		SignatureType: domain.SignatureTypeElectronic,
		Status:        domain.SignatureStatusPending,
	}
	mockSigning.On("RequestSignature", mock.Anything, mock.MatchedBy(func(in *service.RequestSignatureInput) bool {
		return in.DocumentID == docID && in.SignatureType == domain.SignatureTypeElectronic && in.Actor == testActor
	})).Return(rec, nil)

	c, w := newContext(http.MethodPost, "/", jsonBody(t, map[string]string{
		"name":           "João Pereira",
		"cpf":            "11144477735",
		"signature_type": "electronic",
	}), "id", docID.String())
	h.RequestSignature(withActor(withJSON(c)))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "111.***.***-35")
	assert.NotContains(t, w.Body.String(), "11144477735")
	mockSigning.AssertExpectations(t)
}

func TestSigningHandler_Decline(t *testing.T) {
	mockSigning := new(mocks.MockSigningService)
	h := handler.NewSigningHandler(mockSigning)
	sigID := uuid.New()

	mockSigning.On("Decline", mock.Anything, sigID, "", testActor).Return(nil).Once()
	c, w := newContext(http.MethodPost, "/", http.NoBody, "id", sigID.String())
	h.Decline(withActor(withJSON(c)))
	assert.Equal(t, http.StatusOK, w.Code)

	mockSigning.On("Decline", mock.Anything, sigID, "not my contract", testActor).Return(domain.ErrNotFound).Once()
	c, w = newContext(http.MethodPost, "/", jsonBody(t, map[string]string{"reason": "not my contract"}), "id", sigID.String())
	h.Decline(withActor(withJSON(c)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	mockSigning.AssertExpectations(t)
}
