package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docsign/internal/domain"
	"docsign/internal/service"
)

const maxBundleBytes = 1 << 20

// SigningHandler handles signature endpoints.
type SigningHandler struct {
	signingService service.SigningService
}

// NewSigningHandler creates a new SigningHandler.
func NewSigningHandler(signingService service.SigningService) *SigningHandler {
	return &SigningHandler{signingService: signingService}
}

// CanvasRequest is the body of an electronic signature request.
type CanvasRequest struct {
	Image       string `json:"image" binding:"required"`
	Name        string `json:"name"`
	CPF         string `json:"cpf"`
	Email       string `json:"email"`
	Party       string `json:"party"`
	SignatureID string `json:"signature_id"`
}

// SignatureRequest is the body of a signature invitation.
type SignatureRequest struct {
	Name          string `json:"name"`
	CPF           string `json:"cpf"`
	Email         string `json:"email"`
	Party         string `json:"party"`
	SignatureType string `json:"signature_type" binding:"required"`
}

// DeclineRequest is the body of a decline.
type DeclineRequest struct {
	Reason string `json:"reason"`
}

// SignCertificate handles POST /api/v1/documents/:id/sign/certificate
// (multipart: bundle file, password, name, cpf, email, party, signature_id).
func (h *SigningHandler) SignCertificate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}
	signatureID, ok := optionalID(c, c.PostForm("signature_id"))
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("bundle")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "bundle field is required")
		return
	}
	defer func() { _ = file.Close() }()

	bundle, err := io.ReadAll(io.LimitReader(file, maxBundleBytes+1))
	if err != nil || len(bundle) > maxBundleBytes {
		HandleError(c, domain.ErrMalformedBundle)
		return
	}

	result, err := h.signingService.SignWithCertificate(c.Request.Context(), &service.SignCertificateInput{
		DocumentID:  docID,
		SignatureID: signatureID,
		Bundle:      bundle,
		Password:    []byte(c.PostForm("password")),
		Signer: service.SignerInput{
			Name:  c.PostForm("name"),
			CPF:   c.PostForm("cpf"),
			Email: c.PostForm("email"),
			Party: c.PostForm("party"),
		},
		ActorID: actor.ID,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, result)
}

// SignCanvas handles POST /api/v1/documents/:id/sign/canvas
func (h *SigningHandler) SignCanvas(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	var req CanvasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	signatureID, ok := optionalID(c, req.SignatureID)
	if !ok {
		return
	}

	result, err := h.signingService.SignWithCanvas(c.Request.Context(), &service.SignCanvasInput{
		DocumentID:  docID,
		SignatureID: signatureID,
		ImageBase64: req.Image,
		Signer: service.SignerInput{
			Name:  req.Name,
			CPF:   req.CPF,
			Email: req.Email,
			Party: req.Party,
		},
		ActorID: actor.ID,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, result)
}

// RequestSignature handles POST /api/v1/documents/:id/signatures
func (h *SigningHandler) RequestSignature(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	var req SignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	rec, err := h.signingService.RequestSignature(c.Request.Context(), &service.RequestSignatureInput{
		DocumentID:    docID,
		SignatureType: domain.SignatureType(req.SignatureType),
		Signer: service.SignerInput{
			Name:  req.Name,
			CPF:   req.CPF,
			Email: req.Email,
			Party: req.Party,
		},
		Actor: actor,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, domain.NewSignatureView(rec))
}

// Decline handles POST /api/v1/signatures/:id/decline
func (h *SigningHandler) Decline(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	signatureID, ok := parseIDParam(c, "id", "signature")
	if !ok {
		return
	}

	var req DeclineRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if err := h.signingService.Decline(c.Request.Context(), signatureID, req.Reason, actor); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"message": "signature declined"})
}

func optionalID(c *gin.Context, raw string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid signature ID")
		return nil, false
	}
	return &id, true
}
