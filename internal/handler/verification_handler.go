package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"docsign/internal/domain"
	"docsign/internal/service"
)

// VerificationHandler handles the public verification endpoints.
type VerificationHandler struct {
	protocols        service.ProtocolRegistry
	verification     service.VerificationService
	maxArtifactBytes int64
}

// NewVerificationHandler creates a new VerificationHandler.
func NewVerificationHandler(protocols service.ProtocolRegistry, verification service.VerificationService, maxArtifactBytes int64) *VerificationHandler {
	return &VerificationHandler{
		protocols:        protocols,
		verification:     verification,
		maxArtifactBytes: maxArtifactBytes,
	}
}

// VerifyCode handles GET /verify/:code?hash=<sha256>
func (h *VerificationHandler) VerifyCode(c *gin.Context) {
	report, err := h.protocols.VerifyByCode(c.Request.Context(), c.Param("code"), c.Query("hash"))
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, report)
}

// VerifyHash handles GET /verify/hash/:hash
func (h *VerificationHandler) VerifyHash(c *gin.Context) {
	report, err := h.protocols.VerifyByHash(c.Request.Context(), c.Param("hash"))
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, report)
}

// VerifyArtifact handles POST /verify/artifact (multipart: file)
func (h *VerificationHandler) VerifyArtifact(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	if h.maxArtifactBytes > 0 && header.Size > h.maxArtifactBytes {
		HandleError(c, domain.ErrFileTooLarge)
		return
	}
	artifact, err := io.ReadAll(file)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILE", "file could not be read")
		return
	}

	result, err := h.verification.VerifyArtifact(c.Request.Context(), artifact)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, result)
}

// Certificate handles GET /verify/:code/certificate
func (h *VerificationHandler) Certificate(c *gin.Context) {
	doc, err := h.verification.RenderCertificate(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}
