package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docsign/internal/service"
)

// ProtocolHandler handles protocol administration endpoints.
type ProtocolHandler struct {
	protocols service.ProtocolRegistry
}

// NewProtocolHandler creates a new ProtocolHandler.
func NewProtocolHandler(protocols service.ProtocolRegistry) *ProtocolHandler {
	return &ProtocolHandler{protocols: protocols}
}

// RevokeRequest is the body of a revocation.
type RevokeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// GetByCode handles GET /api/v1/protocols/:code
func (h *ProtocolHandler) GetByCode(c *gin.Context) {
	p, err := h.protocols.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, p)
}

// Revoke handles POST /api/v1/protocols/:code/revoke
func (h *ProtocolHandler) Revoke(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if err := h.protocols.Revoke(c.Request.Context(), c.Param("code"), req.Reason, actor); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"message": "protocol revoked"})
}
