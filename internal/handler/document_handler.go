package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docsign/internal/service"
)

// DocumentHandler handles document intake, retrieval and reporting endpoints.
type DocumentHandler struct {
	documentService     service.DocumentService
	verificationService service.VerificationService
	signingService      service.SigningService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(
	documentService service.DocumentService,
	verificationService service.VerificationService,
	signingService service.SigningService,
) *DocumentHandler {
	return &DocumentHandler{
		documentService:     documentService,
		verificationService: verificationService,
		signingService:      signingService,
	}
}

// Upload handles POST /api/v1/documents
func (h *DocumentHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	doc, err := h.documentService.Upload(c.Request.Context(), service.DocumentUploadInput{
		Title:  c.PostForm("title"),
		File:   file,
		Header: header,
		Actor:  actor,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, doc)
}

// GetByID handles GET /api/v1/documents/:id
func (h *DocumentHandler) GetByID(c *gin.Context) {
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, doc)
}

// Download handles GET /api/v1/documents/:id/download
func (h *DocumentHandler) Download(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	content, doc, err := h.documentService.Download(c.Request.Context(), docID, actor)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(doc.ID.String()+".pdf"))
	c.Header("X-Content-SHA256", doc.ContentHash)
	c.Data(http.StatusOK, "application/pdf", content)
}

// DownloadURL handles GET /api/v1/documents/:id/download-url
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	url, err := h.documentService.GetDownloadURL(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"url": url})
}

// Report handles GET /api/v1/documents/:id/report
func (h *DocumentHandler) Report(c *gin.Context) {
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	report, err := h.verificationService.BuildReport(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, report)
}

// Finalize handles POST /api/v1/documents/:id/finalize
func (h *DocumentHandler) Finalize(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	doc, err := h.signingService.Finalize(c.Request.Context(), docID, actor)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, doc)
}
