package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docsign/internal/csvexport"
	"docsign/internal/domain"
	"docsign/internal/port"
	"docsign/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AuditHandler handles audit trail endpoints.
type AuditHandler struct {
	audit service.AuditLog
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(audit service.AuditLog) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// CorrectionRequest is the body of an audit correction.
type CorrectionRequest struct {
	Reason string                 `json:"reason" binding:"required"`
	Data   map[string]interface{} `json:"data"`
}

// ListByDocument handles GET /api/v1/documents/:id/audit
// Query: action (comma separated), actor_type, from, to (unix seconds), offset, limit.
func (h *AuditHandler) ListByDocument(c *gin.Context) {
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}
	filter, ok := parseAuditFilter(c)
	if !ok {
		return
	}
	filter.DocumentID = &docID
	h.query(c, filter)
}

// ListByActor handles GET /api/v1/audit/actors/:actor_id
func (h *AuditHandler) ListByActor(c *gin.Context) {
	filter, ok := parseAuditFilter(c)
	if !ok {
		return
	}
	filter.ActorID = c.Param("actor_id")
	h.query(c, filter)
}

func (h *AuditHandler) query(c *gin.Context, filter port.AuditFilter) {
	page, err := h.audit.Query(c.Request.Context(), filter)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, page.Entries, PagMeta{Total: page.Total, Offset: page.Offset, Limit: page.Limit})
}

// Export handles GET /api/v1/documents/:id/audit/export?format=xlsx|csv
func (h *AuditHandler) Export(c *gin.Context) {
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(service.ExportXLSX))))
	body, err := h.audit.Export(c.Request.Context(), docID, format)
	if err != nil {
		HandleError(c, err)
		return
	}

	contentType := xlsxContentType
	if format == service.ExportCSV {
		contentType = "text/csv; charset=utf-8"
	}
	filename := csvexport.BuildFilename(docID.String(), string(format), time.Now())
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	c.Data(http.StatusOK, contentType, body)
}

// Chain handles GET /api/v1/documents/:id/audit/chain
func (h *AuditHandler) Chain(c *gin.Context) {
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	report, err := h.audit.VerifyChain(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, report)
}

// Stats handles GET /api/v1/documents/:id/audit/stats
func (h *AuditHandler) Stats(c *gin.Context) {
	docID, ok := parseIDParam(c, "id", "document")
	if !ok {
		return
	}

	stats, err := h.audit.Stats(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, stats)
}

// Correct handles POST /api/v1/audit/:entry_id/corrections
func (h *AuditHandler) Correct(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	entryID, ok := parseIDParam(c, "entry_id", "audit entry")
	if !ok {
		return
	}

	var req CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	data := req.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	data["reason"] = req.Reason

	id, err := h.audit.Correct(c.Request.Context(), entryID, actor, service.AuditDetail{Data: data})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, gin.H{"id": id})
}

func parseAuditFilter(c *gin.Context) (port.AuditFilter, bool) {
	offset, limit := parsePagination(c)
	filter := port.AuditFilter{
		ActorType: domain.ActorType(c.Query("actor_type")),
		Offset:    offset,
		Limit:     limit,
	}
	if raw := c.Query("action"); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			filter.Actions = append(filter.Actions, domain.AuditAction(strings.TrimSpace(a)))
		}
	}
	for name, dst := range map[string]*int64{"from": &filter.FromUnix, "to": &filter.ToUnix} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a unix timestamp")
			return port.AuditFilter{}, false
		}
		*dst = v
	}
	return filter, true
}
