package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"docsign/internal/domain"
	"docsign/internal/middleware"
	"docsign/internal/service"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found"
	case errors.Is(err, domain.ErrProtocolNotFound):
		return http.StatusNotFound, "PROTOCOL_NOT_FOUND", "protocol not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"

	case errors.Is(err, domain.ErrInvalidCPF):
		return http.StatusBadRequest, "INVALID_CPF", "invalid CPF"
	case errors.Is(err, domain.ErrInvalidName):
		return http.StatusBadRequest, "INVALID_NAME", "signer name must have at least 5 characters"
	case errors.Is(err, domain.ErrInvalidEmail):
		return http.StatusBadRequest, "INVALID_EMAIL", "invalid signer email"
	case errors.Is(err, domain.ErrInvalidImage):
		return http.StatusBadRequest, "INVALID_IMAGE", "signature image must be a base64 PNG or JPEG"
	case errors.Is(err, domain.ErrMalformedBundle):
		return http.StatusBadRequest, "MALFORMED_CERTIFICATE_BUNDLE", "certificate bundle could not be read"
	case errors.Is(err, domain.ErrWrongPassword):
		return http.StatusBadRequest, "WRONG_PASSWORD", "wrong certificate bundle password"
	case errors.Is(err, domain.ErrUnsupportedFile):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "only PDF documents are accepted"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", "invalid input"

	case errors.Is(err, domain.ErrCertificateExpired):
		return http.StatusUnprocessableEntity, "CERTIFICATE_EXPIRED", "certificate has expired"
	case errors.Is(err, domain.ErrCertificateNotYetValid):
		return http.StatusUnprocessableEntity, "CERTIFICATE_NOT_YET_VALID", "certificate is not yet valid"
	case errors.Is(err, domain.ErrIssuerUnrecognized):
		return http.StatusUnprocessableEntity, "ISSUER_UNRECOGNIZED", "certificate issuer is not recognized"
	case errors.Is(err, domain.ErrMalformedCertificate):
		return http.StatusUnprocessableEntity, "MALFORMED_CERTIFICATE", "certificate could not be parsed"
	case errors.Is(err, domain.ErrCPFMismatch):
		return http.StatusUnprocessableEntity, "CPF_MISMATCH", "CPF does not match the certificate holder"
	case errors.Is(err, domain.ErrCertificateHasNoCPF):
		return http.StatusUnprocessableEntity, "CERTIFICATE_WITHOUT_CPF", "certificate carries no CPF to confirm the signer"

	case errors.Is(err, domain.ErrDocumentFinal):
		return http.StatusConflict, "DOCUMENT_FINALIZED", "document is finalized and cannot be signed"
	case errors.Is(err, domain.ErrNotSignable):
		return http.StatusConflict, "NOT_SIGNED", "document has no signatures to finalize"
	case errors.Is(err, domain.ErrHashMismatch):
		return http.StatusConflict, "HASH_MISMATCH", "stored document does not match its recorded hash"
	case errors.Is(err, domain.ErrNoSignatureFound):
		return http.StatusUnprocessableEntity, "NO_SIGNATURE_FOUND", "no signature found in the artifact"
	case errors.Is(err, domain.ErrProtocolRevoked):
		return http.StatusGone, "PROTOCOL_REVOKED", "protocol has been revoked"
	case errors.Is(err, domain.ErrProtocolExpired):
		return http.StatusGone, "PROTOCOL_EXPIRED", "protocol has expired"
	case errors.Is(err, domain.ErrProtocolAlreadyRevoked):
		return http.StatusConflict, "PROTOCOL_ALREADY_REVOKED", "protocol is already revoked"

	case errors.Is(err, domain.ErrLockNotAcquired):
		return http.StatusConflict, "DOCUMENT_BUSY", "document is being signed by another request"
	case errors.Is(err, domain.ErrSigningQueueFull):
		return http.StatusServiceUnavailable, "SIGNING_BUSY", "signing capacity exhausted; retry later"
	case errors.Is(err, domain.ErrSigningTimeout):
		return http.StatusGatewayTimeout, "SIGNING_TIMEOUT", "signing timed out"
	case errors.Is(err, domain.ErrCodeGenerationExhausted):
		return http.StatusServiceUnavailable, "CODE_GENERATION_EXHAUSTED", "could not generate a protocol code; retry later"
	case errors.Is(err, domain.ErrUploadFailed):
		return http.StatusInternalServerError, "UPLOAD_FAILED", "file upload to storage failed"
	case errors.Is(err, domain.ErrSigningFailed), errors.Is(err, domain.ErrEmbedFailed):
		return http.StatusInternalServerError, "SIGNING_FAILED", "signing failed"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		zap.L().Error("internal error", zap.Any("request_id", requestID), zap.Error(err))
	}
	RespondError(c, status, code, msg)
}

// actorFromContext returns the authenticated caller. The error response is
// already written when ok is false.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor context")
		return service.Actor{}, false
	}
	return actor, true
}

// parseIDParam parses a UUID path parameter, writing a 400 when it is malformed.
func parseIDParam(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts offset and limit from query params with defaults.
func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
