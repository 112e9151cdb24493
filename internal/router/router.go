package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docsign/internal/domain"
	"docsign/internal/handler"
	"docsign/internal/metrics"
	"docsign/internal/middleware"
	"docsign/internal/service"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Health       *handler.HealthHandler
	Document     *handler.DocumentHandler
	Signing      *handler.SigningHandler
	Verification *handler.VerificationHandler
	Protocol     *handler.ProtocolHandler
	Audit        *handler.AuditHandler
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	authSvc service.AuthService,
	h Handlers,
	m *metrics.Metrics,
	corsOrigins []string,
	log *zap.Logger,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())
	r.Use(middleware.ClientInfo())
	r.Use(middleware.Logger(log))
	r.Use(m.Middleware())
	r.Use(middleware.CORS(corsOrigins))

	// Health checks and metrics
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	// Public verification, attributed to the caller when a token is present
	verify := r.Group("/verify")
	verify.Use(middleware.OptionalAuth(authSvc))
	verify.GET("/:code", h.Verification.VerifyCode)
	verify.GET("/:code/certificate", h.Verification.Certificate)
	verify.GET("/hash/:hash", h.Verification.VerifyHash)
	verify.POST("/artifact", h.Verification.VerifyArtifact)

	// Protected routes - require valid JWT
	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(authSvc))

	docs := v1.Group("/documents")
	docs.POST("", middleware.RequireActorType(domain.ActorUser), h.Document.Upload)
	docs.GET("/:id", h.Document.GetByID)
	docs.GET("/:id/download", h.Document.Download)
	docs.GET("/:id/download-url", h.Document.DownloadURL)
	docs.GET("/:id/report", h.Document.Report)
	docs.POST("/:id/finalize", middleware.RequireActorType(domain.ActorUser), h.Document.Finalize)
	docs.POST("/:id/signatures", middleware.RequireActorType(domain.ActorUser), h.Signing.RequestSignature)
	docs.POST("/:id/sign/certificate", h.Signing.SignCertificate)
	docs.POST("/:id/sign/canvas", h.Signing.SignCanvas)
	docs.GET("/:id/audit", h.Audit.ListByDocument)
	docs.GET("/:id/audit/export", h.Audit.Export)
	docs.GET("/:id/audit/chain", h.Audit.Chain)
	docs.GET("/:id/audit/stats", h.Audit.Stats)

	v1.POST("/signatures/:id/decline", h.Signing.Decline)

	audit := v1.Group("/audit")
	audit.Use(middleware.RequireActorType(domain.ActorUser))
	audit.GET("/actors/:actor_id", h.Audit.ListByActor)
	audit.POST("/:entry_id/corrections", h.Audit.Correct)

	protocols := v1.Group("/protocols")
	protocols.GET("/:code", h.Protocol.GetByCode)
	protocols.POST("/:code/revoke", middleware.RequireActorType(domain.ActorUser), h.Protocol.Revoke)

	return r
}
