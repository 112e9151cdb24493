package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docsign/internal/certificate"
	"docsign/internal/config"
	"docsign/internal/email/noop"
	"docsign/internal/email/ses"
	"docsign/internal/geo"
	"docsign/internal/handler"
	"docsign/internal/lock"
	"docsign/internal/logger"
	"docsign/internal/metrics"
	"docsign/internal/port"
	"docsign/internal/render"
	"docsign/internal/repository/memory"
	"docsign/internal/repository/postgres"
	"docsign/internal/router"
	"docsign/internal/service"
	"docsign/internal/signing"
	memstorage "docsign/internal/storage/memory"
	s3storage "docsign/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

type repositories struct {
	docs       port.DocumentStore
	signatures port.SignatureRepository
	protocols  port.ProtocolRepository
	audit      port.AuditRepository
	tx         port.Transactor
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zlog, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zlog.Sync() }()
	zap.ReplaceGlobals(zlog)

	checks := map[string]handler.Checker{}

	// Initialize repositories
	var repos repositories
	switch cfg.DB.Driver {
	case "memory":
		zlog.Warn("using in-memory repositories; state is lost on restart")
		repos = repositories{
			docs:       memory.NewDocumentStore(),
			signatures: memory.NewSignatureRepo(),
			protocols:  memory.NewProtocolRepo(),
			audit:      memory.NewAuditRepo(),
			tx:         memory.NewTransactor(),
		}
	default:
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		checks["database"] = func(ctx context.Context) error { return postgres.Ping(ctx, db) }
		repos = postgresRepositories(db)
	}

	// Initialize storage
	var storage port.ObjectStorage
	if cfg.S3.Bucket != "" {
		storage, err = s3storage.NewS3Client(&cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
	} else {
		zlog.Warn("s3.bucket is empty; documents are kept in memory")
		storage = memstorage.NewStorage()
	}

	// Notifications
	var notifier port.Notifier
	switch cfg.Email.Provider {
	case "ses":
		notifier, err = ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName, zlog)
		if err != nil {
			return fmt.Errorf("failed to initialize SES sender: %w", err)
		}
	default:
		notifier = noop.NewNoopSender(zlog)
	}

	// Per-document signing lock
	var locker port.DocumentLocker
	switch cfg.Lock.Provider {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Lock.Addr,
			Password: cfg.Lock.Password,
			DB:       cfg.Lock.DB,
		})
		defer func() { _ = rdb.Close() }()
		redisLock := lock.NewRedis(rdb, cfg.Lock.TTL, zlog)
		checks["redis"] = redisLock.Ping
		locker = redisLock
	default:
		locker = lock.NewLocal()
	}

	// Geo enrichment
	var locator port.GeoLocator = geo.Nop{}
	if cfg.Geo.MMDBPath != "" {
		mm, err := geo.Open(cfg.Geo.MMDBPath)
		if err != nil {
			return err
		}
		defer func() { _ = mm.Close() }()
		locator = mm
	}

	// Signing engine
	issuers, err := certificate.LoadIssuers(cfg.Signing.IssuersFile)
	if err != nil {
		return err
	}
	roots, err := certificate.LoadTrustRoots(cfg.Signing.TrustRootsFile)
	if err != nil {
		return err
	}
	if cfg.Signing.DegradedMode {
		zlog.Warn("signing degraded mode is on; digital signatures use the raw-append scheme")
	}
	engine := signing.NewEngine(certificate.NewExtractor(), certificate.NewValidator(issuers, roots), signing.Options{
		DegradedMode:            cfg.Signing.DegradedMode,
		RequireRecognizedIssuer: cfg.Signing.RequireRecognizedIssuer,
		CPFPepper:               []byte(cfg.Signing.CPFPepper),
	})

	renderer, err := render.NewHTMLRenderer(saoPaulo(zlog))
	if err != nil {
		return err
	}

	m := metrics.New()

	// Initialize services
	authSvc := service.NewAuthService(cfg.JWT)
	auditSvc := service.NewAuditLog(repos.audit, locator, m, zlog)
	protocolSvc := service.NewProtocolRegistry(repos.protocols, repos.docs, repos.signatures, repos.audit, auditSvc, repos.tx, service.ProtocolConfig{
		ValidityYears: cfg.Signing.ProtocolValidityYears,
		MaxAttempts:   cfg.Signing.MaxCodeAttempts,
		BaseURL:       cfg.Server.PublicBaseURL,
		RecentAudit:   cfg.Signing.RecentAuditEntries,
	}, m, zlog)
	pool := service.NewSigningPool(service.SigningPoolConfig{
		Workers:   cfg.Signing.Workers,
		QueueSize: cfg.Signing.QueueSize,
		Timeout:   cfg.Signing.Timeout,
	}, m, zlog)
	signingSvc := service.NewSigningService(engine, pool, repos.docs, repos.signatures, storage, locker, notifier, repos.tx,
		auditSvc, protocolSvc, service.SigningServiceConfig{
			BaseURL:  cfg.Server.PublicBaseURL,
			LockWait: cfg.Lock.Wait,
		}, m, zlog)
	verificationSvc := service.NewVerificationService(engine, protocolSvc, repos.protocols, repos.docs, repos.signatures,
		repos.audit, auditSvc, renderer, service.VerificationConfig{
			BaseURL:     cfg.Server.PublicBaseURL,
			RecentAudit: cfg.Signing.RecentAuditEntries,
		}, m, zlog)
	documentSvc := service.NewDocumentService(repos.docs, storage, repos.tx, auditSvc, &cfg.S3, zlog)

	// Initialize handlers
	handlers := router.Handlers{
		Health:       handler.NewHealthHandler(checks),
		Document:     handler.NewDocumentHandler(documentSvc, verificationSvc, signingSvc),
		Signing:      handler.NewSigningHandler(signingSvc),
		Verification: handler.NewVerificationHandler(protocolSvc, verificationSvc, cfg.S3.MaxFileSizeMB*1024*1024),
		Protocol:     handler.NewProtocolHandler(protocolSvc),
		Audit:        handler.NewAuditHandler(auditSvc),
	}
	r := router.Setup(authSvc, handlers, m, cfg.Server.CORSOrigins, zlog)

	// Background workers
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	pool.Start(workerCtx)
	sweeper := service.NewExpirySweeper(protocolSvc, cfg.Server.SweepInterval, zlog)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Start(workerCtx)
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server starting", zap.String("addr", cfg.Server.Port), zap.String("environment", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Signing.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server shutdown", zap.Error(err))
	}

	// In-flight requests have finished; let queued signing jobs drain.
	cancelWorkers()
	pool.Wait()
	<-sweepDone
	zlog.Info("shutdown complete")
	return nil
}

func postgresRepositories(db *sqlx.DB) repositories {
	return repositories{
		docs:       postgres.NewDocumentStore(db),
		signatures: postgres.NewSignatureRepo(db),
		protocols:  postgres.NewProtocolRepo(db),
		audit:      postgres.NewAuditRepo(db),
		tx:         postgres.NewTransactor(db),
	}
}

func saoPaulo(zlog *zap.Logger) *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		zlog.Warn("time zone data unavailable; certificates show UTC", zap.Error(err))
		return time.UTC
	}
	return loc
}
