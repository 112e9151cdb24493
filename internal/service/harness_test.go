package service_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docsign/internal/certificate"
	"docsign/internal/config"
	"docsign/internal/domain"
	"docsign/internal/geo"
	"docsign/internal/lock"
	"docsign/internal/metrics"
	"docsign/internal/port"
	"docsign/internal/render"
	"docsign/internal/repository/memory"
	"docsign/internal/service"
	"docsign/internal/signing"
	memstorage "docsign/internal/storage/memory"
	"docsign/internal/testutil"
	"docsign/mocks"
)

const baseURL = "https://sign.example.com"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness wires every service over in-memory storage.
type harness struct {
	docs       *memory.DocumentStore
	signatures *memory.SignatureRepo
	protocols  *memory.ProtocolRepo
	auditRepo  *memory.AuditRepo
	flaky      *flakyAudit
	storage    *memstorage.Storage
	notifier   *mocks.MockNotifier
	clock      *fakeClock
	metrics    *metrics.Metrics

	engine       *signing.Engine
	audit        service.AuditLog
	registry     service.ProtocolRegistry
	signing      service.SigningService
	verification service.VerificationService
	documents    service.DocumentService
}

type harnessOptions struct {
	engine   signing.Options
	generate service.CodeGenerator
	workers  int
	queue    int
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	if opts.workers == 0 {
		opts.workers = 2
	}
	if opts.queue == 0 {
		opts.queue = 16
	}

	log := zap.NewNop()
	h := &harness{
		docs:       memory.NewDocumentStore(),
		signatures: memory.NewSignatureRepo(),
		protocols:  memory.NewProtocolRepo(),
		auditRepo:  memory.NewAuditRepo(),
		storage:    memstorage.NewStorage(),
		notifier:   new(mocks.MockNotifier),
		clock:      &fakeClock{now: time.Now().UTC()},
		metrics:    metrics.New(),
	}
	h.flaky = &flakyAudit{AuditRepository: h.auditRepo}
	tx := memory.NewTransactor()
	h.notifier.On("SendSignatureReceipt", mock.Anything, mock.Anything).Return(nil).Maybe()

	h.engine = signing.NewEngine(certificate.NewExtractor(), certificate.NewValidator(certificate.DefaultIssuers, nil), opts.engine)
	h.audit = service.NewAuditLog(h.flaky, geo.Nop{}, h.metrics, log)
	h.registry = service.NewProtocolRegistry(h.protocols, h.docs, h.signatures, h.auditRepo, h.audit, tx, service.ProtocolConfig{
		ValidityYears: 5,
		MaxAttempts:   4,
		BaseURL:       baseURL,
		RecentAudit:   10,
		Generate:      opts.generate,
		Clock:         h.clock.Now,
	}, h.metrics, log)

	pool := service.NewSigningPool(service.SigningPoolConfig{
		Workers:   opts.workers,
		QueueSize: opts.queue,
		Timeout:   30 * time.Second,
	}, h.metrics, log)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})

	h.signing = service.NewSigningService(h.engine, pool, h.docs, h.signatures, h.storage, lock.NewLocal(), h.notifier, tx,
		h.audit, h.registry, service.SigningServiceConfig{BaseURL: baseURL, LockWait: 5 * time.Second}, h.metrics, log)

	renderer, err := render.NewHTMLRenderer(time.UTC)
	require.NoError(t, err)
	h.verification = service.NewVerificationService(h.engine, h.registry, h.protocols, h.docs, h.signatures, h.auditRepo,
		h.audit, renderer, service.VerificationConfig{BaseURL: baseURL, RecentAudit: 10}, h.metrics, log)
	h.documents = service.NewDocumentService(h.docs, h.storage, tx, h.audit, &config.S3Config{MaxFileSizeMB: 1, PresignExpiry: 60}, log)
	return h
}

var errAuditDown = errors.New("audit store unavailable")

// flakyAudit fails every append of one action while armed.
type flakyAudit struct {
	port.AuditRepository

	mu     sync.Mutex
	failOn domain.AuditAction
}

func (f *flakyAudit) failAppends(action domain.AuditAction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn = action
}

func (f *flakyAudit) Append(ctx context.Context, entry *domain.AuditEntry) error {
	f.mu.Lock()
	fail := f.failOn != "" && entry.Action == f.failOn
	f.mu.Unlock()
	if fail {
		return errAuditDown
	}
	return f.AuditRepository.Append(ctx, entry)
}

type uploadedFile struct {
	*bytes.Reader
}

func (uploadedFile) Close() error { return nil }

var owner = service.Actor{ID: "user-1", Type: domain.ActorUser, Name: "Ana Souza", Email: "ana@example.com"}

func (h *harness) upload(t *testing.T, content []byte) *domain.Document {
	t.Helper()
	doc, err := h.documents.Upload(context.Background(), service.DocumentUploadInput{
		Title:  "Contrato de Prestação de Serviços",
		File:   uploadedFile{bytes.NewReader(content)},
		Header: &multipart.FileHeader{Filename: "contrato.pdf", Size: int64(len(content))},
		Actor:  owner,
	})
	require.NoError(t, err)
	return doc
}

func (h *harness) signCanvas(t *testing.T, docID uuid.UUID, signer service.SignerInput) *service.SignResult {
	t.Helper()
	res, err := h.signing.SignWithCanvas(context.Background(), &service.SignCanvasInput{
		DocumentID:  docID,
		ImageBase64: testutil.SignaturePNG(t),
		Signer:      signer,
	})
	require.NoError(t, err)
	return res
}

func maria() service.SignerInput {
	return service.SignerInput{
		Name:  testutil.SignerName,
		CPF:   testutil.SignerCPF,
		Email: testutil.SignerEmail,
		Party: "contratante",
	}
}

func (h *harness) current(t *testing.T, doc *domain.Document) []byte {
	t.Helper()
	d, err := h.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	data, err := h.storage.Download(context.Background(), d.ContentRef)
	require.NoError(t, err)
	return data
}

func (h *harness) actions(t *testing.T, doc *domain.Document) []domain.AuditAction {
	t.Helper()
	chain, err := h.auditRepo.ListChain(context.Background(), doc.ID)
	require.NoError(t, err)
	out := make([]domain.AuditAction, 0, len(chain))
	for i := range chain {
		out = append(out, chain[i].Action)
	}
	return out
}

func bytesReader(s string) *bytes.Reader {
	return bytes.NewReader([]byte(s))
}

func lower(s string) string {
	return strings.ToLower(s)
}
