package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"docsign/internal/domain"
	"docsign/internal/metrics"
	"docsign/internal/signing"
)

// SigningPoolConfig holds settings for the signing worker pool.
type SigningPoolConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

const (
	jobQueued int32 = iota
	jobRunning
	jobAbandoned
)

type signingJob struct {
	run     func() (*signing.SignedArtifact, error)
	cleanup func()
	state   atomic.Int32
	done    chan signingResult
}

type signingResult struct {
	artifact *signing.SignedArtifact
	err      error
}

// SigningPool runs CPU-bound signing jobs on a bounded set of goroutines so
// they stay off the request path.
type SigningPool struct {
	cfg     SigningPoolConfig
	jobs    chan *signingJob
	metrics *metrics.Metrics
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewSigningPool creates a new SigningPool. Start must be called before Do.
func NewSigningPool(cfg SigningPoolConfig, m *metrics.Metrics, log *zap.Logger) *SigningPool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SigningPool{
		cfg:     cfg,
		jobs:    make(chan *signingJob, cfg.QueueSize),
		metrics: m,
		log:     log.With(zap.String("component", "signing_pool")),
	}
}

// Start launches the workers. They exit when ctx is canceled; Wait blocks
// until every in-flight job has finished.
func (p *SigningPool) Start(ctx context.Context) {
	p.log.Info("signingPool: started",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("queue", p.cfg.QueueSize),
		zap.Duration("timeout", p.cfg.Timeout))

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-p.jobs:
					p.metrics.SigningQueue.Dec()
					p.execute(job)
				}
			}
		}()
	}
}

// Wait blocks until all workers have exited.
func (p *SigningPool) Wait() {
	p.wg.Wait()
	p.log.Info("signingPool: shutdown complete")
}

func (p *SigningPool) execute(job *signingJob) {
	if !job.state.CompareAndSwap(jobQueued, jobRunning) {
		// The caller gave up and already wiped the job's inputs.
		return
	}
	artifact, err := job.run()
	job.done <- signingResult{artifact: artifact, err: err}
}

// Do queues run and waits for its result. cleanup wipes run's sensitive inputs
// and is called when the job is abandoned before a worker picks it up; once a
// worker starts, run itself must clean up on every return path. A job that
// has started cannot be interrupted: Do stops waiting after the pool timeout
// and the worker discards the result.
func (p *SigningPool) Do(ctx context.Context, run func() (*signing.SignedArtifact, error), cleanup func()) (*signing.SignedArtifact, error) {
	job := &signingJob{run: run, cleanup: cleanup, done: make(chan signingResult, 1)}

	select {
	case p.jobs <- job:
		p.metrics.SigningQueue.Inc()
	default:
		if cleanup != nil {
			cleanup()
		}
		return nil, domain.ErrSigningQueueFull
	}

	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()

	select {
	case res := <-job.done:
		return res.artifact, res.err
	case <-timer.C:
		p.abandon(job)
		return nil, domain.ErrSigningTimeout
	case <-ctx.Done():
		p.abandon(job)
		return nil, ctx.Err()
	}
}

func (p *SigningPool) abandon(job *signingJob) {
	if job.state.CompareAndSwap(jobQueued, jobAbandoned) {
		if job.cleanup != nil {
			job.cleanup()
		}
		return
	}
	p.log.Warn("signingPool: abandoned a running job; its result will be discarded")
}
