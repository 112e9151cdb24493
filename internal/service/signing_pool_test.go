package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docsign/internal/domain"
	"docsign/internal/metrics"
	"docsign/internal/service"
	"docsign/internal/signing"
)

func startPool(t *testing.T, cfg service.SigningPoolConfig) (*service.SigningPool, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	pool := service.NewSigningPool(cfg, m, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})
	return pool, m
}

// blocker returns a job that signals started and then waits for release.
func blocker(started chan<- struct{}, release <-chan struct{}) func() (*signing.SignedArtifact, error) {
	return func() (*signing.SignedArtifact, error) {
		close(started)
		<-release
		return &signing.SignedArtifact{Hash: "blocked"}, nil
	}
}

func TestSigningPool_Do(t *testing.T) {
	pool, _ := startPool(t, service.SigningPoolConfig{Workers: 2, QueueSize: 4, Timeout: time.Second})

	art, err := pool.Do(context.Background(), func() (*signing.SignedArtifact, error) {
		return &signing.SignedArtifact{Hash: "abc"}, nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", art.Hash)

	boom := errors.New("boom")
	_, err = pool.Do(context.Background(), func() (*signing.SignedArtifact, error) {
		return nil, boom
	}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestSigningPool_QueueFull(t *testing.T) {
	pool, m := startPool(t, service.SigningPoolConfig{Workers: 1, QueueSize: 1, Timeout: 5 * time.Second})

	started := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		_, err := pool.Do(context.Background(), blocker(started, release), nil)
		first <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		_, err := pool.Do(context.Background(), func() (*signing.SignedArtifact, error) {
			return &signing.SignedArtifact{}, nil
		}, nil)
		second <- err
	}()

	require.Eventually(t, func() bool {
		return promtest.ToFloat64(m.SigningQueue) == 1
	}, time.Second, 5*time.Millisecond)

	var cleaned atomic.Bool
	_, err := pool.Do(context.Background(), func() (*signing.SignedArtifact, error) {
		t.Error("rejected job must not run")
		return nil, nil
	}, func() { cleaned.Store(true) })
	assert.ErrorIs(t, err, domain.ErrSigningQueueFull)
	assert.True(t, cleaned.Load())

	close(release)
	assert.NoError(t, <-first)
	assert.NoError(t, <-second)
}

func TestSigningPool_Timeout(t *testing.T) {
	pool, _ := startPool(t, service.SigningPoolConfig{Workers: 1, QueueSize: 1, Timeout: 50 * time.Millisecond})

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	var cleaned atomic.Bool
	_, err := pool.Do(context.Background(), blocker(started, release), func() { cleaned.Store(true) })
	assert.ErrorIs(t, err, domain.ErrSigningTimeout)
	// A running job cleans up after itself.
	assert.False(t, cleaned.Load())
}

func TestSigningPool_AbandonedBeforeStart(t *testing.T) {
	pool, _ := startPool(t, service.SigningPoolConfig{Workers: 1, QueueSize: 2, Timeout: 5 * time.Second})

	started := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		_, err := pool.Do(context.Background(), blocker(started, release), nil)
		first <- err
	}()
	<-started

	var ran, cleaned atomic.Bool
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := pool.Do(ctx, func() (*signing.SignedArtifact, error) {
		ran.Store(true)
		return nil, nil
	}, func() { cleaned.Store(true) })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, cleaned.Load())

	close(release)
	require.NoError(t, <-first)

	// The worker drains the abandoned job without running it.
	_, err = pool.Do(context.Background(), func() (*signing.SignedArtifact, error) {
		return &signing.SignedArtifact{}, nil
	}, nil)
	require.NoError(t, err)
	assert.False(t, ran.Load())
}
