package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"docsign/internal/service"
	"docsign/mocks"
)

func TestExpirySweeper_Start(t *testing.T) {
	registry := new(mocks.MockProtocolRegistry)
	swept := make(chan struct{}, 8)
	registry.On("ExpireStale", mock.Anything).Return(0, errors.New("db down")).Once()
	registry.On("ExpireStale", mock.Anything).Return(2, nil).Run(func(mock.Arguments) {
		swept <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		service.NewExpirySweeper(registry, 10*time.Millisecond, zap.NewNop()).Start(ctx)
		close(done)
	}()

	// A failed sweep does not stop the ticker.
	for i := 0; i < 2; i++ {
		select {
		case <-swept:
		case <-time.After(2 * time.Second):
			t.Fatal("sweeper did not run")
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
