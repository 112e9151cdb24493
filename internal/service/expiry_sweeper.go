package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpirySweeper periodically marks protocols past their validity as expired.
// Verification also expires protocols lazily; the sweeper keeps the stored
// status accurate for protocols nobody looks up.
type ExpirySweeper struct {
	protocols ProtocolRegistry
	interval  time.Duration
	log       *zap.Logger
}

// NewExpirySweeper creates a new ExpirySweeper.
func NewExpirySweeper(protocols ProtocolRegistry, interval time.Duration, log *zap.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpirySweeper{
		protocols: protocols,
		interval:  interval,
		log:       log.With(zap.String("worker", "expiry_sweeper")),
	}
}

// Start runs one sweep immediately and then one per interval until ctx is
// canceled.
func (w *ExpirySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("expirySweeper: started", zap.Duration("interval", w.interval))
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("expirySweeper: shutdown complete")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	if _, err := w.protocols.ExpireStale(sweepCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.log.Warn("expirySweeper: ExpireStale failed", zap.Error(err))
	}
}
