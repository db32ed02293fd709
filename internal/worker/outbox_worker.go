package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/solar-ledger/internal/observability"
	"github.com/ayo6706/solar-ledger/internal/service"
	"go.uber.org/zap"
)

// OutboxWorker relays committed outbox events to the broker.
// Safe for concurrent instances thanks to FOR UPDATE SKIP LOCKED.
type OutboxWorker struct {
	outbox       *service.OutboxService
	pollInterval time.Duration
	batchSize    int32
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func NewOutboxWorker(outbox *service.OutboxService) *OutboxWorker {
	return &OutboxWorker{
		outbox:       outbox,
		pollInterval: 2 * time.Second,
		batchSize:    100,
		stopCh:       make(chan struct{}),
	}
}

func (w *OutboxWorker) WithPollInterval(interval time.Duration) *OutboxWorker {
	if interval > 0 {
		w.pollInterval = interval
	}
	return w
}

func (w *OutboxWorker) WithBatchSize(size int32) *OutboxWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks until Stop is called or ctx is canceled.
func (w *OutboxWorker) Start(ctx context.Context) {
	zap.L().Info("outbox worker starting", zap.Duration("interval", w.pollInterval), zap.Int32("batch_size", w.batchSize))

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("outbox worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("outbox worker stop signal received")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *OutboxWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *OutboxWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// ProcessOnce relays a single batch immediately.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) (int, error) {
	n, err := w.outbox.Relay(ctx, w.batchSize)
	if err != nil {
		observability.IncrementWorkerRun("outbox", "failed")
		return n, err
	}
	observability.IncrementWorkerRun("outbox", "success")
	return n, nil
}

// drain keeps relaying while full batches come back, so a backlog clears
// without waiting a tick per batch.
func (w *OutboxWorker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.ProcessOnce(ctx)
		if err != nil {
			zap.L().Error("outbox relay failed", zap.Error(err))
			return
		}
		if n < int(w.batchSize) {
			return
		}
	}
}

func (w *OutboxWorker) String() string {
	return fmt.Sprintf("OutboxWorker(interval=%v, batch=%d)", w.pollInterval, w.batchSize)
}
