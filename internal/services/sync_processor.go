package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// SyncProcessorConfig holds configuration for the sync processor.
type SyncProcessorConfig struct {
	// PollInterval is how often pending bills are pushed (default: 10s)
	PollInterval time.Duration

	// RetryInterval is how often errored bills are moved back to pending (default: 1h)
	RetryInterval time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:  10 * time.Second,
		RetryInterval: time.Hour,
	}
}

// PendingSyncer pushes whatever is still pending.
type PendingSyncer interface {
	ProcessPendingBills(ctx context.Context) error
}

// FailedSyncRetrier re-queues bills whose sync failed.
type FailedSyncRetrier interface {
	RetryFailedSyncs(ctx context.Context) (int64, error)
}

// SyncProcessor periodically catches up on bills whose AMQP message was lost
// or whose sync failed.
type SyncProcessor struct {
	pending PendingSyncer
	retrier FailedSyncRetrier
	config  SyncProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(pending PendingSyncer, retrier FailedSyncRetrier, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		pending: pending,
		retrier: retrier,
		config:  config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("sync processor is already running")
	}
	if p.pending == nil {
		p.mu.Unlock()
		return errors.New("sync processor has no pending syncer")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"retry_interval", p.config.RetryInterval)

	return nil
}

// Stop signals the loop and waits for it, or for ctx.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	retryTicker := time.NewTicker(p.config.RetryInterval)
	defer retryTicker.Stop()

	p.processPending(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.processPending(ctx)
		case <-retryTicker.C:
			p.retryFailed(ctx)
		}
	}
}

func (p *SyncProcessor) processPending(ctx context.Context) {
	if err := p.pending.ProcessPendingBills(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to process pending bills", "error", err)
	}
}

func (p *SyncProcessor) retryFailed(ctx context.Context) {
	if p.retrier == nil {
		return
	}
	n, err := p.retrier.RetryFailedSyncs(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to retry failed syncs", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Re-queued failed bill syncs", "count", n)
	}
}
