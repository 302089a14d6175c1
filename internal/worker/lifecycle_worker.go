package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nickruden/diplom-server/internal/service"
	"github.com/nickruden/diplom-server/pkg/logger"
)

// LifecycleWorkerConfig contains configuration for the lifecycle sweep worker
type LifecycleWorkerConfig struct {
	// Interval is the time between two sweeps
	Interval time.Duration
	// RunOnStart sweeps once before the first tick
	RunOnStart bool
}

// DefaultLifecycleWorkerConfig returns default configuration
func DefaultLifecycleWorkerConfig() *LifecycleWorkerConfig {
	return &LifecycleWorkerConfig{
		Interval:   time.Minute,
		RunOnStart: true,
	}
}

// LifecycleWorker periodically re-derives event statuses. Sweeps never overlap.
type LifecycleWorker struct {
	lifecycle service.LifecycleService
	config    *LifecycleWorkerConfig
	log       *logger.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
	sweepMu   sync.Mutex
}

// NewLifecycleWorker creates a new lifecycle worker
func NewLifecycleWorker(lifecycle service.LifecycleService, config *LifecycleWorkerConfig) *LifecycleWorker {
	if config == nil {
		config = DefaultLifecycleWorkerConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultLifecycleWorkerConfig().Interval
	}

	return &LifecycleWorker{
		lifecycle: lifecycle,
		config:    config,
		log:       logger.Get(),
		stopCh:    make(chan struct{}),
	}
}

// Start starts the sweep loop
func (w *LifecycleWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("lifecycle worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info(fmt.Sprintf("Starting lifecycle worker (interval %s)", w.config.Interval))

	w.wg.Add(1)
	go w.loop(ctx)

	return nil
}

// Stop stops the worker and waits for an in-flight sweep to finish
func (w *LifecycleWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping lifecycle worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Lifecycle worker stopped")
}

func (w *LifecycleWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	// the sweep observes Stop as a cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if w.config.RunOnStart {
		w.RunOnce(ctx)
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. It returns false without sweeping when another
// sweep is still in progress.
func (w *LifecycleWorker) RunOnce(ctx context.Context) bool {
	if !w.sweepMu.TryLock() {
		w.log.Warn("Lifecycle sweep skipped: previous sweep still running")
		return false
	}
	defer w.sweepMu.Unlock()

	result, err := w.lifecycle.Sweep(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		w.log.Error(fmt.Sprintf("Lifecycle sweep failed: %v", err))
		return true
	}

	if len(result.Transitions) > 0 || result.Failed > 0 {
		w.log.Info(fmt.Sprintf("Lifecycle sweep: %d evaluated, %d transitioned, %d failed in %s",
			result.Evaluated, len(result.Transitions), result.Failed, result.Duration))
	}
	return true
}

// IsRunning reports whether the loop is active
func (w *LifecycleWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
