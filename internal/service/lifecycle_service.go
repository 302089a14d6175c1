package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nickruden/diplom-server/internal/clock"
	"github.com/nickruden/diplom-server/internal/domain"
	"github.com/nickruden/diplom-server/internal/metrics"
	"github.com/nickruden/diplom-server/internal/repository"
	"github.com/nickruden/diplom-server/pkg/logger"
	"github.com/nickruden/diplom-server/pkg/telemetry"
)

const defaultSweepBatchSize = 100

// evaluateLocked derives the status of a locked event from its locked tiers and stores it
// when it differs. e.Status is updated in place.
func evaluateLocked(ctx context.Context, tx repository.LedgerTx, e *domain.Event, tickets []*domain.Ticket, now time.Time, source string) (*domain.Transition, error) {
	purchases, err := tx.CountPurchasesByEvent(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count purchases: %w", err)
	}

	next := domain.EvaluateStatus(domain.NewLifecycleSnapshot(e, tickets, purchases > 0), now)
	if next == e.Status {
		return nil, nil
	}

	if err := tx.SetEventStatus(ctx, e.ID, next); err != nil {
		return nil, fmt.Errorf("failed to set event status: %w", err)
	}
	tr := &domain.Transition{EventID: e.ID, From: e.Status, To: next}
	e.Status = next
	metrics.RecordTransition(ctx, string(tr.From), string(tr.To), source)
	return tr, nil
}

// LifecycleServiceConfig contains configuration for the lifecycle service
type LifecycleServiceConfig struct {
	BatchSize int
}

type lifecycleService struct {
	events    repository.EventRepository
	store     repository.LedgerStore
	cache     repository.EventCache
	clock     clock.TimeSource
	batchSize int
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(
	events repository.EventRepository,
	store repository.LedgerStore,
	cache repository.EventCache,
	clk clock.TimeSource,
	cfg *LifecycleServiceConfig,
) LifecycleService {
	batch := defaultSweepBatchSize
	if cfg != nil && cfg.BatchSize > 0 {
		batch = cfg.BatchSize
	}
	if cache == nil {
		cache = repository.NoopEventCache{}
	}
	return &lifecycleService{
		events:    events,
		store:     store,
		cache:     cache,
		clock:     clk,
		batchSize: batch,
	}
}

// Sweep pages through candidate events by ID. A failing event is logged and left for the next sweep.
func (s *lifecycleService) Sweep(ctx context.Context) (*SweepResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.lifecycle.sweep")
	defer span.End()

	log := logger.Get()
	start := time.Now()
	result := &SweepResult{}

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ids, err := s.events.ListIDsByStatuses(ctx, domain.SweepStatuses, afterID, s.batchSize)
		if err != nil {
			telemetry.SetSpanError(ctx, err)
			return result, fmt.Errorf("failed to list sweep candidates: %w", err)
		}

		for _, id := range ids {
			result.Evaluated++
			tr, err := s.EvaluateEvent(ctx, id)
			if err != nil {
				result.Failed++
				log.Error(fmt.Sprintf("Lifecycle sweep failed for event %d: %v", id, err))
				continue
			}
			if tr != nil {
				result.Transitions = append(result.Transitions, *tr)
			}
		}

		if len(ids) < s.batchSize {
			break
		}
		afterID = ids[len(ids)-1]
	}

	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("evaluated", result.Evaluated),
		attribute.Int("transitions", len(result.Transitions)),
		attribute.Int("failed", result.Failed),
	)
	metrics.RecordSweep(ctx, result.Duration.Seconds(), result.Failed)
	return result, nil
}

func (s *lifecycleService) EvaluateEvent(ctx context.Context, eventID int64) (*domain.Transition, error) {
	now := s.clock.Now()

	var tr *domain.Transition
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		tr = nil
		e, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if e == nil {
			// deleted since it was listed
			return nil
		}
		tickets, err := tx.LockTicketsByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		tr, err = evaluateLocked(ctx, tx, e, tickets, now, "sweep")
		return err
	})
	if err != nil {
		return nil, err
	}

	if tr != nil {
		s.cache.Invalidate(ctx, eventID)
		logger.Get().Info(fmt.Sprintf("Event %d status changed: %s -> %s", tr.EventID, tr.From, tr.To))
	}
	return tr, nil
}
