package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/cargotrail/cargotrail/internal/po"
	"github.com/cargotrail/cargotrail/internal/reports"
	"github.com/cargotrail/cargotrail/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPOImport converts a staged upload batch into purchase orders.
	TaskPOImport = "po:import"
	// TaskReportsWarmup pre-populates the report projection caches.
	TaskReportsWarmup = "reports:warmup"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// POImportPayload identifies the staged batch to convert.
type POImportPayload struct {
	BatchID string `json:"batch_id"`
	Actor   string `json:"actor"`
}

// NewPOImportTask constructs an Asynq task for a batch import.
func NewPOImportTask(payload POImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPOImport, data), nil
}

// POImportJob converts staged upload rows in the background. The idempotency
// store guards against the same batch being imported twice when a task is
// retried or enqueued again.
type POImportJob struct {
	POs         *po.Service
	Idempotency *shared.IdempotencyStore
	Logger      *slog.Logger
}

// Handle processes TaskPOImport tasks.
func (j *POImportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.POs == nil {
		return errors.New("po import: handler not configured")
	}
	var payload POImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchID == "" {
		return asynq.SkipRetry
	}

	if j.Idempotency != nil {
		err := j.Idempotency.CheckAndInsert(ctx, payload.BatchID, "po-import")
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			j.logger().Info("po import already processed", slog.String("batch", payload.BatchID))
			return nil
		}
		if err != nil {
			return err
		}
	}

	rctx := shared.RequestContext{Actor: payload.Actor, Role: "admin"}
	result, err := j.POs.ImportBatch(ctx, rctx, payload.BatchID)
	if err != nil {
		if j.Idempotency != nil {
			if delErr := j.Idempotency.Delete(ctx, payload.BatchID); delErr != nil {
				j.logger().Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return fmt.Errorf("import batch %s: %w", payload.BatchID, err)
	}
	j.logger().Info("po import finished",
		slog.String("batch", payload.BatchID),
		slog.Int("pos", result.POsCreated),
		slog.Int("lines", result.LinesCreated),
		slog.Int("skipped", len(result.POsSkipped)))
	return nil
}

func (j *POImportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// NewReportsWarmupTask constructs the cache warmup task.
func NewReportsWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskReportsWarmup, nil)
}

// ReportsWarmupJob rebuilds the most requested report projections so the
// first dashboard hit after an invalidation stays fast.
type ReportsWarmupJob struct {
	Reports *reports.Service
	Logger  *slog.Logger
}

// Handle processes TaskReportsWarmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	rctx := shared.RequestContext{Actor: "system", Role: "admin"}
	warmups := []struct {
		name string
		run  func(context.Context) error
	}{
		{"cost_by_brand", func(ctx context.Context) error {
			_, err := j.Reports.CostByBrand(ctx, rctx, nil)
			return err
		}},
		{"fulfillment", func(ctx context.Context) error {
			_, err := j.Reports.FulfillmentByBrand(ctx, rctx, nil)
			return err
		}},
		{"plan_stage", func(ctx context.Context) error {
			_, err := j.Reports.PlanStage(ctx, rctx, nil)
			return err
		}},
		{"shipment_status", func(ctx context.Context) error {
			_, err := j.Reports.ShipmentStatusCounts(ctx, rctx, nil)
			return err
		}},
		{"upcoming_eta", func(ctx context.Context) error {
			_, err := j.Reports.UpcomingETA(ctx, rctx, nil, 7)
			return err
		}},
	}
	var firstErr error
	for _, w := range warmups {
		if err := w.run(ctx); err != nil {
			j.loggerOrDefault().Warn("reports warmup", slog.String("report", w.name), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (j *ReportsWarmupJob) loggerOrDefault() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// IdempotencyCleanupJob removes idempotency keys older than the retention
// window.
type IdempotencyCleanupJob struct {
	Store     *shared.IdempotencyStore
	Retention time.Duration
	Logger    *slog.Logger
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	retention := j.Retention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if err := j.Store.Cleanup(ctx, retention); err != nil {
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("idempotency cleanup done")
	}
	return nil
}
