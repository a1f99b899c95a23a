package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/psi-backoffice/psi/internal/jobs"
	"github.com/psi-backoffice/psi/internal/sales/orders"
)

// DefaultReconcileLimit bounds a pass when the payload carries no limit.
const DefaultReconcileLimit = 200

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Reconciler repairs orders whose derived records are missing.
type Reconciler interface {
	ReconcileDependents(ctx context.Context, limit int) (orders.ReconcileResult, error)
}

// CascadeReconcileJob re-runs the order cascade for incomplete orders.
type CascadeReconcileJob struct {
	Service Reconciler
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCascadeReconcileJob constructs the job handler.
func NewCascadeReconcileJob(service Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *CascadeReconcileJob {
	return &CascadeReconcileJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes one reconciliation pass.
func (j *CascadeReconcileJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("cascade reconcile: dependencies not configured")
	}
	var payload CascadeReconcilePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	_, err := j.Run(ctx, payload.Limit)
	return err
}

// Run performs a pass outside of the queue, for the CLI and tests.
func (j *CascadeReconcileJob) Run(ctx context.Context, limit int) (res orders.ReconcileResult, resultErr error) {
	if j == nil || j.Service == nil {
		return res, errors.New("cascade reconcile: dependencies not configured")
	}
	if limit <= 0 {
		limit = DefaultReconcileLimit
	}
	tracker := j.metrics().Track(TaskCascadeReconcile)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	res, resultErr = j.Service.ReconcileDependents(ctx, limit)
	j.metrics().AddItems(TaskCascadeReconcile, "repaired", res.Repaired)
	j.metrics().AddItems(TaskCascadeReconcile, "failed", res.Failed)
	if resultErr != nil {
		j.log().Error("reconcile dependents",
			slog.Int("scanned", res.Scanned), slog.Int("repaired", res.Repaired),
			slog.Int("failed", res.Failed), slog.Any("error", resultErr))
		return res, resultErr
	}
	if res.Scanned == 0 {
		j.log().Debug("no orders missing dependents")
		return res, nil
	}
	j.log().Info("reconciled order dependents",
		slog.Int("scanned", res.Scanned), slog.Int("repaired", res.Repaired),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

func (j *CascadeReconcileJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CascadeReconcileJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCascadeReconcile))
	}
	return slog.Default().With(slog.String("job", TaskCascadeReconcile))
}
