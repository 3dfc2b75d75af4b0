// Package background is a one-shot, in-process task executor offered to
// the request handler (spec §4.I), grounded on
// original_source/backend/app/background/runner.py's result envelope.
package background

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/creditbridge/decision-service/domain"
	"github.com/creditbridge/decision-service/features"
	"github.com/creditbridge/decision-service/pkg/clock"
)

// TaskResult mirrors the Python original's structured success/error
// envelope.
type TaskResult struct {
	Status          string
	TaskName        string
	ExecutionTimeMs float64
	StartedAt       time.Time
	CompletedAt     time.Time
	Result          interface{}
	Error           string
	ErrorType       string
}

const recomputeFeaturesTaskName = "recompute_borrower_features"

// Runner executes feature recomputation off the request path. There is
// no cross-process queue and no retries; a failure is recorded in the
// TaskResult and on the events it touched, never propagated.
type Runner struct {
	repo    domain.Repository
	engine  *features.Engine
	clock   clock.Clock
	logger  *zap.Logger
	results []TaskResult
}

func NewRunner(repo domain.Repository, engine *features.Engine, clk clock.Clock, logger *zap.Logger) *Runner {
	return &Runner{repo: repo, engine: engine, clock: clk, logger: logger}
}

// TriggerFeatureComputation runs the recomputation task synchronously in
// the caller's goroutine; callers that want it off the request path
// should invoke it via `go runner.TriggerFeatureComputation(...)`.
func (r *Runner) TriggerFeatureComputation(ctx context.Context, borrowerID string, hasPhone bool) TaskResult {
	started := r.clock.Now()
	start := time.Now()

	result, err := r.run(ctx, borrowerID, hasPhone)

	elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0
	completed := r.clock.Now()

	tr := TaskResult{
		TaskName:        recomputeFeaturesTaskName,
		ExecutionTimeMs: round2(elapsedMs),
		StartedAt:       started,
		CompletedAt:     completed,
	}
	if err != nil {
		tr.Status = "error"
		tr.Error = err.Error()
		tr.ErrorType = "RuntimeError"
		if r.logger != nil {
			r.logger.Error("background feature recomputation failed", zap.String("borrower_id", borrowerID), zap.Error(err))
		}
	} else {
		tr.Status = "success"
		tr.Result = result
	}

	r.results = append(r.results, tr)
	return tr
}

func (r *Runner) run(ctx context.Context, borrowerID string, hasPhone bool) (*domain.FeatureVector, error) {
	events, err := r.repo.GetUnprocessedEvents(ctx, borrowerID)
	if err != nil {
		return nil, err
	}

	res := r.engine.ComputeFeatures(ctx, borrowerID, hasPhone)
	saved, err := r.engine.SaveFeatures(ctx, res)
	if err != nil {
		for _, ev := range events {
			_ = r.repo.MarkEventFailed(ctx, ev.ID, err.Error())
		}
		return nil, err
	}

	for _, ev := range events {
		_ = r.repo.MarkEventProcessed(ctx, ev.ID, "recomputed by background runner")
	}
	return saved, nil
}

// Monitor exposes the per-task observability record spec §4.I asks for.
func (r *Runner) Monitor() []TaskResult {
	return r.results
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
