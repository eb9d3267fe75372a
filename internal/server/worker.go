package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/gbseg/internal/config"
	"github.com/cwbudde/gbseg/internal/metrics"
	"github.com/cwbudde/gbseg/internal/segregation"
	"github.com/cwbudde/gbseg/internal/thermo"
	"github.com/cwbudde/gbseg/internal/thermo/backend"
)

// OracleFactory opens the equilibrium backend for a job. The returned
// function releases it.
type OracleFactory func(cfg *config.Config) (thermo.Oracle, func() error, error)

// BackendFactory opens backends as described by the job configuration.
func BackendFactory(m *metrics.Metrics) OracleFactory {
	return func(cfg *config.Config) (thermo.Oracle, func() error, error) {
		o, err := backend.Open(cfg, m)
		if err != nil {
			return nil, nil, err
		}
		return o, o.Close, nil
	}
}

// runJob executes a sweep job in the background, broadcasting one progress
// event per temperature step.
func runJob(ctx context.Context, jm *JobManager, open OracleFactory, m *metrics.Metrics, jobID string, observers ...segregation.Observer) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := ctx.Err(); err != nil {
		markJobCancelled(jm, jobID)
		return err
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	cfg := job.Config
	slog.Info("Starting job", "job_id", jobID, "database", cfg.Database, "elements", cfg.Elements)

	problem, err := cfg.Problem()
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	optimizer, err := cfg.Solver.BuildOptimizer()
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	oracle, closeOracle, err := open(&cfg)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to open oracle: %w", err))
		return err
	}
	defer func() {
		if err := closeOracle(); err != nil {
			slog.Warn("Failed to close oracle", "job_id", jobID, "error", err)
		}
	}()

	opts := append(cfg.Solver.Options(),
		segregation.WithObserver(m.Observer()),
		segregation.WithObserver(func(ev segregation.StepEvent) {
			recordStep(jm, jobID, ev)
		}),
	)
	for _, obs := range observers {
		opts = append(opts, segregation.WithObserver(obs))
	}

	start := time.Now()
	done := m.SweepStarted()
	series, err := segregation.Run(ctx, oracle, problem, optimizer, opts...)
	done(err)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			markJobCancelled(jm, jobID)
		} else {
			markJobFailed(jm, jobID, err)
		}
		return err
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Series = series
		j.Steps = series.Len()
		j.Converged = series.Converged()
		j.Evaluations = series.Evaluations()
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"converged", series.Converged(),
		"steps", series.Len(),
		"evaluations", series.Evaluations(),
	)

	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     StateCompleted,
		Index:     -1,
		Total:     series.Len(),
		Converged: series.Converged(),
		Timestamp: time.Now(),
	})
	return nil
}

// recordStep stores the step in the job and broadcasts it.
func recordStep(jm *JobManager, jobID string, ev segregation.StepEvent) {
	jm.UpdateJob(jobID, func(j *Job) {
		j.Series = ev.Series
		j.Steps = ev.Series.Len()
		j.Total = ev.Total
		j.Converged = ev.Series.Converged()
		j.Evaluations = ev.Series.Evaluations()
	})

	event := ProgressEvent{
		JobID:       jobID,
		State:       StateRunning,
		Index:       ev.Index,
		Total:       ev.Total,
		Temperature: ev.Outcome.Temperature,
		Status:      ev.Outcome.Status.String(),
		Converged:   ev.Series.Converged(),
		Timestamp:   time.Now(),
	}
	if !math.IsInf(ev.Outcome.Score, 0) && !math.IsNaN(ev.Outcome.Score) {
		score := ev.Outcome.Score
		event.Score = &score
	}
	if full, ok := ev.Series.Full(ev.Series.Len() - 1); ok {
		event.Composition = full
	}
	jm.broadcaster.Broadcast(event)
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	jm.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateFailed, Index: -1, Timestamp: endTime})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	jm.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateCancelled, Index: -1, Timestamp: endTime})
	slog.Info("Job cancelled", "job_id", jobID)
}
