// Package snapshot periodically stores aggregated chart views so trends can be
// inspected after the backend history rolls over.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kamilpajak/wutboard/internal/aggregate"
	"github.com/kamilpajak/wutboard/internal/database"
	"github.com/kamilpajak/wutboard/internal/logging"
	"github.com/kamilpajak/wutboard/internal/metrics"
	"github.com/kamilpajak/wutboard/pkg/models"
)

// Source provides the history views. *wut.Client satisfies it.
type Source interface {
	ListEstimations(ctx context.Context, filter models.EstimationFilter) ([]models.EstimationRecord, error)
	ModelComparison(ctx context.Context) ([]models.ModelComparisonRecord, error)
	ExplainabilityImpact(ctx context.Context) ([]models.ExplainabilityRecord, error)
	Stability(ctx context.Context) ([]models.StabilityRecord, error)
}

// Store persists snapshots. *database.DB satisfies it.
type Store interface {
	CreateSnapshot(ctx context.Context, kind string, payload any, sampleCount int) (*database.Snapshot, error)
	DeleteSnapshotsBefore(ctx context.Context, t time.Time) (int64, error)
}

// Options configures a Recorder.
type Options struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Retention time.Duration // 0 keeps snapshots forever
}

// Recorder fetches, aggregates and stores one snapshot per chart kind.
type Recorder struct {
	source    Source
	store     Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	retention time.Duration
	now       func() time.Time
}

// NewRecorder creates a recorder.
func NewRecorder(source Source, store Store, opts Options) *Recorder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		source:    source,
		store:     store,
		logger:    logger,
		metrics:   opts.Metrics,
		retention: opts.Retention,
		now:       time.Now,
	}
}

type view struct {
	kind  string
	fetch func(ctx context.Context) (payload any, samples int, err error)
}

func (r *Recorder) views() []view {
	return []view{
		{database.KindExplainability, func(ctx context.Context) (any, int, error) {
			records, err := r.source.ExplainabilityImpact(ctx)
			if err != nil {
				return nil, 0, err
			}
			return aggregate.ExplainabilityImpact(records), len(records), nil
		}},
		{database.KindModelComparison, func(ctx context.Context) (any, int, error) {
			records, err := r.source.ModelComparison(ctx)
			if err != nil {
				return nil, 0, err
			}
			return aggregate.CompareModels(records), len(records), nil
		}},
		{database.KindStability, func(ctx context.Context) (any, int, error) {
			records, err := r.source.Stability(ctx)
			if err != nil {
				return nil, 0, err
			}
			return aggregate.StabilityAverages(records), len(records), nil
		}},
		{database.KindProviderAccuracy, func(ctx context.Context) (any, int, error) {
			records, err := r.source.ListEstimations(ctx, models.EstimationFilter{})
			if err != nil {
				return nil, 0, err
			}
			return aggregate.ProviderAccuracy(records), len(records), nil
		}},
	}
}

// RecordOnce stores a snapshot of every view and returns how many were
// stored. A failing view is logged and skipped; the joined failures are
// returned alongside the count.
func (r *Recorder) RecordOnce(ctx context.Context) (int, error) {
	var (
		stored int
		errs   []error
	)

	for _, v := range r.views() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		payload, samples, err := v.fetch(ctx)
		if err == nil {
			_, err = r.store.CreateSnapshot(ctx, v.kind, payload, samples)
		}
		r.metrics.RecordSnapshot(v.kind, err == nil)
		if err != nil {
			r.logger.Warn("snapshot skipped", logging.FieldKind, v.kind, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", v.kind, err))
			continue
		}

		r.logger.Debug("snapshot stored", logging.FieldKind, v.kind, "samples", samples)
		stored++
	}

	if r.retention > 0 && ctx.Err() == nil {
		cutoff := r.now().Add(-r.retention)
		n, err := r.store.DeleteSnapshotsBefore(ctx, cutoff)
		if err != nil {
			r.logger.Warn("snapshot pruning failed", "error", err)
			errs = append(errs, fmt.Errorf("prune: %w", err))
		} else if n > 0 {
			r.logger.Info("pruned old snapshots", "deleted", n, "before", cutoff)
		}
	}

	return stored, errors.Join(errs...)
}

// Run records immediately and then every interval until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("snapshot interval must be positive, got %s", interval)
	}

	r.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Recorder) tick(ctx context.Context) {
	start := r.now()
	stored, err := r.RecordOnce(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		r.logger.Warn("snapshot pass incomplete", "stored", stored, "error", err)
		return
	}
	r.logger.Info("snapshot pass complete", "stored", stored, logging.FieldDuration, time.Since(start).Milliseconds())
}
