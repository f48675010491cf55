// Package sync pulls bookings from the reservation provider and reconciles
// them into the local mirror.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/pkg/grouping"
	"github.com/Ramsey-B/laurel/pkg/kafka"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/provider"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// maxErrorSamples caps how many per-booking failures make it into the run's
// error summary
const maxErrorSamples = 5

// BookingSource fetches bookings from the provider
type BookingSource interface {
	SearchBookings(ctx context.Context, window provider.Window) ([]provider.Booking, error)
}

// BookingTransformer maps raw bookings onto tour records
type BookingTransformer interface {
	Transform(booking provider.Booking) (*models.Tour, error)
}

// BookingReconciler applies one transformed booking to the mirror
type BookingReconciler interface {
	Reconcile(ctx context.Context, incoming *models.Tour) (Outcome, error)
}

// Grouper rebuilds group assignments over a date window
type Grouper interface {
	Regroup(ctx context.Context, start, end string) (*grouping.Result, error)
}

// RunStore persists sync run records
type RunStore interface {
	Create(ctx context.Context, log *models.SyncLog) error
	Finish(ctx context.Context, log *models.SyncLog) error
}

// ResultPublisher emits finished run summaries
type ResultPublisher interface {
	PublishSyncResult(ctx context.Context, msg *kafka.SyncResultMessage) error
}

// Config holds the orchestrator configuration
type Config struct {
	LookbackDays       int
	RoutineHorizonDays int
	FullHorizonDays    int
	MaxRunTime         time.Duration
}

// Options control one sync run. Window overrides, when set, replace the
// computed window entirely.
type Options struct {
	Type        models.SyncType
	WindowStart string
	WindowEnd   string
	TriggeredBy string
}

// Orchestrator drives a full fetch, transform, reconcile, regroup cycle and
// records the run in the sync log
type Orchestrator struct {
	source      BookingSource
	transformer BookingTransformer
	reconciler  BookingReconciler
	grouper     Grouper
	runs        RunStore
	producer    ResultPublisher
	cfg         Config
	logger      ectologger.Logger
	now         func() time.Time
}

// NewOrchestrator creates a new sync orchestrator
func NewOrchestrator(source BookingSource, transformer BookingTransformer, reconciler BookingReconciler, grouper Grouper, runs RunStore, producer ResultPublisher, cfg Config, logger ectologger.Logger) *Orchestrator {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}
	if cfg.RoutineHorizonDays <= 0 {
		cfg.RoutineHorizonDays = 120
	}
	if cfg.FullHorizonDays <= 0 {
		cfg.FullHorizonDays = 365
	}
	if cfg.MaxRunTime <= 0 {
		cfg.MaxRunTime = 10 * time.Minute
	}

	return &Orchestrator{
		source:      source,
		transformer: transformer,
		reconciler:  reconciler,
		grouper:     grouper,
		runs:        runs,
		producer:    producer,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Run executes one sync pass. The returned log carries the terminal status
// and counts even when the pass failed.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*models.SyncLog, error) {
	ctx, span := tracing.StartSpan(ctx, "Orchestrator.Run")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.MaxRunTime)
	defer cancel()

	window := o.window(opts)
	started := o.now().UTC()

	run := &models.SyncLog{
		SyncType:    opts.Type,
		Status:      models.SyncStatusStarted,
		WindowStart: window.StartDate(),
		WindowEnd:   window.EndDate(),
		TriggeredBy: opts.TriggeredBy,
		StartedAt:   started,
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	o.logger.WithContext(ctx).WithFields(map[string]any{
		"sync_log_id": run.ID,
		"sync_type":   run.SyncType,
		"window":      fmt.Sprintf("%s..%s", run.WindowStart, run.WindowEnd),
	}).Infof("Starting %s sync", run.SyncType)

	var errs []string

	bookings, err := o.source.SearchBookings(ctx, window)
	if err != nil {
		run.Status = models.SyncStatusFailed
		errs = append(errs, fmt.Sprintf("booking search failed: %v", err))
		o.finish(ctx, run, started, errs)
		return run, err
	}
	run.BookingsFound = len(bookings)

	for _, booking := range bookings {
		if err := ctx.Err(); err != nil {
			run.BookingsFailed++
			errs = appendSample(errs, fmt.Sprintf("run aborted: %v", err))
			break
		}

		tour, err := o.transformer.Transform(booking)
		if err != nil {
			run.BookingsFailed++
			errs = appendSample(errs, fmt.Sprintf("transform: %v", err))
			continue
		}

		outcome, err := o.reconciler.Reconcile(ctx, tour)
		if err != nil {
			run.BookingsFailed++
			errs = appendSample(errs, fmt.Sprintf("reconcile %s: %v", tour.ConfirmationCode, err))
			continue
		}

		metrics.BookingsReconciled.WithLabelValues(string(outcome)).Inc()
		switch outcome {
		case OutcomeCreated:
			run.BookingsCreated++
		case OutcomeUpdated:
			run.BookingsUpdated++
		}
	}

	if run.BookingsCreated+run.BookingsUpdated > 0 {
		if _, err := o.grouper.Regroup(ctx, run.WindowStart, run.WindowEnd); err != nil {
			errs = appendSample(errs, fmt.Sprintf("grouping: %v", err))
			o.logger.WithContext(ctx).WithError(err).Error("grouping pass failed")
		}
	}

	switch {
	case len(errs) == 0:
		run.Status = models.SyncStatusCompleted
	case run.BookingsCreated+run.BookingsUpdated > 0:
		run.Status = models.SyncStatusPartial
	default:
		run.Status = models.SyncStatusFailed
	}

	o.finish(ctx, run, started, errs)
	return run, nil
}

// finish writes the terminal record, metrics and the Kafka summary. All three
// are best effort at this point; the reconcile work is already committed.
func (o *Orchestrator) finish(ctx context.Context, run *models.SyncLog, started time.Time, errs []string) {
	completed := o.now().UTC()
	duration := completed.Sub(started)
	durationMs := duration.Milliseconds()
	run.CompletedAt = &completed
	run.DurationMs = &durationMs

	if len(errs) > 0 {
		summary := strings.Join(errs, "; ")
		if len(summary) > 1000 {
			summary = summary[:1000]
		}
		run.ErrorSummary = &summary
	}

	if err := o.runs.Finish(ctx, run); err != nil {
		o.logger.WithContext(ctx).WithError(err).Error("failed to finalize sync log")
	}

	metrics.SyncRunsTotal.WithLabelValues(string(run.SyncType), string(run.Status)).Inc()
	metrics.SyncRunDuration.WithLabelValues(string(run.SyncType)).Observe(duration.Seconds())

	if o.producer != nil {
		err := o.producer.PublishSyncResult(ctx, &kafka.SyncResultMessage{
			SyncLogID:       run.ID.String(),
			SyncType:        string(run.SyncType),
			Status:          string(run.Status),
			WindowStart:     run.WindowStart,
			WindowEnd:       run.WindowEnd,
			BookingsFound:   run.BookingsFound,
			BookingsCreated: run.BookingsCreated,
			BookingsUpdated: run.BookingsUpdated,
			BookingsFailed:  run.BookingsFailed,
			TriggeredBy:     run.TriggeredBy,
			DurationMs:      durationMs,
		})
		if err != nil {
			o.logger.WithContext(ctx).WithError(err).Warn("failed to publish sync result")
		}
	}

	o.logger.WithContext(ctx).WithFields(map[string]any{
		"sync_log_id": run.ID,
		"status":      run.Status,
		"found":       run.BookingsFound,
		"created":     run.BookingsCreated,
		"updated":     run.BookingsUpdated,
		"failed":      run.BookingsFailed,
		"duration_ms": durationMs,
	}).Infof("Sync run %s", run.Status)
}

// window computes the fetch window. Full syncs reach further ahead; both
// kinds look back the same few days to catch late edits.
func (o *Orchestrator) window(opts Options) provider.Window {
	today := o.now().UTC().Truncate(24 * time.Hour)

	horizon := o.cfg.RoutineHorizonDays
	if opts.Type == models.SyncTypeFull {
		horizon = o.cfg.FullHorizonDays
	}

	window := provider.Window{
		Start: today.AddDate(0, 0, -o.cfg.LookbackDays),
		End:   today.AddDate(0, 0, horizon),
	}

	if opts.WindowStart != "" {
		if t, err := time.Parse("2006-01-02", opts.WindowStart); err == nil {
			window.Start = t
		}
	}
	if opts.WindowEnd != "" {
		if t, err := time.Parse("2006-01-02", opts.WindowEnd); err == nil {
			window.End = t
		}
	}

	return window
}

func appendSample(errs []string, msg string) []string {
	if len(errs) >= maxErrorSamples {
		return errs
	}
	return append(errs, msg)
}
