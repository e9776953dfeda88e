// Package reconcile orchestrates a scan cycle: it runs the scanner to
// completion, merges the results into the store inside one atomic unit of
// work, and returns the fresh project list plus collected warnings. At most
// one reconciliation runs at a time; a second request is rejected, never
// queued.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/KaldarAralay/ProjectManager/internal/project"
	"github.com/KaldarAralay/ProjectManager/internal/scanner"
	"github.com/KaldarAralay/ProjectManager/internal/store"
)

const instrumentationName = "github.com/KaldarAralay/ProjectManager/internal/reconcile"

// ErrScanInProgress is returned when a reconciliation is requested while
// another one is still running.
var ErrScanInProgress = errors.New("scan in progress")

// ErrNoRoots is returned when no root directories are configured.
var ErrNoRoots = errors.New("no scan roots configured")

// Scanner is the slice of the scanner the engine needs.
type Scanner interface {
	Scan(ctx context.Context, roots []string) (*scanner.Result, error)
}

// Store is the slice of the project store the engine needs.
type Store interface {
	ApplyScan(ctx context.Context, descs []project.Descriptor) error
	Query(ctx context.Context, filter store.Filter) ([]project.Project, error)
}

// Result is what one reconciliation hands back to the caller.
type Result struct {
	// ScanID identifies this reconciliation cycle in logs and responses.
	ScanID string `json:"scan_id"`

	// Projects is the full reconciled record set, post-commit.
	Projects []project.Project `json:"projects"`

	// Warnings are the non-fatal failures collected during the scan.
	Warnings []project.Warning `json:"warnings"`

	// Discovered is the number of descriptors the scan produced.
	Discovered int `json:"discovered"`

	// Duration is the wall time of the whole cycle.
	Duration time.Duration `json:"duration"`
}

// Engine is the single entry point the presentation layer calls on refresh.
type Engine struct {
	scanner Scanner
	store   Store
	logger  *zap.Logger

	inFlight atomic.Bool

	// Telemetry
	meter            metric.Meter
	reconcileCounter metric.Int64Counter
	discoveredGauge  metric.Int64Counter
	durationHist     metric.Float64Histogram
}

// New creates an Engine. A nil logger is replaced with a no-op logger.
func New(sc Scanner, st Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		scanner: sc,
		store:   st,
		logger:  logger,
		meter:   otel.Meter(instrumentationName),
	}
	e.initMetrics()
	return e
}

// initMetrics initializes OpenTelemetry instruments.
func (e *Engine) initMetrics() {
	var err error

	e.reconcileCounter, err = e.meter.Int64Counter(
		"projman.reconcile.cycles_total",
		metric.WithDescription("Total number of reconciliation cycles"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		e.logger.Warn("failed to create reconcile counter", zap.Error(err))
	}

	e.discoveredGauge, err = e.meter.Int64Counter(
		"projman.reconcile.projects_discovered_total",
		metric.WithDescription("Total number of project descriptors produced by scans"),
		metric.WithUnit("{project}"),
	)
	if err != nil {
		e.logger.Warn("failed to create discovered counter", zap.Error(err))
	}

	e.durationHist, err = e.meter.Float64Histogram(
		"projman.reconcile.duration_seconds",
		metric.WithDescription("Wall time of reconciliation cycles"),
		metric.WithUnit("s"),
	)
	if err != nil {
		e.logger.Warn("failed to create duration histogram", zap.Error(err))
	}
}

// Reconcile performs one full scan-and-merge cycle over the given roots and
// returns the committed project list with scan warnings.
//
// Only one reconciliation may be in flight; concurrent calls fail fast with
// ErrScanInProgress. Cancellation is honored between directory visits and
// always aborts before the commit step, so a cancelled cycle leaves no
// partial store writes.
func (e *Engine) Reconcile(ctx context.Context, roots []string) (*Result, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer e.inFlight.Store(false)

	scanID := uuid.New().String()
	started := time.Now()
	logger := e.logger.With(zap.String("scan_id", scanID))
	logger.Info("reconciliation started", zap.Strings("roots", roots))

	scanRes, err := e.scanner.Scan(ctx, roots)
	if err != nil {
		e.record(ctx, started, 0, "scan_failed")
		return nil, fmt.Errorf("scanning roots: %w", err)
	}

	// Cancellation aborts before the commit step.
	if err := ctx.Err(); err != nil {
		e.record(ctx, started, 0, "cancelled")
		return nil, err
	}

	if err := e.store.ApplyScan(ctx, scanRes.Descriptors); err != nil {
		e.record(ctx, started, 0, "commit_failed")
		return nil, fmt.Errorf("committing scan results: %w", err)
	}

	projects, err := e.store.Query(ctx, store.Filter{})
	if err != nil {
		e.record(ctx, started, 0, "query_failed")
		return nil, fmt.Errorf("loading reconciled projects: %w", err)
	}

	duration := time.Since(started)
	e.record(ctx, started, len(scanRes.Descriptors), "ok")

	logger.Info("reconciliation finished",
		zap.Int("discovered", len(scanRes.Descriptors)),
		zap.Int("stored", len(projects)),
		zap.Int("warnings", len(scanRes.Warnings)),
		zap.Duration("duration", duration),
	)

	return &Result{
		ScanID:     scanID,
		Projects:   projects,
		Warnings:   scanRes.Warnings,
		Discovered: len(scanRes.Descriptors),
		Duration:   duration,
	}, nil
}

// InFlight reports whether a reconciliation is currently running.
func (e *Engine) InFlight() bool {
	return e.inFlight.Load()
}

// record emits telemetry for one cycle outcome.
func (e *Engine) record(ctx context.Context, started time.Time, discovered int, outcome string) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if e.reconcileCounter != nil {
		e.reconcileCounter.Add(ctx, 1, attrs)
	}
	if e.discoveredGauge != nil && discovered > 0 {
		e.discoveredGauge.Add(ctx, int64(discovered))
	}
	if e.durationHist != nil {
		e.durationHist.Record(ctx, time.Since(started).Seconds(), attrs)
	}
}
