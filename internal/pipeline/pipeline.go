package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/cme-data-etl/internal/domain"
	"github.com/couchcryptid/cme-data-etl/internal/observability"
)

// Extractor fetches the raw batch for a process date.
type Extractor interface {
	Extract(ctx context.Context, date domain.ProcessDate) (ExtractResult, error)
}

// Transformer turns a raw batch into warehouse-ready records.
type Transformer interface {
	Transform(ctx context.Context, batch []domain.RawCME) (TransformResult, error)
}

// Loader appends records to the warehouse, stamped with the process date.
type Loader interface {
	Load(ctx context.Context, records []domain.CMERecord, date domain.ProcessDate) (LoadResult, error)
}

// Notifier signals the outcome of a run to an external collaborator.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Stage names one step of a run.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
)

// State is where a run ended up.
type State string

const (
	StateStart       State = "start"
	StateExtracted   State = "extracted"
	StateTransformed State = "transformed"
	StateLoaded      State = "loaded"
	StateFailed      State = "failed"
)

// ExtractResult is the output of a successful extract stage.
type ExtractResult struct {
	Window     domain.Window
	URL        string // API key redacted
	StatusCode int
	Records    []domain.RawCME
}

// TransformResult is the output of a successful transform stage.
type TransformResult struct {
	Records           []domain.CMERecord
	DroppedIncomplete int
	DroppedDuplicates int
	Anomalies         []domain.Anomaly
}

// LoadResult is the output of a successful load stage.
type LoadResult struct {
	Table       string
	ProcessDate string
	Rows        int
}

// RunResult collects everything a run produced, up to the stage that failed.
type RunResult struct {
	ProcessDate domain.ProcessDate
	State       State
	DryRun      bool
	Extract     ExtractResult
	Transform   TransformResult
	Load        LoadResult
	Duration    time.Duration
}

// StageError wraps the error that stopped a run with the stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Driver sequences extract, transform and load for one process date and
// reports the outcome through the notifier.
type Driver struct {
	extractor   Extractor
	transformer Transformer
	loader      Loader
	notifier    Notifier
	logger      *slog.Logger
	metrics     *observability.Metrics
	dryRun      bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithDryRun stops runs after the transform stage. Nothing is written and no
// notification is sent.
func WithDryRun(dryRun bool) Option {
	return func(d *Driver) { d.dryRun = dryRun }
}

// NewDriver creates a Driver with the given stages and observability.
func NewDriver(e Extractor, t Transformer, l Loader, n Notifier, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Driver {
	d := &Driver{
		extractor:   e,
		transformer: t,
		loader:      l,
		notifier:    n,
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes one extract-transform-load pass for date. The first failing
// stage ends the run with a *StageError and exactly one error notification;
// a completed load sends exactly one success notification.
func (d *Driver) Run(ctx context.Context, date domain.ProcessDate) (RunResult, error) {
	start := domain.Now()
	res := RunResult{ProcessDate: date, State: StateStart, DryRun: d.dryRun}
	logger := d.logger.With("process_date", date.String())
	logger.Info("run started", "dry_run", d.dryRun)

	extracted, err := runStage(d, StageExtract, func() (ExtractResult, error) {
		return d.extractor.Extract(ctx, date)
	})
	if err != nil {
		return d.fail(ctx, res, start, err)
	}
	res.Extract = extracted
	res.State = StateExtracted
	d.metrics.RecordsExtracted.Add(float64(len(extracted.Records)))
	logger.Info("extracted", "records", len(extracted.Records),
		"window_start", extracted.Window.Start.String(), "window_end", extracted.Window.End.String())

	transformed, err := runStage(d, StageTransform, func() (TransformResult, error) {
		return d.transformer.Transform(ctx, extracted.Records)
	})
	if err != nil {
		return d.fail(ctx, res, start, err)
	}
	res.Transform = transformed
	res.State = StateTransformed
	logger.Info("transformed", "records", len(transformed.Records),
		"dropped_incomplete", transformed.DroppedIncomplete,
		"dropped_duplicates", transformed.DroppedDuplicates,
		"anomalies", len(transformed.Anomalies))

	if d.dryRun {
		res.Duration = domain.Since(start)
		d.metrics.RunsTotal.WithLabelValues("dry_run").Inc()
		logger.Info("dry run complete, skipping load", "records", len(transformed.Records))
		return res, nil
	}

	loaded, err := runStage(d, StageLoad, func() (LoadResult, error) {
		return d.loader.Load(ctx, transformed.Records, date)
	})
	if err != nil {
		return d.fail(ctx, res, start, err)
	}
	res.Load = loaded
	res.State = StateLoaded
	res.Duration = domain.Since(start)
	d.metrics.RecordsLoaded.Add(float64(loaded.Rows))
	d.metrics.RunsTotal.WithLabelValues("success").Inc()
	d.metrics.LastSuccessTimestamp.Set(float64(domain.Now().Unix()))
	logger.Info("run succeeded", "table", loaded.Table, "rows", loaded.Rows, "duration", res.Duration)

	d.notify(ctx, domain.Notification{
		Status:      domain.StatusSuccess,
		ProcessDate: date.String(),
		Rows:        loaded.Rows,
		Anomalies:   len(transformed.Anomalies),
		At:          domain.Now(),
	})
	return res, nil
}

// fail marks the run failed, sends the single error notification and returns
// the stage error.
func (d *Driver) fail(ctx context.Context, res RunResult, start time.Time, err error) (RunResult, error) {
	res.State = StateFailed
	res.Duration = domain.Since(start)
	d.metrics.RunsTotal.WithLabelValues("failure").Inc()

	n := domain.Notification{
		Status:      domain.StatusError,
		ProcessDate: res.ProcessDate.String(),
		Anomalies:   len(res.Transform.Anomalies),
		Error:       err.Error(),
		At:          domain.Now(),
	}
	var se *StageError
	if errors.As(err, &se) {
		n.Stage = string(se.Stage)
	}
	d.logger.Error("run failed", "process_date", n.ProcessDate, "stage", n.Stage, "error", err)

	if !d.dryRun {
		d.notify(ctx, n)
	}
	return res, err
}

// notify delivers n. Delivery problems are logged and never change the run outcome.
func (d *Driver) notify(ctx context.Context, n domain.Notification) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		d.metrics.Notifications.WithLabelValues(string(n.Status), "failed").Inc()
		d.logger.Warn("notification failed", "status", n.Status, "error", err)
		return
	}
	d.metrics.Notifications.WithLabelValues(string(n.Status), "delivered").Inc()
}

func runStage[T any](d *Driver, stage Stage, fn func() (T, error)) (T, error) {
	start := domain.Now()
	out, err := fn()
	d.metrics.StageDuration.WithLabelValues(string(stage)).Observe(domain.Since(start).Seconds())
	if err != nil {
		return out, &StageError{Stage: stage, Err: err}
	}
	return out, nil
}
