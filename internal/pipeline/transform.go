package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/cme-data-etl/internal/domain"
	"github.com/couchcryptid/cme-data-etl/internal/observability"
)

// CMETransformer implements Transformer using the domain transform steps and
// reports plausibility anomalies without blocking the batch.
type CMETransformer struct {
	rules   domain.Rules
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTransformer creates a CMETransformer checking records against rules.
func NewTransformer(rules domain.Rules, logger *slog.Logger, metrics *observability.Metrics) *CMETransformer {
	return &CMETransformer{
		rules:   rules,
		logger:  logger,
		metrics: metrics,
	}
}

func (t *CMETransformer) Transform(ctx context.Context, batch []domain.RawCME) (TransformResult, error) {
	if err := ctx.Err(); err != nil {
		return TransformResult{}, err
	}

	out, err := domain.Transform(batch, t.rules)
	if err != nil {
		return TransformResult{}, err
	}

	t.metrics.RecordsDropped.WithLabelValues("incomplete").Add(float64(out.DroppedIncomplete))
	t.metrics.RecordsDropped.WithLabelValues("duplicate").Add(float64(out.DroppedDuplicates))

	for _, a := range out.Anomalies {
		t.logger.Warn("plausibility check failed",
			"rule", a.Rule,
			"datetime_event", a.DatetimeEvent,
			"value", a.Value,
			"threshold", a.Threshold,
		)
		t.metrics.Anomalies.WithLabelValues(a.Rule).Inc()
	}

	return TransformResult{
		Records:           out.Records,
		DroppedIncomplete: out.DroppedIncomplete,
		DroppedDuplicates: out.DroppedDuplicates,
		Anomalies:         out.Anomalies,
	}, nil
}
