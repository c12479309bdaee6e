package render

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"benchbook/internal/audit"
	"benchbook/internal/blob"
	"benchbook/pkg/domain"
)

// Renderer writes formatted artifacts to a blob destination and records an
// audit entry per artifact. Every artifact gets a fresh identifier, so
// regenerating a report never collides with an earlier run.
type Renderer struct {
	store blob.Store
	audit audit.Logger
	log   *zap.Logger
	actor string
	nowFn func() time.Time
}

// Option customises a Renderer.
type Option func(*Renderer)

// WithAudit attaches an audit logger to artifact writes.
func WithAudit(log audit.Logger) Option {
	return func(r *Renderer) { r.audit = log }
}

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Renderer) { r.log = log }
}

// WithActor names the operator recorded in audit entries.
func WithActor(actor string) Option {
	return func(r *Renderer) { r.actor = actor }
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.nowFn = now }
}

// New constructs a renderer writing to the provided destination.
func New(store blob.Store, opts ...Option) *Renderer {
	r := &Renderer{
		store: store,
		log:   zap.NewNop(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExperimentReport writes a full experiment report.
func (r *Renderer) ExperimentReport(ctx context.Context, exp domain.Experiment) (blob.Info, error) {
	text := ExperimentReport(exp, r.nowFn())
	name := fmt.Sprintf("%s_report.txt", exp.ID)
	return r.write(ctx, "experiment_report", exp.ID, name, "text/plain", []byte(text))
}

// ProtocolSummary writes a protocol summary document.
func (r *Renderer) ProtocolSummary(ctx context.Context, p domain.Protocol) (blob.Info, error) {
	text := ProtocolSummary(p, r.nowFn())
	name := fmt.Sprintf("%s_summary.txt", p.ID)
	return r.write(ctx, "protocol_summary", p.ID, name, "text/plain", []byte(text))
}

// Checklist writes a printable checklist.
func (r *Renderer) Checklist(ctx context.Context, cl domain.Checklist) (blob.Info, error) {
	name := fmt.Sprintf("%s_checklist.txt", cl.ProtocolID)
	return r.write(ctx, "protocol_checklist", cl.ProtocolID, name, "text/plain", []byte(ChecklistText(cl)))
}

// InventoryReport writes the grouped inventory report.
func (r *Renderer) InventoryReport(ctx context.Context, samples []domain.Sample) (blob.Info, error) {
	text := InventoryReport(samples, r.nowFn())
	return r.write(ctx, "inventory_report", "", "inventory_report.txt", "text/plain", []byte(text))
}

// WeeklySummary writes the activity summary for the window.
func (r *Renderer) WeeklySummary(ctx context.Context, experiments []domain.Experiment, start, end time.Time) (blob.Info, error) {
	text := WeeklySummary(experiments, start, end, r.nowFn())
	return r.write(ctx, "weekly_summary", "", "weekly_summary.txt", "text/plain", []byte(text))
}

// InventoryCSV writes the sample table export.
func (r *Renderer) InventoryCSV(ctx context.Context, samples []domain.Sample) (blob.Info, error) {
	payload, err := SamplesCSV(samples)
	if err != nil {
		return blob.Info{}, errors.Wrap(err, "render samples csv")
	}
	return r.write(ctx, "inventory_csv", "", "inventory_export.csv", "text/csv", payload)
}

// UsageHistoryCSV writes one row per recorded usage event.
func (r *Renderer) UsageHistoryCSV(ctx context.Context, samples []domain.Sample) (blob.Info, error) {
	payload, err := UsageCSV(samples)
	if err != nil {
		return blob.Info{}, errors.Wrap(err, "render usage csv")
	}
	return r.write(ctx, "usage_csv", "", "usage_history.csv", "text/csv", payload)
}

// ExperimentsCSV writes the experiment summary table export.
func (r *Renderer) ExperimentsCSV(ctx context.Context, experiments []domain.Experiment) (blob.Info, error) {
	payload, err := ExperimentsCSV(experiments)
	if err != nil {
		return blob.Info{}, errors.Wrap(err, "render experiments csv")
	}
	return r.write(ctx, "experiments_csv", "", "experiments_summary.csv", "text/csv", payload)
}

// InventoryChart writes the per-type inventory bar chart.
func (r *Renderer) InventoryChart(ctx context.Context, samples []domain.Sample) (blob.Info, error) {
	payload, err := InventoryChart(samples)
	if err != nil {
		return blob.Info{}, errors.Wrap(err, "render inventory chart")
	}
	return r.write(ctx, "inventory_chart", "", "inventory_by_type.png", "image/png", payload)
}

// InventoryLocationChart writes the per-location inventory bar chart.
func (r *Renderer) InventoryLocationChart(ctx context.Context, samples []domain.Sample) (blob.Info, error) {
	payload, err := InventoryLocationChart(samples)
	if err != nil {
		return blob.Info{}, errors.Wrap(err, "render location chart")
	}
	return r.write(ctx, "location_chart", "", "inventory_by_location.png", "image/png", payload)
}

// ExperimentTimeline writes the experiment timeline bar chart.
func (r *Renderer) ExperimentTimeline(ctx context.Context, experiments []domain.Experiment) (blob.Info, error) {
	payload, err := ExperimentTimelineChart(experiments)
	if err != nil {
		return blob.Info{}, errors.Wrap(err, "render experiment timeline")
	}
	return r.write(ctx, "experiment_timeline", "", "experiment_timeline.png", "image/png", payload)
}

func (r *Renderer) write(ctx context.Context, action, subject, name, contentType string, payload []byte) (blob.Info, error) {
	key := fmt.Sprintf("%s/%s/%s", r.nowFn().Format("2006-01-02"), uuid.NewString(), name)
	info, err := r.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"action": action},
	})
	if err != nil {
		return blob.Info{}, errors.Wrapf(err, "write artifact %s", name)
	}
	r.log.Info("artifact written",
		zap.String("action", action),
		zap.String("key", info.Key),
		zap.Int64("size_bytes", info.Size),
	)
	if r.audit != nil {
		r.audit.Record(ctx, audit.Entry{
			ID:      uuid.NewString(),
			Action:  action,
			Actor:   r.actor,
			Subject: subject,
			Metadata: map[string]any{
				"key":        info.Key,
				"size_bytes": info.Size,
			},
			OccurredAt: r.nowFn(),
		})
	}
	return info, nil
}
