// Package ledger owns the sample inventory: one JSON document per sample,
// carrying a mutable remaining quantity and an append-only usage history.
// The quantity invariant is conservation: remaining = initial - sum of all
// recorded usage, and it never goes negative. A rejected usage leaves the
// stored document untouched.
package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"benchbook/internal/docstore"
	"benchbook/internal/metrics"
	"benchbook/pkg/domain"
)

// Ledger provides inventory operations on top of a document store.
type Ledger struct {
	docs  docstore.Store
	rec   metrics.Recorder
	nowFn func() time.Time
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithRecorder attaches a metrics recorder to ledger operations.
func WithRecorder(rec metrics.Recorder) Option {
	return func(l *Ledger) { l.rec = rec }
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.nowFn = now }
}

// New constructs a ledger backed by the provided documents.
func New(docs docstore.Store, opts ...Option) *Ledger {
	l := &Ledger{
		docs:  docs,
		rec:   metrics.Noop{},
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddInput carries the fields of a new sample.
type AddInput struct {
	SampleID      string
	SampleType    string
	Description   string
	Location      string
	Quantity      float64
	Unit          string
	Concentration string
	Batch         string
	Source        string
	Notes         string
}

// AddSample creates a new inventory record with an empty usage history.
func (l *Ledger) AddSample(ctx context.Context, in AddInput) (domain.Sample, error) {
	var created domain.Sample
	err := metrics.Observed(ctx, l.rec, "sample_add", func() error {
		if strings.TrimSpace(in.SampleID) == "" {
			return domain.ValidationError{Field: "sample_id", Reason: "must not be empty"}
		}
		if in.Quantity < 0 {
			return domain.ValidationError{Field: "quantity", Reason: "must not be negative"}
		}
		if strings.TrimSpace(in.Unit) == "" {
			return domain.ValidationError{Field: "unit", Reason: "must not be empty"}
		}
		now := l.nowFn()
		sample := domain.Sample{
			SampleID:      in.SampleID,
			SampleType:    in.SampleType,
			Description:   in.Description,
			Location:      in.Location,
			Quantity:      in.Quantity,
			Unit:          in.Unit,
			Concentration: in.Concentration,
			Batch:         in.Batch,
			Source:        in.Source,
			Notes:         in.Notes,
			UsageHistory:  []domain.UsageEvent{},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := l.docs.WriteNew(domain.KindSample, sample.SampleID, sample); err != nil {
			if errors.Is(err, docstore.ErrExists) {
				return domain.DuplicateError{Kind: domain.KindSample, ID: sample.SampleID}
			}
			return err
		}
		created = sample
		return nil
	})
	return created, err
}

// UseInput carries one consumption event.
type UseInput struct {
	SampleID     string
	AmountUsed   float64
	Unit         string
	UsedBy       string
	ExperimentID string
	Notes        string
}

// UseSample appends a usage event and decrements the remaining quantity.
// The check and the write operate on a private copy: any rejection returns
// before the document is rewritten, so failed calls observably change nothing.
func (l *Ledger) UseSample(ctx context.Context, in UseInput) (domain.Sample, error) {
	var updated domain.Sample
	err := metrics.Observed(ctx, l.rec, "sample_use", func() error {
		if in.AmountUsed <= 0 {
			return domain.ValidationError{Field: "amount_used", Reason: "must be positive"}
		}
		var sample domain.Sample
		if err := l.docs.Read(domain.KindSample, in.SampleID, &sample); err != nil {
			if errors.Is(err, docstore.ErrNotExists) {
				return domain.NotFoundError{Kind: domain.KindSample, ID: in.SampleID}
			}
			return err
		}
		if in.Unit != sample.Unit {
			return domain.ValidationError{
				Field:  "unit",
				Reason: "unit " + in.Unit + " does not match sample unit " + sample.Unit,
			}
		}
		if in.AmountUsed > sample.Quantity {
			return domain.InsufficientQuantityError{
				SampleID:  sample.SampleID,
				Requested: in.AmountUsed,
				Available: sample.Quantity,
				Unit:      sample.Unit,
			}
		}
		now := l.nowFn()
		next := sample.Clone()
		next.Quantity -= in.AmountUsed
		next.UpdatedAt = now
		next.UsageHistory = append(next.UsageHistory, domain.UsageEvent{
			AmountUsed:   in.AmountUsed,
			Unit:         in.Unit,
			UsedBy:       in.UsedBy,
			ExperimentID: in.ExperimentID,
			Notes:        in.Notes,
			Timestamp:    now,
		})
		if err := l.docs.Write(domain.KindSample, next.SampleID, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	return updated, err
}

// UpdateSample rewrites descriptive fields of a sample. Quantity and usage
// history are not reachable through it; they only move via UseSample.
func (l *Ledger) UpdateSample(ctx context.Context, sampleID string, mutator func(*domain.Sample) error) (domain.Sample, error) {
	var updated domain.Sample
	err := metrics.Observed(ctx, l.rec, "sample_update", func() error {
		var sample domain.Sample
		if err := l.docs.Read(domain.KindSample, sampleID, &sample); err != nil {
			if errors.Is(err, docstore.ErrNotExists) {
				return domain.NotFoundError{Kind: domain.KindSample, ID: sampleID}
			}
			return err
		}
		next := sample.Clone()
		if err := mutator(&next); err != nil {
			return err
		}
		// The ledger-bearing fields are owned by UseSample.
		next.SampleID = sample.SampleID
		next.Quantity = sample.Quantity
		next.UsageHistory = sample.UsageHistory
		next.CreatedAt = sample.CreatedAt
		next.UpdatedAt = l.nowFn()
		if err := l.docs.Write(domain.KindSample, next.SampleID, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	return updated, err
}

// GetSample loads one sample by identifier.
func (l *Ledger) GetSample(ctx context.Context, sampleID string) (domain.Sample, error) {
	var sample domain.Sample
	err := metrics.Observed(ctx, l.rec, "sample_get", func() error {
		if err := l.docs.Read(domain.KindSample, sampleID, &sample); err != nil {
			if errors.Is(err, docstore.ErrNotExists) {
				return domain.NotFoundError{Kind: domain.KindSample, ID: sampleID}
			}
			return err
		}
		return nil
	})
	return sample, err
}

// Filter narrows ListSamples results. Empty fields match everything.
type Filter struct {
	SampleType string
	Location   string
	Status     domain.SampleStatus
}

// ListSamples returns matching sample snapshots in insertion order
// (creation time, then sample_id).
func (l *Ledger) ListSamples(ctx context.Context, filter Filter) ([]domain.Sample, error) {
	var out []domain.Sample
	err := metrics.Observed(ctx, l.rec, "sample_list", func() error {
		samples, err := l.loadAll()
		if err != nil {
			return err
		}
		for _, s := range samples {
			if filter.SampleType != "" && s.SampleType != filter.SampleType {
				continue
			}
			if filter.Location != "" && s.Location != filter.Location {
				continue
			}
			if filter.Status != "" && s.Status() != filter.Status {
				continue
			}
			out = append(out, s)
		}
		return nil
	})
	return out, err
}

// LowStockAlerts returns every sample at or below the threshold, ascending
// by quantity with ties broken by sample_id. The view is derived on each
// call and never cached.
func (l *Ledger) LowStockAlerts(ctx context.Context, threshold float64) ([]domain.Sample, error) {
	var out []domain.Sample
	err := metrics.Observed(ctx, l.rec, "sample_low_stock", func() error {
		samples, err := l.loadAll()
		if err != nil {
			return err
		}
		for _, s := range samples {
			if s.Quantity <= threshold {
				out = append(out, s)
			}
		}
		domain.SortSamplesByStock(out)
		return nil
	})
	return out, err
}

// Snapshot returns every sample in insertion order. Renderers consume this
// for inventory reports and CSV export.
func (l *Ledger) Snapshot(ctx context.Context) ([]domain.Sample, error) {
	return l.ListSamples(ctx, Filter{})
}

func (l *Ledger) loadAll() ([]domain.Sample, error) {
	ids, err := l.docs.List(domain.KindSample)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Sample, 0, len(ids))
	for _, id := range ids {
		var s domain.Sample
		if err := l.docs.Read(domain.KindSample, id, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SampleID < out[j].SampleID
	})
	return out, nil
}
