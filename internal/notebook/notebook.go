// Package notebook manages experiment records: creation, running
// observations, results with optional data-file attachments, and completion.
// Experiments only ever accumulate; nothing here removes an observation or
// an attachment once written.
package notebook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"benchbook/internal/docstore"
	"benchbook/internal/metrics"
	"benchbook/pkg/domain"
)

const idTimestampLayout = "20060102150405"

// Notebook provides experiment operations on top of a document store.
type Notebook struct {
	docs  docstore.Store
	rec   metrics.Recorder
	nowFn func() time.Time
}

// Option customises a Notebook.
type Option func(*Notebook)

// WithRecorder attaches a metrics recorder to notebook operations.
func WithRecorder(rec metrics.Recorder) Option {
	return func(n *Notebook) { n.rec = rec }
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(n *Notebook) { n.nowFn = now }
}

// New constructs a notebook backed by the provided documents.
func New(docs docstore.Store, opts ...Option) *Notebook {
	n := &Notebook{
		docs:  docs,
		rec:   metrics.Noop{},
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// CreateInput carries the fields of a new experiment.
type CreateInput struct {
	Title      string
	ProtocolID string
	Objective  string
	Hypothesis string
	Materials  []string
	Tags       []string
}

// Create starts a new experiment in the In Progress state. The identifier
// is EXP_ plus the creation timestamp; two creations in the same second
// collide and the second one fails as a duplicate.
func (n *Notebook) Create(ctx context.Context, in CreateInput) (domain.Experiment, error) {
	var created domain.Experiment
	err := metrics.Observed(ctx, n.rec, "experiment_create", func() error {
		if strings.TrimSpace(in.Title) == "" {
			return domain.ValidationError{Field: "title", Reason: "must not be empty"}
		}
		now := n.nowFn()
		exp := domain.Experiment{
			ID:           fmt.Sprintf("EXP_%s", now.Format(idTimestampLayout)),
			Title:        in.Title,
			ProtocolID:   in.ProtocolID,
			Objective:    in.Objective,
			Hypothesis:   in.Hypothesis,
			Materials:    append([]string(nil), in.Materials...),
			Tags:         append([]string(nil), in.Tags...),
			Observations: []domain.Observation{},
			Results:      map[string]any{},
			Attachments:  []domain.Attachment{},
			CreatedAt:    now,
		}
		if err := n.docs.WriteNew(domain.KindExperiment, exp.ID, exp); err != nil {
			if errors.Is(err, docstore.ErrExists) {
				return domain.DuplicateError{Kind: domain.KindExperiment, ID: exp.ID}
			}
			return err
		}
		created = exp
		return nil
	})
	return created, err
}

// AddObservation appends a timestamped note to an experiment.
func (n *Notebook) AddObservation(ctx context.Context, id, observation string) (domain.Experiment, error) {
	return n.mutate(ctx, "experiment_observe", id, func(exp *domain.Experiment) error {
		if strings.TrimSpace(observation) == "" {
			return domain.ValidationError{Field: "observation", Reason: "must not be empty"}
		}
		exp.Observations = append(exp.Observations, domain.Observation{
			Timestamp:   n.nowFn(),
			Observation: observation,
		})
		return nil
	})
}

// AddResults merges result values into the experiment and optionally
// records a data-file attachment. Existing keys are overwritten; other
// keys are left in place.
func (n *Notebook) AddResults(ctx context.Context, id string, results map[string]any, dataFile string) (domain.Experiment, error) {
	return n.mutate(ctx, "experiment_results", id, func(exp *domain.Experiment) error {
		for k, v := range results {
			exp.Results[k] = v
		}
		if dataFile != "" {
			exp.Attachments = append(exp.Attachments, domain.Attachment{
				Type:    "data_file",
				File:    dataFile,
				AddedAt: n.nowFn(),
			})
		}
		return nil
	})
}

// Complete marks an experiment finished and records its conclusions.
// Completing twice refreshes the completion time and conclusions rather
// than failing.
func (n *Notebook) Complete(ctx context.Context, id, conclusions string) (domain.Experiment, error) {
	return n.mutate(ctx, "experiment_complete", id, func(exp *domain.Experiment) error {
		done := n.nowFn()
		exp.CompletedAt = &done
		exp.Conclusions = conclusions
		return nil
	})
}

// Load fetches one experiment by identifier.
func (n *Notebook) Load(ctx context.Context, id string) (domain.Experiment, error) {
	var exp domain.Experiment
	err := metrics.Observed(ctx, n.rec, "experiment_load", func() error {
		if err := n.docs.Read(domain.KindExperiment, id, &exp); err != nil {
			if errors.Is(err, docstore.ErrNotExists) {
				return domain.NotFoundError{Kind: domain.KindExperiment, ID: id}
			}
			return err
		}
		return nil
	})
	return exp, err
}

// List returns experiment summaries, newest first. An empty status matches
// every experiment.
// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status domain.ExperimentStatus
	Tag    string
}

func (n *Notebook) List(ctx context.Context, filter Filter) ([]domain.ExperimentSummary, error) {
	var out []domain.ExperimentSummary
	err := metrics.Observed(ctx, n.rec, "experiment_list", func() error {
		exps, err := n.loadAll()
		if err != nil {
			return err
		}
		for _, exp := range exps {
			if filter.Status != "" && exp.Status() != filter.Status {
				continue
			}
			if filter.Tag != "" && !hasTag(exp.Tags, filter.Tag) {
				continue
			}
			out = append(out, domain.ExperimentSummary{
				ID:        exp.ID,
				Title:     exp.Title,
				Status:    exp.Status(),
				Tags:      append([]string(nil), exp.Tags...),
				CreatedAt: exp.CreatedAt,
			})
		}
		return nil
	})
	return out, err
}

// Search matches the query case-insensitively against title, objective,
// hypothesis, conclusions, and tags. Results come back newest first.
func (n *Notebook) Search(ctx context.Context, query string) ([]domain.ExperimentSummary, error) {
	var out []domain.ExperimentSummary
	err := metrics.Observed(ctx, n.rec, "experiment_search", func() error {
		needle := strings.ToLower(query)
		exps, err := n.loadAll()
		if err != nil {
			return err
		}
		for _, exp := range exps {
			if !experimentMatches(exp, needle) {
				continue
			}
			out = append(out, domain.ExperimentSummary{
				ID:        exp.ID,
				Title:     exp.Title,
				Status:    exp.Status(),
				Tags:      append([]string(nil), exp.Tags...),
				CreatedAt: exp.CreatedAt,
			})
		}
		return nil
	})
	return out, err
}

// Snapshot returns every experiment, newest first. Renderers consume this
// for summaries and CSV export.
func (n *Notebook) Snapshot(ctx context.Context) ([]domain.Experiment, error) {
	var out []domain.Experiment
	err := metrics.Observed(ctx, n.rec, "experiment_snapshot", func() error {
		exps, err := n.loadAll()
		if err != nil {
			return err
		}
		out = exps
		return nil
	})
	return out, err
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func experimentMatches(exp domain.Experiment, needle string) bool {
	if strings.Contains(strings.ToLower(exp.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(exp.Objective), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(exp.Hypothesis), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(exp.Conclusions), needle) {
		return true
	}
	for _, tag := range exp.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func (n *Notebook) mutate(ctx context.Context, op, id string, fn func(*domain.Experiment) error) (domain.Experiment, error) {
	var updated domain.Experiment
	err := metrics.Observed(ctx, n.rec, op, func() error {
		var exp domain.Experiment
		if err := n.docs.Read(domain.KindExperiment, id, &exp); err != nil {
			if errors.Is(err, docstore.ErrNotExists) {
				return domain.NotFoundError{Kind: domain.KindExperiment, ID: id}
			}
			return err
		}
		next := exp.Clone()
		if next.Results == nil {
			next.Results = map[string]any{}
		}
		if err := fn(&next); err != nil {
			return err
		}
		if err := n.docs.Write(domain.KindExperiment, next.ID, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	return updated, err
}

func (n *Notebook) loadAll() ([]domain.Experiment, error) {
	ids, err := n.docs.List(domain.KindExperiment)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Experiment, 0, len(ids))
	for _, id := range ids {
		var exp domain.Experiment
		if err := n.docs.Read(domain.KindExperiment, id, &exp); err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
