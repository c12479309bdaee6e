package notebook

import (
	"context"
	"testing"
	"time"

	"benchbook/internal/docstore"
	"benchbook/pkg/domain"
)

type tickingClock struct {
	now time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{now: time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func newTestNotebook(t *testing.T) *Notebook {
	t.Helper()
	clock := newTickingClock()
	return New(docstore.NewMemory(), WithClock(clock.Now))
}

func expressionInput() CreateInput {
	return CreateInput{
		Title:      "Protein Expression Optimization",
		ProtocolID: "protein_expression_20260301100000",
		Objective:  "Optimize IPTG concentration",
		Hypothesis: "Higher IPTG increases yield",
		Materials:  []string{"E. coli BL21", "IPTG"},
		Tags:       []string{"expression", "optimization"},
	}
}

func TestCreateExperiment(t *testing.T) {
	nb := newTestNotebook(t)
	exp, err := nb.Create(context.Background(), expressionInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if exp.ID != "EXP_20260302140000" {
		t.Fatalf("unexpected id %q", exp.ID)
	}
	if exp.Status() != domain.ExperimentInProgress {
		t.Fatalf("expected In Progress, got %s", exp.Status())
	}
}

func TestCreateExperimentValidation(t *testing.T) {
	nb := newTestNotebook(t)
	if _, err := nb.Create(context.Background(), CreateInput{Title: "  "}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateSameSecondCollision(t *testing.T) {
	fixed := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	nb := New(docstore.NewMemory(), WithClock(func() time.Time { return fixed }))
	ctx := context.Background()
	if _, err := nb.Create(ctx, expressionInput()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := nb.Create(ctx, expressionInput()); !domain.IsDuplicate(err) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestObservationsAccumulateInOrder(t *testing.T) {
	nb := newTestNotebook(t)
	ctx := context.Background()
	exp, _ := nb.Create(ctx, expressionInput())
	if _, err := nb.AddObservation(ctx, exp.ID, "Induced cultures"); err != nil {
		t.Fatalf("observe: %v", err)
	}
	got, err := nb.AddObservation(ctx, exp.ID, "Pellet collected")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if len(got.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(got.Observations))
	}
	if got.Observations[0].Observation != "Induced cultures" {
		t.Fatalf("observation order broken: %+v", got.Observations)
	}
	if !got.Observations[0].Timestamp.Before(got.Observations[1].Timestamp) {
		t.Fatal("expected strictly increasing timestamps")
	}
	if _, err := nb.AddObservation(ctx, exp.ID, " "); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for blank observation, got %v", err)
	}
}

func TestAddResultsMergesAndAttaches(t *testing.T) {
	nb := newTestNotebook(t)
	ctx := context.Background()
	exp, _ := nb.Create(ctx, expressionInput())
	if _, err := nb.AddResults(ctx, exp.ID, map[string]any{"yield": "30 mg/L"}, ""); err != nil {
		t.Fatalf("results: %v", err)
	}
	got, err := nb.AddResults(ctx, exp.ID, map[string]any{"yield": "45 mg/L", "optimal": "0.5mM"}, "gel_image.png")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if got.Results["yield"] != "45 mg/L" || got.Results["optimal"] != "0.5mM" {
		t.Fatalf("results not merged: %+v", got.Results)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].File != "gel_image.png" {
		t.Fatalf("attachment missing: %+v", got.Attachments)
	}
	if got.Attachments[0].Type != "data_file" {
		t.Fatalf("unexpected attachment type %q", got.Attachments[0].Type)
	}
}

func TestCompleteDerivesStatus(t *testing.T) {
	nb := newTestNotebook(t)
	ctx := context.Background()
	exp, _ := nb.Create(ctx, expressionInput())
	done, err := nb.Complete(ctx, exp.ID, "Optimal expression at 0.5mM IPTG")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status() != domain.ExperimentCompleted || done.CompletedAt == nil {
		t.Fatalf("expected Completed, got %+v", done)
	}
	if done.Conclusions == "" {
		t.Fatal("conclusions not recorded")
	}
}

func TestMutationsOnMissingExperiment(t *testing.T) {
	nb := newTestNotebook(t)
	ctx := context.Background()
	if _, err := nb.AddObservation(ctx, "EXP_nope", "x"); !domain.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if _, err := nb.Complete(ctx, "EXP_nope", ""); !domain.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if _, err := nb.Load(ctx, "EXP_nope"); !domain.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestListNewestFirstAndStatusFilter(t *testing.T) {
	nb := newTestNotebook(t)
	ctx := context.Background()
	first, _ := nb.Create(ctx, expressionInput())
	secondIn := expressionInput()
	secondIn.Title = "Buffer Screen"
	secondIn.Tags = []string{"screening"}
	second, err := nb.Create(ctx, secondIn)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := nb.Complete(ctx, first.ID, "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	all, err := nb.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}

	completed, err := nb.List(ctx, Filter{Status: domain.ExperimentCompleted})
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != first.ID {
		t.Fatalf("unexpected completed filter: %+v", completed)
	}

	tagged, err := nb.List(ctx, Filter{Tag: "SCREENING"})
	if err != nil {
		t.Fatalf("list tagged: %v", err)
	}
	if len(tagged) != 1 || tagged[0].ID != second.ID {
		t.Fatalf("unexpected tag filter: %+v", tagged)
	}
}

func TestSearchAcrossFields(t *testing.T) {
	nb := newTestNotebook(t)
	ctx := context.Background()
	exp, _ := nb.Create(ctx, expressionInput())
	if _, err := nb.Complete(ctx, exp.ID, "IPTG sweet spot found"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	otherIn := expressionInput()
	otherIn.Title = "Buffer Screen"
	otherIn.Objective = "Find stable buffer"
	otherIn.Tags = []string{"buffers"}
	if _, err := nb.Create(ctx, otherIn); err != nil {
		t.Fatalf("create: %v", err)
	}

	for query, wantID := range map[string]string{
		"sweet spot": exp.ID,
		"BUFFER":     "", // matches both via title and tag; just assert non-empty below
	} {
		matches, err := nb.Search(ctx, query)
		if err != nil {
			t.Fatalf("search %q: %v", query, err)
		}
		if len(matches) == 0 {
			t.Fatalf("expected matches for %q", query)
		}
		if wantID != "" && matches[0].ID != wantID {
			t.Fatalf("expected %s for %q, got %+v", wantID, query, matches)
		}
	}

	none, err := nb.Search(ctx, "chromatography")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %+v", none)
	}
}
