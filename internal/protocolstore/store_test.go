package protocolstore

import (
	"context"
	"testing"
	"time"

	"benchbook/internal/docstore"
	"benchbook/pkg/domain"
)

// tickingClock advances one second per call so identifiers never collide.
type tickingClock struct {
	now time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func newTestStore(t *testing.T) (*Store, *tickingClock) {
	t.Helper()
	clock := newTickingClock()
	return New(docstore.NewMemory(), WithClock(clock.Now)), clock
}

func pcrInput() CreateInput {
	return CreateInput{
		Name:        "PCR Amplification",
		Description: "Standard PCR",
		Steps: []domain.Step{
			{"action": "Mix reagents"},
			{"action": "Thermocycle", "duration": "90 min"},
		},
		Materials: []string{"Taq polymerase", "dNTPs"},
		Tags:      []string{"PCR", "DNA"},
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"PCR Amplification":    "pcr_amplification",
		"  DNA -- Extraction ": "dna_extraction",
		"Western Blot v2.1":    "western_blot_v2_1",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateAssignsIDAndVersion(t *testing.T) {
	store, _ := newTestStore(t)
	p, err := store.Create(context.Background(), pcrInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID != "pcr_amplification_20260301100000" {
		t.Fatalf("unexpected id %q", p.ID)
	}
	if p.Version != 1 || p.ParentID != nil {
		t.Fatalf("expected version 1 with no parent, got v%d parent=%v", p.Version, p.ParentID)
	}
}

func TestCreateValidation(t *testing.T) {
	store, _ := newTestStore(t)
	in := pcrInput()
	in.Name = "  "
	if _, err := store.Create(context.Background(), in); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	in = pcrInput()
	in.Steps = nil
	if _, err := store.Create(context.Background(), in); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty steps, got %v", err)
	}
}

func TestCreateSameSecondCollision(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := New(docstore.NewMemory(), WithClock(func() time.Time { return fixed }))
	if _, err := store.Create(context.Background(), pcrInput()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := store.Create(context.Background(), pcrInput()); !domain.IsDuplicate(err) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestUpdateCreatesImmutableNewVersion(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	v1, err := store.Create(ctx, pcrInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	v2, err := store.Update(ctx, v1.ID, "tightened cycling times", map[string]any{
		"description": "Optimized PCR",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if v2.Version != 2 {
		t.Fatalf("expected version 2, got %d", v2.Version)
	}
	if v2.ParentID == nil || *v2.ParentID != v1.ID {
		t.Fatalf("expected parent %q, got %v", v1.ID, v2.ParentID)
	}
	if v2.ID == v1.ID {
		t.Fatal("new version reused the old identifier")
	}
	if v2.Description != "Optimized PCR" || v2.Notes != "tightened cycling times" {
		t.Fatalf("overrides not applied: %+v", v2)
	}
	// Untouched fields carry over.
	if len(v2.Steps) != 2 || len(v2.Materials) != 2 {
		t.Fatalf("expected carried-over steps and materials, got %+v", v2)
	}

	// The superseded version is byte-for-byte still there.
	old, err := store.Load(ctx, v1.ID)
	if err != nil {
		t.Fatalf("load superseded: %v", err)
	}
	if old.Version != 1 || old.Description != "Standard PCR" {
		t.Fatalf("superseded version changed: %+v", old)
	}
}

func TestUpdateResolvesHeadFromAnyVersion(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	v1, _ := store.Create(ctx, pcrInput())
	v2, err := store.Update(ctx, v1.ID, "second", nil)
	if err != nil {
		t.Fatalf("update to v2: %v", err)
	}
	// Updating by the v1 id still chains off the head (v2).
	v3, err := store.Update(ctx, v1.ID, "third", nil)
	if err != nil {
		t.Fatalf("update to v3: %v", err)
	}
	if v3.Version != 3 || *v3.ParentID != v2.ID {
		t.Fatalf("expected v3 parented on %s, got v%d parent=%v", v2.ID, v3.Version, v3.ParentID)
	}
}

func TestLoadByStemReturnsLatest(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	v1, _ := store.Create(ctx, pcrInput())
	v2, err := store.Update(ctx, v1.ID, "", nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.Load(ctx, "pcr_amplification")
	if err != nil {
		t.Fatalf("load by stem: %v", err)
	}
	if got.ID != v2.ID {
		t.Fatalf("expected head %s, got %s", v2.ID, got.ID)
	}
}

func TestLoadMissing(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Load(context.Background(), "no_such_protocol"); !domain.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestListVersionsOldestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	v1, _ := store.Create(ctx, pcrInput())
	if _, err := store.Update(ctx, v1.ID, "", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := store.Update(ctx, v1.ID, "", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	chain, err := store.ListVersions(ctx, "pcr_amplification")
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(chain))
	}
	for i, p := range chain {
		if p.Version != i+1 {
			t.Fatalf("expected version %d at index %d, got %d", i+1, i, p.Version)
		}
	}
}

func TestSearchMatchesHeadsOnly(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	v1, _ := store.Create(ctx, pcrInput())
	if _, err := store.Update(ctx, v1.ID, "", map[string]any{"description": "Optimized PCR"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	other := pcrInput()
	other.Name = "Western Blot"
	other.Description = "Protein detection"
	other.Tags = []string{"protein"}
	if _, err := store.Create(ctx, other); err != nil {
		t.Fatalf("create second: %v", err)
	}

	matches, err := store.Search(ctx, "pcr")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].Version != 2 {
		t.Fatalf("expected the single v2 head, got %+v", matches)
	}

	matches, err = store.Search(ctx, "PROTEIN")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 || matches[0].Name != "Western Blot" {
		t.Fatalf("expected case-insensitive tag match, got %+v", matches)
	}
}

func TestListFiltersByTag(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Create(ctx, pcrInput()); err != nil {
		t.Fatalf("create: %v", err)
	}
	other := pcrInput()
	other.Name = "Western Blot"
	other.Tags = []string{"protein"}
	if _, err := store.Create(ctx, other); err != nil {
		t.Fatalf("create second: %v", err)
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(all))
	}
	// Newest first.
	if all[0].Name != "Western Blot" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	tagged, err := store.List(ctx, "dna")
	if err != nil {
		t.Fatalf("list tagged: %v", err)
	}
	if len(tagged) != 1 || tagged[0].Name != "PCR Amplification" {
		t.Fatalf("expected the PCR summary, got %+v", tagged)
	}
}

func TestChecklistProjection(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	p, err := store.Create(ctx, pcrInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	cl, err := store.Checklist(ctx, p.ID)
	if err != nil {
		t.Fatalf("checklist: %v", err)
	}
	if cl.ProtocolID != p.ID || cl.Version != 1 {
		t.Fatalf("unexpected checklist header: %+v", cl)
	}
	if len(cl.Materials) != 2 || cl.Materials[0].Label != "Taq polymerase" {
		t.Fatalf("unexpected materials: %+v", cl.Materials)
	}
	if len(cl.Steps) != 2 || cl.Steps[0].Label != "Step 1: Mix reagents" {
		t.Fatalf("unexpected steps: %+v", cl.Steps)
	}
}
