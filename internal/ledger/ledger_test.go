package ledger

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
	return &tickingClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	clock := newTickingClock()
	return New(docstore.NewMemory(), WithClock(clock.Now))
}

func dnaSample() AddInput {
	return AddInput{
		SampleID:      "DNA_001",
		SampleType:    "DNA",
		Description:   "Plasmid prep",
		Location:      "Freezer A, Box 3",
		Quantity:      50,
		Unit:          "uL",
		Concentration: "100 ng/uL",
	}
}

func TestAddSample(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	s, err := l.AddSample(ctx, dnaSample())
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if s.Status() != domain.SampleAvailable {
		t.Fatalf("expected Available, got %s", s.Status())
	}
	if len(s.UsageHistory) != 0 {
		t.Fatalf("expected empty usage history, got %v", s.UsageHistory)
	}
	if !s.CreatedAt.Equal(s.UpdatedAt) {
		t.Fatal("expected created and updated stamps to match on add")
	}
}

func TestAddSampleValidation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	in := dnaSample()
	in.SampleID = " "
	if _, err := l.AddSample(ctx, in); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for blank id, got %v", err)
	}
	in = dnaSample()
	in.Quantity = -1
	if _, err := l.AddSample(ctx, in); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for negative quantity, got %v", err)
	}
	in = dnaSample()
	in.Unit = ""
	if _, err := l.AddSample(ctx, in); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty unit, got %v", err)
	}
}

func TestAddSampleDuplicate(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	if _, err := l.AddSample(ctx, dnaSample()); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := l.AddSample(ctx, dnaSample()); !domain.IsDuplicate(err) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestUseSampleAppendsLedgerEntry(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	if _, err := l.AddSample(ctx, dnaSample()); err != nil {
		t.Fatalf("add: %v", err)
	}
	s, err := l.UseSample(ctx, UseInput{
		SampleID:     "DNA_001",
		AmountUsed:   20,
		Unit:         "uL",
		UsedBy:       "jfraser",
		ExperimentID: "EXP_20260301100000",
	})
	if err != nil {
		t.Fatalf("use: %v", err)
	}
	if s.Quantity != 30 {
		t.Fatalf("expected 30 remaining, got %v", s.Quantity)
	}
	if len(s.UsageHistory) != 1 || s.UsageHistory[0].AmountUsed != 20 {
		t.Fatalf("unexpected usage history: %+v", s.UsageHistory)
	}
	if s.InitialQuantity() != 50 {
		t.Fatalf("conservation violated: initial quantity %v", s.InitialQuantity())
	}
}

func TestUseSampleToZeroDepletes(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	if _, err := l.AddSample(ctx, dnaSample()); err != nil {
		t.Fatalf("add: %v", err)
	}
	s, err := l.UseSample(ctx, UseInput{SampleID: "DNA_001", AmountUsed: 50, Unit: "uL"})
	if err != nil {
		t.Fatalf("use: %v", err)
	}
	if s.Status() != domain.SampleDepleted {
		t.Fatalf("expected Depleted at zero, got %s", s.Status())
	}
}

func TestUseSampleRejectionsLeaveStateUntouched(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	if _, err := l.AddSample(ctx, dnaSample()); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := l.UseSample(ctx, UseInput{SampleID: "DNA_001", AmountUsed: 60, Unit: "uL"}); !domain.IsInsufficientQuantity(err) {
		t.Fatalf("expected insufficient quantity, got %v", err)
	}
	if _, err := l.UseSample(ctx, UseInput{SampleID: "DNA_001", AmountUsed: 5, Unit: "mL"}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for unit mismatch, got %v", err)
	}
	if _, err := l.UseSample(ctx, UseInput{SampleID: "DNA_001", AmountUsed: 0, Unit: "uL"}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for non-positive amount, got %v", err)
	}
	if _, err := l.UseSample(ctx, UseInput{SampleID: "nope", AmountUsed: 1, Unit: "uL"}); !domain.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	s, err := l.GetSample(ctx, "DNA_001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Quantity != 50 || len(s.UsageHistory) != 0 {
		t.Fatalf("rejected usage mutated the sample: %+v", s)
	}
}

func TestUpdateSamplePreservesLedgerFields(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	if _, err := l.AddSample(ctx, dnaSample()); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := l.UseSample(ctx, UseInput{SampleID: "DNA_001", AmountUsed: 10, Unit: "uL"}); err != nil {
		t.Fatalf("use: %v", err)
	}

	s, err := l.UpdateSample(ctx, "DNA_001", func(s *domain.Sample) error {
		s.Location = "Freezer B, Box 1"
		// Attempts to rewrite ledger fields are discarded.
		s.Quantity = 999
		s.UsageHistory = nil
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.Location != "Freezer B, Box 1" {
		t.Fatalf("descriptive update lost: %+v", s)
	}
	if s.Quantity != 40 || len(s.UsageHistory) != 1 {
		t.Fatalf("ledger fields were mutated through update: %+v", s)
	}
}

func TestListSamplesFilterAndOrder(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	first := dnaSample()
	if _, err := l.AddSample(ctx, first); err != nil {
		t.Fatalf("add: %v", err)
	}
	second := AddInput{SampleID: "PROT_001", SampleType: "protein", Location: "Fridge 2", Quantity: 5, Unit: "mg"}
	if _, err := l.AddSample(ctx, second); err != nil {
		t.Fatalf("add: %v", err)
	}

	all, err := l.ListSamples(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].SampleID != "DNA_001" || all[1].SampleID != "PROT_001" {
		t.Fatalf("expected insertion order, got %+v", all)
	}

	proteins, err := l.ListSamples(ctx, Filter{SampleType: "protein"})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(proteins) != 1 || proteins[0].SampleID != "PROT_001" {
		t.Fatalf("unexpected type filter result: %+v", proteins)
	}

	if _, err := l.UseSample(ctx, UseInput{SampleID: "PROT_001", AmountUsed: 5, Unit: "mg"}); err != nil {
		t.Fatalf("use: %v", err)
	}
	depleted, err := l.ListSamples(ctx, Filter{Status: domain.SampleDepleted})
	if err != nil {
		t.Fatalf("list depleted: %v", err)
	}
	if len(depleted) != 1 || depleted[0].SampleID != "PROT_001" {
		t.Fatalf("unexpected status filter result: %+v", depleted)
	}
}

func TestLowStockAlertsSortedAscending(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	for _, in := range []AddInput{
		{SampleID: "a", SampleType: "DNA", Quantity: 8, Unit: "uL"},
		{SampleID: "b", SampleType: "DNA", Quantity: 3, Unit: "uL"},
		{SampleID: "c", SampleType: "DNA", Quantity: 50, Unit: "uL"},
		{SampleID: "d", SampleType: "DNA", Quantity: 3, Unit: "uL"},
	} {
		if _, err := l.AddSample(ctx, in); err != nil {
			t.Fatalf("add %s: %v", in.SampleID, err)
		}
	}
	alerts, err := l.LowStockAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	var got []string
	for _, s := range alerts {
		got = append(got, s.SampleID)
	}
	want := []string{"b", "d", "a"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
