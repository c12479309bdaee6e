package domain

import (
	"errors"
	"testing"
	"time"
)

func TestSampleStatusDerivation(t *testing.T) {
	s := Sample{SampleID: "DNA_001", Quantity: 5, Unit: "ug"}
	if s.Status() != SampleAvailable {
		t.Fatalf("expected Available, got %s", s.Status())
	}
	s.Quantity = 0
	if s.Status() != SampleDepleted {
		t.Fatalf("expected Depleted, got %s", s.Status())
	}
}

func TestSampleInitialQuantity(t *testing.T) {
	s := Sample{
		SampleID: "DNA_001",
		Quantity: 30,
		Unit:     "uL",
		UsageHistory: []UsageEvent{
			{AmountUsed: 10, Unit: "uL"},
			{AmountUsed: 10, Unit: "uL"},
		},
	}
	if got := s.InitialQuantity(); got != 50 {
		t.Fatalf("expected initial quantity 50, got %v", got)
	}
}

func TestSampleCloneIndependence(t *testing.T) {
	s := Sample{
		SampleID:     "P_001",
		Quantity:     10,
		UsageHistory: []UsageEvent{{AmountUsed: 1, Unit: "mL"}},
	}
	cp := s.Clone()
	cp.UsageHistory = append(cp.UsageHistory, UsageEvent{AmountUsed: 2, Unit: "mL"})
	cp.UsageHistory[0].AmountUsed = 99
	if len(s.UsageHistory) != 1 || s.UsageHistory[0].AmountUsed != 1 {
		t.Fatalf("clone mutation leaked into original: %+v", s.UsageHistory)
	}
}

func TestSortSamplesByStock(t *testing.T) {
	samples := []Sample{
		{SampleID: "b", Quantity: 5},
		{SampleID: "a", Quantity: 5},
		{SampleID: "c", Quantity: 1},
	}
	SortSamplesByStock(samples)
	got := []string{samples[0].SampleID, samples[1].SampleID, samples[2].SampleID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestExperimentStatusDerivation(t *testing.T) {
	exp := Experiment{ID: "EXP_1", Title: "t"}
	if exp.Status() != ExperimentInProgress {
		t.Fatalf("expected In Progress, got %s", exp.Status())
	}
	done := time.Now().UTC()
	exp.CompletedAt = &done
	if exp.Status() != ExperimentCompleted {
		t.Fatalf("expected Completed, got %s", exp.Status())
	}
}

func TestStepAction(t *testing.T) {
	step := Step{"action": "Mix thoroughly", "duration": "5 min"}
	if step.Action() != "Mix thoroughly" {
		t.Fatalf("unexpected action %q", step.Action())
	}
	if (Step{"duration": "5 min"}).Action() != "" {
		t.Fatal("expected empty action for step without one")
	}
}

func TestProtocolHasTag(t *testing.T) {
	p := Protocol{Tags: []string{"PCR", "dna"}}
	if !p.HasTag("pcr") {
		t.Fatal("expected case-insensitive tag match")
	}
	if p.HasTag("protein") {
		t.Fatal("did not expect match for absent tag")
	}
}

func TestErrorHelpers(t *testing.T) {
	var err error = NotFoundError{Kind: KindProtocol, ID: "x"}
	if !IsNotFound(err) {
		t.Fatal("expected IsNotFound")
	}
	if IsNotFound(errors.New("other")) {
		t.Fatal("IsNotFound matched unrelated error")
	}
	if !IsValidation(ValidationError{Field: "name", Reason: "empty"}) {
		t.Fatal("expected IsValidation")
	}
	if !IsDuplicate(DuplicateError{Kind: KindSample, ID: "s"}) {
		t.Fatal("expected IsDuplicate")
	}
	iq := InsufficientQuantityError{SampleID: "s", Requested: 5, Available: 2, Unit: "mL"}
	if !IsInsufficientQuantity(iq) {
		t.Fatal("expected IsInsufficientQuantity")
	}
}
