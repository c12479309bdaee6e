// Package domain defines the persistent record types and error kinds shared
// by the benchbook stores and renderers.
package domain

import (
	"sort"
	"strings"
	"time"
)

// Kind identifies the type of record stored in a document directory.
type Kind string

// Supported record kinds used as directory names in the document store.
const (
	// KindProtocol identifies a versioned procedure document.
	KindProtocol Kind = "protocols"
	// KindSample identifies an inventory record.
	KindSample Kind = "samples"
	// KindExperiment identifies a lab-notebook experiment log.
	KindExperiment Kind = "experiments"
	// KindTemplate identifies a built-in protocol template. Templates ship
	// with the binary and are never written to the document store.
	KindTemplate Kind = "templates"
)

// Step is one entry in a protocol's procedure. Steps are deliberately open
// mappings (action, temperature, duration, free-form notes) rather than a
// fixed schema.
type Step map[string]any

// Action returns the step's action text, or an empty string.
func (s Step) Action() string {
	if v, ok := s["action"].(string); ok {
		return v
	}
	return ""
}

// Protocol is a versioned procedure document. A stored version is immutable;
// revisions are new documents linked through ParentID.
type Protocol struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     int       `json:"version"`
	ParentID    *string   `json:"parent_id"`
	Steps       []Step    `json:"steps"`
	Materials   []string  `json:"materials"`
	Tags        []string  `json:"tags"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasTag reports whether the protocol carries the tag, case-insensitively.
func (p Protocol) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (p Protocol) Clone() Protocol {
	cp := p
	if p.ParentID != nil {
		parent := *p.ParentID
		cp.ParentID = &parent
	}
	if p.Steps != nil {
		cp.Steps = make([]Step, len(p.Steps))
		for i, step := range p.Steps {
			dup := make(Step, len(step))
			for k, v := range step {
				dup[k] = v
			}
			cp.Steps[i] = dup
		}
	}
	cp.Materials = append([]string(nil), p.Materials...)
	cp.Tags = append([]string(nil), p.Tags...)
	return cp
}

// ProtocolSummary is the listing projection of a protocol chain head.
type ProtocolSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Steps     int       `json:"steps"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// ChecklistItem is one tickable line of a protocol checklist.
type ChecklistItem struct {
	Label string `json:"label"`
}

// Checklist is the pure projection of a protocol into materials and
// procedure check items. It carries no I/O of its own; a renderer writes it.
type Checklist struct {
	ProtocolID string          `json:"protocol_id"`
	Name       string          `json:"name"`
	Version    int             `json:"version"`
	Materials  []ChecklistItem `json:"materials"`
	Steps      []ChecklistItem `json:"steps"`
}

// UsageEvent is one append-only ledger entry recording consumption of a
// sample. Events are immutable once appended.
type UsageEvent struct {
	AmountUsed   float64   `json:"amount_used"`
	Unit         string    `json:"unit"`
	UsedBy       string    `json:"used_by"`
	ExperimentID string    `json:"experiment_id,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// SampleStatus is derived from the remaining quantity, never stored.
type SampleStatus string

const (
	SampleAvailable SampleStatus = "Available"
	SampleDepleted  SampleStatus = "Depleted"
)

// Sample is an inventory record with a mutable quantity and an immutable
// usage ledger.
type Sample struct {
	SampleID      string       `json:"sample_id"`
	SampleType    string       `json:"sample_type"`
	Description   string       `json:"description"`
	Location      string       `json:"location"`
	Quantity      float64      `json:"quantity"`
	Unit          string       `json:"unit"`
	Concentration string       `json:"concentration,omitempty"`
	Batch         string       `json:"batch,omitempty"`
	Source        string       `json:"source,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	UsageHistory  []UsageEvent `json:"usage_history"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Status derives the sample lifecycle state from its quantity.
func (s Sample) Status() SampleStatus {
	if s.Quantity <= 0 {
		return SampleDepleted
	}
	return SampleAvailable
}

// InitialQuantity reconstructs the quantity at creation from the ledger.
func (s Sample) InitialQuantity() float64 {
	total := s.Quantity
	for _, ev := range s.UsageHistory {
		total += ev.AmountUsed
	}
	return total
}

// Clone returns a deep copy of the sample.
func (s Sample) Clone() Sample {
	cp := s
	cp.UsageHistory = append([]UsageEvent(nil), s.UsageHistory...)
	return cp
}

// SortSamplesByStock orders samples ascending by quantity, breaking ties by
// sample_id ascending. Used for low-stock alert views.
func SortSamplesByStock(samples []Sample) {
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Quantity != samples[j].Quantity {
			return samples[i].Quantity < samples[j].Quantity
		}
		return samples[i].SampleID < samples[j].SampleID
	})
}

// Observation is a timestamped note appended to an experiment log.
type Observation struct {
	Timestamp   time.Time `json:"timestamp"`
	Observation string    `json:"observation"`
}

// Attachment references a data file associated with an experiment.
type Attachment struct {
	Type    string    `json:"type"`
	File    string    `json:"file"`
	AddedAt time.Time `json:"added_at"`
}

// ExperimentStatus is derived from CompletedAt, never stored.
type ExperimentStatus string

const (
	ExperimentInProgress ExperimentStatus = "In Progress"
	ExperimentCompleted  ExperimentStatus = "Completed"
)

// Experiment is a lab-notebook entry: objective, running observations,
// results, and eventual conclusions. ProtocolID is a weak reference by
// identifier only; it is never dereferenced or validated here.
type Experiment struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	ProtocolID   string         `json:"protocol_id,omitempty"`
	Objective    string         `json:"objective,omitempty"`
	Hypothesis   string         `json:"hypothesis,omitempty"`
	Materials    []string       `json:"materials"`
	Tags         []string       `json:"tags"`
	Observations []Observation  `json:"observations"`
	Results      map[string]any `json:"results"`
	Conclusions  string         `json:"conclusions,omitempty"`
	Attachments  []Attachment   `json:"attachments"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Status derives the experiment lifecycle state from CompletedAt.
func (e Experiment) Status() ExperimentStatus {
	if e.CompletedAt != nil {
		return ExperimentCompleted
	}
	return ExperimentInProgress
}

// Clone returns a deep copy of the experiment.
func (e Experiment) Clone() Experiment {
	cp := e
	if e.CompletedAt != nil {
		done := *e.CompletedAt
		cp.CompletedAt = &done
	}
	cp.Materials = append([]string(nil), e.Materials...)
	cp.Tags = append([]string(nil), e.Tags...)
	cp.Observations = append([]Observation(nil), e.Observations...)
	cp.Attachments = append([]Attachment(nil), e.Attachments...)
	if e.Results != nil {
		cp.Results = make(map[string]any, len(e.Results))
		for k, v := range e.Results {
			cp.Results[k] = v
		}
	}
	return cp
}

// ExperimentSummary is the listing projection of an experiment.
type ExperimentSummary struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Status    ExperimentStatus `json:"status"`
	Tags      []string         `json:"tags"`
	CreatedAt time.Time        `json:"created_at"`
}
