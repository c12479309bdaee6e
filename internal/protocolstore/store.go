// Package protocolstore owns versioned procedure documents and their
// lineage. Stored versions are never edited in place: every revision is a
// new immutable document pointing at the version it supersedes, and "the
// current protocol" is always a derived lookup, never a stored field.
package protocolstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"benchbook/internal/docstore"
	"benchbook/internal/metrics"
	"benchbook/pkg/domain"
)

// Store provides protocol creation, revision, and lineage queries on top of
// a document store.
type Store struct {
	docs  docstore.Store
	rec   metrics.Recorder
	nowFn func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithRecorder attaches a metrics recorder to store operations.
func WithRecorder(rec metrics.Recorder) Option {
	return func(s *Store) { s.rec = rec }
}

// WithClock overrides the time source. Identifiers derive from the clock, so
// tests inject a deterministic one.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.nowFn = now }
}

// New constructs a protocol store backed by the provided documents.
func New(docs docstore.Store, opts ...Option) *Store {
	s := &Store{
		docs:  docs,
		rec:   metrics.Noop{},
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the fields of a new protocol.
type CreateInput struct {
	Name        string
	Description string
	Steps       []domain.Step
	Materials   []string
	Tags        []string
	Notes       string
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// Slug normalises a protocol display name into the identifier stem.
func Slug(name string) string {
	s := slugCleaner.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(s, "_")
}

const idTimestampLayout = "20060102150405"

var idSuffix = regexp.MustCompile(`_\d{14}$`)

// stem strips the creation-timestamp suffix from a protocol identifier.
func stem(id string) string {
	return idSuffix.ReplaceAllString(id, "")
}

// Create validates and persists a version-1 protocol.
func (s *Store) Create(ctx context.Context, in CreateInput) (domain.Protocol, error) {
	var created domain.Protocol
	err := metrics.Observed(ctx, s.rec, "protocol_create", func() error {
		if strings.TrimSpace(in.Name) == "" {
			return domain.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		if len(in.Steps) == 0 {
			return domain.ValidationError{Field: "steps", Reason: "must contain at least one step"}
		}
		now := s.nowFn()
		p := domain.Protocol{
			ID:          fmt.Sprintf("%s_%s", Slug(in.Name), now.Format(idTimestampLayout)),
			Name:        in.Name,
			Description: in.Description,
			Version:     1,
			ParentID:    nil,
			Steps:       in.Steps,
			Materials:   in.Materials,
			Tags:        in.Tags,
			Notes:       in.Notes,
			CreatedAt:   now,
		}
		if p.Materials == nil {
			p.Materials = []string{}
		}
		if p.Tags == nil {
			p.Tags = []string{}
		}
		if err := s.docs.WriteNew(domain.KindProtocol, p.ID, p); err != nil {
			if errors.Is(err, docstore.ErrExists) {
				return domain.DuplicateError{Kind: domain.KindProtocol, ID: p.ID}
			}
			return err
		}
		created = p
		return nil
	})
	return created, err
}

// Update resolves id to the current head of its lineage and persists a new
// immutable leaf with version head+1 and parent_id set to the head. Fields
// present in overrides replace the copied values; everything else carries
// over unchanged. The superseded version is never touched.
func (s *Store) Update(ctx context.Context, id, notes string, overrides map[string]any) (domain.Protocol, error) {
	var created domain.Protocol
	err := metrics.Observed(ctx, s.rec, "protocol_update", func() error {
		head, err := s.resolve(id)
		if err != nil {
			return err
		}
		now := s.nowFn()
		next := head.Clone()
		applyOverrides(&next, overrides)
		parent := head.ID
		next.Version = head.Version + 1
		next.ParentID = &parent
		next.Notes = notes
		next.CreatedAt = now
		next.ID = fmt.Sprintf("%s_%s", Slug(next.Name), now.Format(idTimestampLayout))
		if next.ID == head.ID {
			// Same name revised within one clock second; a leaf must never
			// collide with its parent.
			return domain.DuplicateError{Kind: domain.KindProtocol, ID: next.ID}
		}
		if err := s.docs.WriteNew(domain.KindProtocol, next.ID, next); err != nil {
			if errors.Is(err, docstore.ErrExists) {
				return domain.DuplicateError{Kind: domain.KindProtocol, ID: next.ID}
			}
			return err
		}
		created = next
		return nil
	})
	return created, err
}

// applyOverrides copies recognised override fields onto the protocol. The
// override bag is intentionally loose; unknown keys are ignored rather than
// rejected.
func applyOverrides(p *domain.Protocol, overrides map[string]any) {
	for key, value := range overrides {
		switch key {
		case "name":
			if v, ok := value.(string); ok {
				p.Name = v
			}
		case "description":
			if v, ok := value.(string); ok {
				p.Description = v
			}
		case "steps":
			if steps := coerceSteps(value); steps != nil {
				p.Steps = steps
			}
		case "materials":
			if v := coerceStrings(value); v != nil {
				p.Materials = v
			}
		case "tags":
			if v := coerceStrings(value); v != nil {
				p.Tags = v
			}
		case "notes":
			if v, ok := value.(string); ok {
				p.Notes = v
			}
		}
	}
}

func coerceSteps(value any) []domain.Step {
	switch v := value.(type) {
	case []domain.Step:
		return v
	case []map[string]any:
		out := make([]domain.Step, len(v))
		for i, m := range v {
			out[i] = domain.Step(m)
		}
		return out
	case []any:
		out := make([]domain.Step, 0, len(v))
		for _, item := range v {
			switch step := item.(type) {
			case domain.Step:
				out = append(out, step)
			case map[string]any:
				out = append(out, domain.Step(step))
			case string:
				out = append(out, domain.Step{"action": step})
			default:
				return nil
			}
		}
		return out
	default:
		return nil
	}
}

func coerceStrings(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, str)
		}
		return out
	default:
		return nil
	}
}

// Load returns the document stored under id when the identifier is literal,
// and otherwise resolves id as a lineage stem to the highest version.
func (s *Store) Load(ctx context.Context, id string) (domain.Protocol, error) {
	var loaded domain.Protocol
	err := metrics.Observed(ctx, s.rec, "protocol_load", func() error {
		var p domain.Protocol
		err := s.docs.Read(domain.KindProtocol, id, &p)
		if err == nil {
			loaded = p
			return nil
		}
		if !errors.Is(err, docstore.ErrNotExists) {
			return err
		}
		head, err := s.resolve(id)
		if err != nil {
			return err
		}
		loaded = head
		return nil
	})
	return loaded, err
}

// resolve maps an identifier (literal id of any version, or a lineage stem)
// to the head of its lineage: the highest version, with creation time and id
// breaking ties between divergent leaves.
func (s *Store) resolve(id string) (domain.Protocol, error) {
	all, err := s.loadAll()
	if err != nil {
		return domain.Protocol{}, err
	}
	var matches []domain.Protocol
	for _, p := range all {
		if p.ID == id || stem(p.ID) == id {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return domain.Protocol{}, domain.NotFoundError{Kind: domain.KindProtocol, ID: id}
	}
	var head domain.Protocol
	found := false
	for _, m := range matches {
		chain, err := lineageOf(all, m.ID)
		if err != nil {
			return domain.Protocol{}, err
		}
		candidate := chain[len(chain)-1]
		if !found || laterVersion(candidate, head) {
			head = candidate
			found = true
		}
	}
	return head, nil
}

func laterVersion(a, b domain.Protocol) bool {
	if a.Version != b.Version {
		return a.Version > b.Version
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// ListVersions returns every document in the lineage containing id, oldest
// first.
func (s *Store) ListVersions(ctx context.Context, id string) ([]domain.Protocol, error) {
	var chain []domain.Protocol
	err := metrics.Observed(ctx, s.rec, "protocol_list_versions", func() error {
		all, err := s.loadAll()
		if err != nil {
			return err
		}
		memberID := ""
		for _, p := range all {
			if p.ID == id || stem(p.ID) == id {
				memberID = p.ID
				break
			}
		}
		if memberID == "" {
			return domain.NotFoundError{Kind: domain.KindProtocol, ID: id}
		}
		chain, err = lineageOf(all, memberID)
		return err
	})
	return chain, err
}

// lineageOf collects every version sharing a root with memberID, ordered by
// version then creation time. The walk to the root is bounded by the chain
// length so a corrupted parent loop surfaces as an error instead of hanging.
func lineageOf(all []domain.Protocol, memberID string) ([]domain.Protocol, error) {
	byID := make(map[string]domain.Protocol, len(all))
	for _, p := range all {
		byID[p.ID] = p
	}
	current, ok := byID[memberID]
	if !ok {
		return nil, domain.NotFoundError{Kind: domain.KindProtocol, ID: memberID}
	}
	visited := map[string]bool{}
	for current.ParentID != nil {
		if visited[current.ID] {
			return nil, fmt.Errorf("protocol lineage of %q contains a cycle", memberID)
		}
		visited[current.ID] = true
		parent, ok := byID[*current.ParentID]
		if !ok {
			// Dangling parent reference: treat the oldest reachable version
			// as the root rather than failing the whole lineage.
			break
		}
		current = parent
	}
	root := current.ID

	rootOf := func(p domain.Protocol) (string, bool) {
		seen := map[string]bool{}
		for p.ParentID != nil {
			if seen[p.ID] {
				return "", false
			}
			seen[p.ID] = true
			parent, ok := byID[*p.ParentID]
			if !ok {
				break
			}
			p = parent
		}
		return p.ID, true
	}

	var chain []domain.Protocol
	for _, p := range all {
		r, ok := rootOf(p)
		if ok && r == root {
			chain = append(chain, p)
		}
	}
	sort.Slice(chain, func(i, j int) bool {
		if chain[i].Version != chain[j].Version {
			return chain[i].Version < chain[j].Version
		}
		if !chain[i].CreatedAt.Equal(chain[j].CreatedAt) {
			return chain[i].CreatedAt.Before(chain[j].CreatedAt)
		}
		return chain[i].ID < chain[j].ID
	})
	return chain, nil
}

// Search matches keyword case-insensitively against name, description, and
// tags. Only lineage heads are returned; superseded versions stay reachable
// through ListVersions.
func (s *Store) Search(ctx context.Context, keyword string) ([]domain.Protocol, error) {
	var out []domain.Protocol
	err := metrics.Observed(ctx, s.rec, "protocol_search", func() error {
		heads, err := s.heads()
		if err != nil {
			return err
		}
		needle := strings.ToLower(keyword)
		for _, p := range heads {
			haystack := strings.ToLower(p.Name + " " + p.Description + " " + strings.Join(p.Tags, " "))
			if strings.Contains(haystack, needle) {
				out = append(out, p)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

// List returns summaries of every lineage head, newest first, optionally
// filtered by tag.
func (s *Store) List(ctx context.Context, tag string) ([]domain.ProtocolSummary, error) {
	var out []domain.ProtocolSummary
	err := metrics.Observed(ctx, s.rec, "protocol_list", func() error {
		heads, err := s.heads()
		if err != nil {
			return err
		}
		for _, p := range heads {
			if tag != "" && !p.HasTag(tag) {
				continue
			}
			out = append(out, domain.ProtocolSummary{
				ID:        p.ID,
				Name:      p.Name,
				Version:   p.Version,
				Steps:     len(p.Steps),
				Tags:      append([]string(nil), p.Tags...),
				CreatedAt: p.CreatedAt,
			})
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	return out, err
}

// Checklist projects a protocol's materials and steps into an ordered
// checklist structure. Pure derivation; writing it anywhere is the
// renderer's job.
func (s *Store) Checklist(ctx context.Context, id string) (domain.Checklist, error) {
	var list domain.Checklist
	err := metrics.Observed(ctx, s.rec, "protocol_checklist", func() error {
		p, err := s.Load(ctx, id)
		if err != nil {
			return err
		}
		list = domain.Checklist{
			ProtocolID: p.ID,
			Name:       p.Name,
			Version:    p.Version,
		}
		for _, material := range p.Materials {
			list.Materials = append(list.Materials, domain.ChecklistItem{Label: material})
		}
		for i, step := range p.Steps {
			label := step.Action()
			if label == "" {
				label = fmt.Sprintf("%v", map[string]any(step))
			}
			list.Steps = append(list.Steps, domain.ChecklistItem{Label: fmt.Sprintf("Step %d: %s", i+1, label)})
		}
		return nil
	})
	return list, err
}

// heads returns the current document of every lineage.
func (s *Store) heads() ([]domain.Protocol, error) {
	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	seenRoot := map[string]bool{}
	var heads []domain.Protocol
	for _, p := range all {
		chain, err := lineageOf(all, p.ID)
		if err != nil {
			return nil, err
		}
		root := chain[0].ID
		if seenRoot[root] {
			continue
		}
		seenRoot[root] = true
		heads = append(heads, chain[len(chain)-1])
	}
	return heads, nil
}

func (s *Store) loadAll() ([]domain.Protocol, error) {
	ids, err := s.docs.List(domain.KindProtocol)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Protocol, 0, len(ids))
	for _, id := range ids {
		var p domain.Protocol
		if err := s.docs.Read(domain.KindProtocol, id, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
