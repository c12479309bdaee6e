package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"benchbook/pkg/domain"
)

// Memory implements Store on process memory. Payloads are stored as encoded
// JSON so reads hand back independent copies, matching the file drivers.
type Memory struct {
	mu   sync.RWMutex
	docs map[domain.Kind]map[string][]byte
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[domain.Kind]map[string][]byte)}
}

func (m *Memory) Driver() Driver { return DriverMemory }

func (m *Memory) Read(kind domain.Kind, id string, v any) error {
	m.mu.RLock()
	data, ok := m.docs[kind][id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotExists
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", kind, id, err)
	}
	return nil
}

func (m *Memory) Write(kind domain.Kind, id string, v any) error {
	if err := sanitizeID(id); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[kind] == nil {
		m.docs[kind] = make(map[string][]byte)
	}
	m.docs[kind][id] = data
	return nil
}

func (m *Memory) WriteNew(kind domain.Kind, id string, v any) error {
	if err := sanitizeID(id); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[kind][id]; exists {
		return ErrExists
	}
	if m.docs[kind] == nil {
		m.docs[kind] = make(map[string][]byte)
	}
	m.docs[kind][id] = data
	return nil
}

func (m *Memory) Exists(kind domain.Kind, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[kind][id]
	return ok, nil
}

func (m *Memory) List(kind domain.Kind) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs[kind]))
	for id := range m.docs[kind] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Delete(kind domain.Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[kind], id)
	return nil
}
