package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"benchbook/pkg/domain"
)

// Dir implements Store on a local directory: <root>/<kind>/<id>.json with
// indented JSON payloads. Writes go through a temp file and rename so a
// failed write never leaves a partial document behind.
type Dir struct {
	root string
}

// NewDir returns a directory-backed store rooted at path, creating it if
// needed.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		root = "./benchbook_data"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data root: %w", err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Driver() Driver { return DriverDir }

// Root returns the configured data directory.
func (d *Dir) Root() string { return d.root }

// sanitizeID rejects identifiers that would escape the kind directory.
func sanitizeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("empty document id")
	}
	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}

func (d *Dir) pathFor(kind domain.Kind, id string) (string, error) {
	if err := sanitizeID(id); err != nil {
		return "", err
	}
	return filepath.Join(d.root, string(kind), id+".json"), nil
}

func (d *Dir) Read(kind domain.Kind, id string, v any) error {
	path, err := d.pathFor(kind, id)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ErrNotExists
	}
	if err != nil {
		return fmt.Errorf("read %s/%s: %w", kind, id, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", kind, id, err)
	}
	return nil
}

func (d *Dir) Write(kind domain.Kind, id string, v any) error {
	path, err := d.pathFor(kind, id)
	if err != nil {
		return err
	}
	return d.writeFile(path, v)
}

func (d *Dir) WriteNew(kind domain.Kind, id string, v any) error {
	path, err := d.pathFor(kind, id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return ErrExists
	}
	return d.writeFile(path, v)
}

func (d *Dir) writeFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create kind dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

func (d *Dir) Exists(kind domain.Kind, id string) (bool, error) {
	path, err := d.pathFor(kind, id)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *Dir) List(kind domain.Kind) ([]string, error) {
	dir := filepath.Join(d.root, string(kind))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (d *Dir) Delete(kind domain.Kind, id string) error {
	path, err := d.pathFor(kind, id)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s/%s: %w", kind, id, err)
	}
	return nil
}
