package protocolstore

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"benchbook/internal/metrics"
	"benchbook/pkg/domain"
)

//go:embed templates/*.json
var templateFS embed.FS

// Template is a predefined steps/materials/tags bundle a protocol can be
// created from.
type Template struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Steps       []domain.Step `json:"steps"`
	Materials   []string      `json:"materials"`
	Tags        []string      `json:"tags"`
	Notes       string        `json:"notes"`
}

// Templates returns the keys of all built-in templates, sorted.
func Templates() []string {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		// The directory is embedded at build time; absence is a packaging bug.
		panic(fmt.Sprintf("embedded templates missing: %v", err))
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(keys)
	return keys
}

// LoadTemplate returns the built-in template stored under key.
func LoadTemplate(key string) (Template, error) {
	data, err := templateFS.ReadFile(path.Join("templates", key+".json"))
	if err != nil {
		return Template{}, domain.NotFoundError{Kind: domain.KindTemplate, ID: key}
	}
	var tpl Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return Template{}, fmt.Errorf("decode template %s: %w", key, err)
	}
	return tpl, nil
}

// CreateFromTemplate loads the named built-in template, applies caller
// overrides, and creates a version-1 protocol from the result.
func (s *Store) CreateFromTemplate(ctx context.Context, templateKey string, overrides map[string]any) (domain.Protocol, error) {
	var created domain.Protocol
	err := metrics.Observed(ctx, s.rec, "protocol_create_from_template", func() error {
		tpl, err := LoadTemplate(templateKey)
		if err != nil {
			return err
		}
		in := CreateInput{
			Name:        tpl.Name,
			Description: tpl.Description,
			Steps:       tpl.Steps,
			Materials:   tpl.Materials,
			Tags:        tpl.Tags,
			Notes:       tpl.Notes,
		}
		base := domain.Protocol{
			Name:        in.Name,
			Description: in.Description,
			Steps:       in.Steps,
			Materials:   in.Materials,
			Tags:        in.Tags,
			Notes:       in.Notes,
		}
		applyOverrides(&base, overrides)
		in = CreateInput{
			Name:        base.Name,
			Description: base.Description,
			Steps:       base.Steps,
			Materials:   base.Materials,
			Tags:        base.Tags,
			Notes:       base.Notes,
		}
		created, err = s.Create(ctx, in)
		return err
	})
	return created, err
}
