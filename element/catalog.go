package element

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of an external element catalog.
type catalogFile struct {
	Elements []catalogEntry `yaml:"elements"`
}

type catalogEntry struct {
	Name              string        `yaml:"name"`
	Category          string        `yaml:"category"`
	Kind              string        `yaml:"kind"`
	Selector          string        `yaml:"selector"`
	Specificity       int           `yaml:"specificity"`
	AllowedElements   []string      `yaml:"allowed_elements"`
	ContentCategories []string      `yaml:"content_categories"`
	Accepts           []string      `yaml:"accepts"`
	Template          string        `yaml:"template"`
	Resizable         bool          `yaml:"resizable"`
	LockAspect        bool          `yaml:"lock_aspect"`
	EditText          bool          `yaml:"edit_text"`
	Config            *ConfigSchema `yaml:"config"`
}

// LoadCatalogFile reads a YAML catalog. External entries always match by
// selector.
func LoadCatalogFile(path string) ([]*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("element: read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes YAML catalog data.
func ParseCatalog(data []byte) ([]*Definition, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("element: parse catalog: %w", err)
	}
	defs := make([]*Definition, 0, len(f.Elements))
	for _, e := range f.Elements {
		d, err := e.definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func (e catalogEntry) definition() (*Definition, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("element: catalog entry without name")
	}
	sel, err := ParseSelector(e.Selector)
	if err != nil {
		return nil, fmt.Errorf("element: catalog entry %q: %w", e.Name, err)
	}
	kind := Kind(e.Kind)
	if kind == "" {
		kind = KindGeneric
	}
	caps := CapDrag
	if e.Resizable {
		caps |= CapResize
	}
	if e.LockAspect {
		caps |= CapLockAspect
	}
	if e.EditText {
		caps |= CapEditText
	}
	return &Definition{
		Name:              e.Name,
		Category:          e.Category,
		Kind:              kind,
		Caps:              caps,
		Specificity:       e.Specificity,
		Match:             sel.MatchFunc(),
		AllowedElements:   e.AllowedElements,
		ContentCategories: e.ContentCategories,
		Accepts:           e.Accepts,
		Template:          e.Template,
		Config:            e.Config,
	}, nil
}
