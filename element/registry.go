package element

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Registry resolves DOM nodes to definitions. It is safe for concurrent
// use; one Registry may serve several editor sessions.
type Registry struct {
	mu      sync.RWMutex
	catalog *Catalog

	builtins []*Definition
	files    []string
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithCatalogFiles adds external YAML catalogs loaded after the built-ins.
func WithCatalogFiles(paths ...string) Option {
	return func(r *Registry) { r.files = append(r.files, paths...) }
}

// WithDefinitions replaces the built-in catalog. Used by tests and by
// embedders that ship their own element set.
func WithDefinitions(defs ...*Definition) Option {
	return func(r *Registry) { r.builtins = defs }
}

// NewRegistry creates a registry over the built-in catalog.
func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{builtins: Builtin(), logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Load builds the catalog from the built-ins plus external catalogs and
// replaces the cached one. Safe to call repeatedly. On error the previous
// catalog stays in place.
func (r *Registry) Load() (*Catalog, error) {
	defs := slices.Clone(r.builtins)
	for _, path := range r.files {
		ext, err := LoadCatalogFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, ext...)
	}

	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if d.Name == "" || d.Match == nil {
			return nil, fmt.Errorf("element: load: definition %q has no name or matcher", d.Name)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("element: load: duplicate definition %q", d.Name)
		}
		seen[d.Name] = true
	}

	cat := &Catalog{Categories: categories(defs)}
	cat.Elements = slices.Clone(defs)
	slices.SortStableFunc(cat.Elements, func(a, b *Definition) int {
		return cmp.Compare(b.Specificity, a.Specificity)
	})

	r.mu.Lock()
	r.catalog = cat
	r.mu.Unlock()
	r.logger.Debug("element: catalog loaded", "elements", len(cat.Elements), "external", len(r.files))
	return cat, nil
}

func categories(defs []*Definition) []Category {
	var out []Category
	index := make(map[string]int)
	for _, d := range defs {
		if d.Category == "" {
			continue
		}
		i, ok := index[d.Category]
		if !ok {
			i = len(out)
			index[d.Category] = i
			out = append(out, Category{Name: d.Category})
		}
		out[i].Elements = append(out[i].Elements, d.Name)
	}
	return out
}

// Catalog returns the loaded catalog, loading the built-ins on first use.
func (r *Registry) Catalog() *Catalog {
	r.mu.RLock()
	cat := r.catalog
	r.mu.RUnlock()
	if cat != nil {
		return cat
	}
	cat, err := r.Load()
	if err != nil {
		r.logger.Warn("element: catalog load failed, using built-ins", "error", err)
		cat = &Catalog{Elements: slices.Clone(r.builtins), Categories: categories(r.builtins)}
		slices.SortStableFunc(cat.Elements, func(a, b *Definition) int {
			return cmp.Compare(b.Specificity, a.Specificity)
		})
		r.mu.Lock()
		r.catalog = cat
		r.mu.Unlock()
	}
	return cat
}

// Lookup returns the definition called name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	d := r.Catalog().lookup(name)
	return d, d != nil
}

// Template returns the palette markup for name.
func (r *Registry) Template(name string) (string, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDefinition, name)
	}
	return d.Template, nil
}

// Match resolves n to the most specific definition accepting it. Text and
// other non-element nodes resolve through their parent element. Returns
// nil when nothing matches.
func (r *Registry) Match(n *html.Node) *Match {
	for n != nil && n.Type != html.ElementNode {
		n = n.Parent
	}
	if n == nil {
		return nil
	}
	for _, d := range r.Catalog().Elements {
		if rep, ok := d.Match(n); ok {
			if rep == nil {
				rep = n
			}
			return &Match{Definition: d, Node: rep}
		}
	}
	return nil
}

// CanInsertInto reports whether an instance of cand may become a child of
// parent. BODY accepts anything and HTML nothing. Otherwise the parent's
// own definition decides: its explicit allow-list when non-empty, else the
// intersection of its accepted categories with cand's categories when both
// are declared, else no.
func (r *Registry) CanInsertInto(parent *html.Node, cand *Definition) bool {
	if parent == nil || cand == nil || parent.Type != html.ElementNode {
		return false
	}
	switch parent.DataAtom {
	case atom.Body:
		return true
	case atom.Html:
		return false
	}
	m := r.Match(parent)
	if m == nil {
		return false
	}
	pd := m.Definition
	if len(pd.AllowedElements) > 0 {
		return pd.Allows(cand.Name)
	}
	if len(pd.Accepts) > 0 && len(cand.ContentCategories) > 0 {
		for _, c := range cand.ContentCategories {
			if slices.Contains(pd.Accepts, c) {
				return true
			}
		}
	}
	return false
}
